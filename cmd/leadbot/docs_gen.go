package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/providers"
	"github.com/spf13/cobra"
	cobraDoc "github.com/spf13/cobra/doc"
)

func newDocsCommand(rootFactory func() *cobra.Command) *cobra.Command {
	docsRoot := &cobra.Command{
		Use:    "docs",
		Short:  "Internal docs maintenance commands",
		Hidden: true,
	}

	var (
		outputDir string
		checkOnly bool
	)

	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate reference docs from commands, config and event types",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputDir) == "" {
				return fmt.Errorf("--output must not be empty")
			}
			return generateDocumentation(rootFactory, outputDir, checkOnly)
		},
	}
	gen.Flags().StringVar(&outputDir, "output", "docs", "Docs directory root")
	gen.Flags().BoolVar(&checkOnly, "check", false, "Fail if generated docs are out of date")

	docsRoot.AddCommand(gen)
	return docsRoot
}

func generateDocumentation(rootFactory func() *cobra.Command, outputDir string, checkOnly bool) error {
	root := rootFactory()
	// The default shows the home directory of whoever generates the docs.
	if f := root.PersistentFlags().Lookup("config"); f != nil {
		f.DefValue = "~/.leadbot/config.json"
	}
	docs, err := renderDocs(root)
	if err != nil {
		return err
	}
	if checkOnly {
		return docs.check(outputDir)
	}
	return docs.write(outputDir)
}

// docSet maps a path under the docs root to its generated content.
type docSet map[string][]byte

var commandDocDirs = []string{
	filepath.Join("reference", "cli"),
	filepath.Join("reference", "man"),
}

func renderDocs(root *cobra.Command) (docSet, error) {
	docs := docSet{}
	if err := renderCommandDocs(root, docs); err != nil {
		return nil, err
	}
	configRef, err := buildConfigReferenceMarkdown()
	if err != nil {
		return nil, err
	}
	docs[filepath.Join("reference", "config.md")] = []byte(configRef)
	docs[filepath.Join("reference", "events.md")] = []byte(buildEventsReferenceMarkdown())
	return docs, nil
}

// renderCommandDocs adds a markdown page and a man page for cmd and each
// available subcommand.
func renderCommandDocs(cmd *cobra.Command, docs docSet) error {
	cmd.DisableAutoGenTag = true
	path := cmd.CommandPath()

	var md bytes.Buffer
	fmt.Fprintf(&md, "# %s\n\n", path)
	if err := cobraDoc.GenMarkdownCustom(cmd, &md, func(name string) string { return name }); err != nil {
		return fmt.Errorf("markdown for %q: %w", path, err)
	}
	docs[filepath.Join(commandDocDirs[0], strings.ReplaceAll(path, " ", "_")+".md")] = md.Bytes()

	var man bytes.Buffer
	header := &cobraDoc.GenManHeader{Title: "LEADBOT", Section: "1", Source: appName}
	if err := cobraDoc.GenMan(cmd, header, &man); err != nil {
		return fmt.Errorf("man page for %q: %w", path, err)
	}
	docs[filepath.Join(commandDocDirs[1], strings.ReplaceAll(path, " ", "-")+".1")] = man.Bytes()

	for _, child := range cmd.Commands() {
		if !child.IsAvailableCommand() || child.IsAdditionalHelpTopicCommand() {
			continue
		}
		if err := renderCommandDocs(child, docs); err != nil {
			return err
		}
	}
	return nil
}

func (d docSet) paths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// write replaces the command page directories so removed commands lose
// their pages.
func (d docSet) write(dir string) error {
	for _, sub := range commandDocDirs {
		if err := os.RemoveAll(filepath.Join(dir, sub)); err != nil {
			return fmt.Errorf("clear %s: %w", sub, err)
		}
	}
	for _, rel := range d.paths() {
		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", rel, err)
		}
		if err := os.WriteFile(target, d[rel], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

func (d docSet) check(dir string) error {
	for _, rel := range d.paths() {
		have, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return fmt.Errorf("docs out of date: missing %s", rel)
		}
		if !bytes.Equal(have, d[rel]) {
			return fmt.Errorf("docs out of date: %s changed; run `leadbot docs generate`", rel)
		}
	}
	for _, sub := range commandDocDirs {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if err != nil {
			return fmt.Errorf("docs out of date: missing %s", sub)
		}
		for _, e := range entries {
			if _, ok := d[filepath.Join(sub, e.Name())]; !ok {
				return fmt.Errorf("docs out of date: unexpected %s", filepath.Join(sub, e.Name()))
			}
		}
	}
	return nil
}

type configFieldRow struct {
	Path    string
	Type    string
	Env     string
	Default string
}

func buildConfigReferenceMarkdown() (string, error) {
	defaults, err := flattenConfigDefaults()
	if err != nil {
		return "", err
	}

	var rows []configFieldRow
	collectConfigRows(reflect.TypeOf(config.Config{}), "", "", defaults, &rows)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	var b strings.Builder
	b.WriteString("# Config Reference\n\n")
	b.WriteString("Generated from `pkg/config/config.go` and `config.DefaultConfig()`.\n")
	b.WriteString("Environment variables override the file; a `.env` file in the working directory is read first.\n\n")
	b.WriteString("Supported model providers: ")
	names := providers.SupportedProviders()
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("`" + name + "`")
	}
	b.WriteString(".\n\n")
	b.WriteString("| Key | Type | Env Var | Default |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| `%s` | `%s` | `%s` | `%s` |\n",
			escapePipes(row.Path), escapePipes(row.Type), escapePipes(valueOr(row.Env, "-")), escapePipes(valueOr(row.Default, "-")))
	}
	return b.String(), nil
}

// collectConfigRows walks nested sections, joining envPrefix tags onto the
// env names of the fields below them.
func collectConfigRows(t reflect.Type, prefix, envPrefix string, defaults map[string]string, rows *[]configFieldRow) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		jsonTag := strings.TrimSpace(strings.Split(f.Tag.Get("json"), ",")[0])
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		path := jsonTag
		if prefix != "" {
			path = prefix + "." + jsonTag
		}

		if f.Type.Kind() == reflect.Struct {
			collectConfigRows(f.Type, path, envPrefix+f.Tag.Get("envPrefix"), defaults, rows)
			continue
		}

		envName := strings.TrimSpace(f.Tag.Get("env"))
		if envName != "" {
			envName = envPrefix + envName
		}
		*rows = append(*rows, configFieldRow{
			Path:    path,
			Type:    friendlyType(f.Type),
			Env:     envName,
			Default: defaults[path],
		})
	}
}

// flattenConfigDefaults renders every leaf of the default config as JSON,
// keyed by dotted path.
func flattenConfigDefaults() (map[string]string, error) {
	data, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		return nil, err
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	out := map[string]string{}
	var walk func(path string, v any)
	walk = func(path string, v any) {
		obj, ok := v.(map[string]any)
		if !ok {
			leaf, _ := json.Marshal(v)
			out[path] = string(leaf)
			return
		}
		for k, child := range obj {
			if path != "" {
				k = path + "." + k
			}
			walk(k, child)
		}
	}
	walk("", root)
	return out, nil
}

var kindNames = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "bool",
	reflect.Int:     "int",
	reflect.Int64:   "int",
	reflect.Float64: "float",
}

func friendlyType(t reflect.Type) string {
	if name, ok := kindNames[t.Kind()]; ok {
		return name
	}
	switch t.Kind() {
	case reflect.Slice:
		return "list of " + friendlyType(t.Elem())
	case reflect.Map:
		return "map of " + friendlyType(t.Key()) + " to " + friendlyType(t.Elem())
	}
	return t.String()
}

func buildEventsReferenceMarkdown() string {
	var b strings.Builder
	b.WriteString("# Event Reference\n\n")
	b.WriteString("Lead lifecycle events are published to a durable topic exchange (`events.exchange`).\n")
	b.WriteString("The routing key is the event type. Messages are persistent JSON envelopes.\n\n")
	b.WriteString("| Type | Published when |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString("| `" + events.TypeLeadCreated + "` | A customer without a lead record sends a first turn. |\n")
	b.WriteString("| `" + events.TypeLeadAnalyzed + "` | Field extraction updates a lead. |\n")
	b.WriteString("| `" + events.TypeLeadMeetingScheduled + "` | A lead first gets a meeting time. |\n")
	b.WriteString("\nEnvelope fields: `meta.id`, `meta.type`, `meta.correlation_id`, `meta.source`, `meta.occurred_at`, `data`.\n")
	return b.String()
}

func escapePipes(v string) string {
	return strings.ReplaceAll(v, "|", "\\|")
}
