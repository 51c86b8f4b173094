// Package prompts loads the persona and extraction texts used by the pipeline.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Set struct {
	System         string `yaml:"system"`
	Analysis       string `yaml:"analysis"`
	FallbackReply  string `yaml:"fallback_reply"`
	OfflineReply   string `yaml:"offline_reply"`
	StopReply      string `yaml:"stop_reply"`
	ContextOpening string `yaml:"context_opening"`
}

// Default returns the embedded prompt set.
func Default() Set {
	var s Set
	if err := yaml.Unmarshal(defaultYAML, &s); err != nil {
		panic(fmt.Sprintf("prompts: embedded default.yaml is invalid: %v", err))
	}
	return s.trimmed()
}

// Load reads a YAML override file. Keys missing from the file keep the
// embedded defaults. An empty path returns the defaults.
func Load(path string) (Set, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read prompts %s: %w", path, err)
	}
	var override Set
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Set{}, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return base.merge(override.trimmed()), nil
}

func (s Set) merge(o Set) Set {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return Set{
		System:         pick(s.System, o.System),
		Analysis:       pick(s.Analysis, o.Analysis),
		FallbackReply:  pick(s.FallbackReply, o.FallbackReply),
		OfflineReply:   pick(s.OfflineReply, o.OfflineReply),
		StopReply:      pick(s.StopReply, o.StopReply),
		ContextOpening: pick(s.ContextOpening, o.ContextOpening),
	}
}

func (s Set) trimmed() Set {
	return Set{
		System:         strings.TrimSpace(s.System),
		Analysis:       strings.TrimSpace(s.Analysis),
		FallbackReply:  strings.TrimSpace(s.FallbackReply),
		OfflineReply:   strings.TrimSpace(s.OfflineReply),
		StopReply:      strings.TrimSpace(s.StopReply),
		ContextOpening: strings.TrimSpace(s.ContextOpening),
	}
}
