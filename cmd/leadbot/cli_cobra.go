package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var (
		showVersion bool
		configPath  string
	)

	root := &cobra.Command{
		Use:   "leadbot",
		Short: "WhatsApp sales qualification bot with lead sheet and operator notices",
		Long: strings.TrimSpace(`leadbot answers WhatsApp customers through Green API, folds rapid
messages into one turn, keeps the lead sheet current and tells the operator
when a call gets booked.

Use CLI commands to create a config, run the gateway, try the bot in a
local console and report on stored leads.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the JSON config file")

	resolve := func() string { return configPath }

	root.AddCommand(newInitCommand(resolve))
	root.AddCommand(newGatewayCommand(resolve))
	root.AddCommand(newChatCommand(resolve))
	root.AddCommand(newLeadsCommand(resolve))
	root.AddCommand(newStatusCommand(resolve))
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newInitCommand(configPath func() string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a default config file",
		Long:    "Create the config file with default bot timings, prompts path and store settings.",
		Example: "  leadbot init\n  leadbot init --config ./leadbot.json --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if fileExists(path) && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}

func newGatewayCommand(configPath func() string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the WhatsApp gateway, sweep, follow-ups and health server",
		Long:    "Start the Green API channel, intake loop, recovery sweep, follow-up scheduler and HTTP endpoints.",
		Example: "  leadbot gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(configPath(), debug)
			if err != nil {
				return err
			}
			return gatewayCmd(cfg)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand(configPath func() string) *cobra.Command {
	var (
		opts  chatOptions
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in a local console",
		Long:  "Run the full batching and reply pipeline against a console transport instead of WhatsApp.",
		Example: strings.Join([]string{
			"  leadbot chat",
			"  leadbot chat --phone 972501234567 --name Dana",
			"  leadbot chat --store sqlite --typing",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(configPath(), debug)
			if err != nil {
				return err
			}
			return chatCmd(cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.phone, "phone", "p", "972500000000", "Phone number the console speaks as")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "Console", "Display name the console speaks as")
	cmd.Flags().StringVar(&opts.store, "store", "memory", "Lead store: memory, sqlite, sheets or none")
	cmd.Flags().BoolVar(&opts.typing, "typing", false, "Wait the simulated typing delay before replies")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newLeadsCommand(configPath func() string) *cobra.Command {
	leadsRoot := &cobra.Command{
		Use:   "leads",
		Short: "Report on stored leads",
	}

	stats := &cobra.Command{
		Use:     "stats",
		Short:   "Show lead totals by status",
		Example: "  leadbot leads stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(configPath(), false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			all, err := listLeads(ctx, cfg)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), leads.Summarize(all))
			return nil
		},
	}

	followups := &cobra.Command{
		Use:     "followups",
		Short:   "List open leads whose reminder date has come",
		Example: "  leadbot leads followups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(configPath(), false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			all, err := listLeads(ctx, cfg)
			if err != nil {
				return err
			}
			now := time.Now().In(cfg.Location())
			printFollowups(cmd.OutOrStdout(), leads.DueForFollowup(all, now), now)
			return nil
		},
	}

	leadsRoot.AddCommand(stats, followups)
	return leadsRoot
}

func newStatusCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, credentials and store readiness",
		Example: "  leadbot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(configPath(), false)
			if err != nil {
				return err
			}
			statusCmd(cmd.OutOrStdout(), cfg, configPath())
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  leadbot version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
