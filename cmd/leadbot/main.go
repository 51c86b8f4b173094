// DotAgent - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 DotAgent contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/agent"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
	"github.com/dotsetgreg/leadbot/pkg/providers"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "leadbot"

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".leadbot", "config.json")
}

// loadRuntime loads the config and initializes the shared logger from it.
func loadRuntime(configPath string, debug bool) (*config.Config, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = defaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}); err != nil {
		return nil, err
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
	return cfg, nil
}

// openStore picks the lead store named by driver. "none" runs without one.
func openStore(ctx context.Context, cfg *config.Config, driver string) (leads.Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		path := cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		store, err := leads.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sheets":
		store, err := leads.NewSheetsStore(ctx, leads.SheetsOptions{
			SpreadsheetID:   cfg.Leads.SheetID,
			Tab:             cfg.Leads.SheetTab,
			CredentialsFile: config.ExpandHome(cfg.Leads.CredentialsFile),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return leads.NewMemoryStore(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown leads driver %q", driver)
	}
}

// openModel returns nil when the active provider has no usable credentials,
// which puts the pipeline on the offline reply.
func openModel(cfg *config.Config, p prompts.Set, m *metrics.Metrics) (*agent.ProviderModel, error) {
	if err := providers.ValidateProviderConfig(cfg); err != nil {
		logger.WarnCF("gateway", "Model provider not configured, using offline replies", map[string]interface{}{
			"provider": providers.ActiveProviderName(cfg),
			"error":    err,
		})
		return nil, nil
	}
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return agent.NewProviderModel(provider, agent.ModelOptions{
		Model:               cfg.Model.Name,
		MaxTokens:           cfg.Model.MaxTokens,
		Temperature:         cfg.Model.Temperature,
		AnalysisMaxTokens:   cfg.Model.AnalysisMaxTokens,
		AnalysisTemperature: cfg.Model.AnalysisTemp,
		InputCostPerMTok:    cfg.Model.InputCostPerMTok,
		OutputCostPerMTok:   cfg.Model.OutputCostPerMTok,
		Opening:             p.ContextOpening,
	}, m), nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if strings.TrimSpace(cfg.Events.AMQPURL) == "" {
		return events.Nop{}, nil
	}
	pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Source)
	if err != nil {
		return nil, fmt.Errorf("connect event broker: %w", err)
	}
	return pub, nil
}

// pipelineDeps assembles the optional collaborators. Nil model and store
// stay nil interfaces.
func pipelineDeps(transport agent.Transport, model *agent.ProviderModel, store leads.Store, notifier agent.Notifier, pub events.Publisher, m *metrics.Metrics) agent.PipelineDeps {
	deps := agent.PipelineDeps{
		Transport: transport,
		Store:     store,
		Notifier:  notifier,
		Events:    pub,
		Metrics:   m,
	}
	if model != nil {
		deps.Replies = model
		deps.Extractor = model
	}
	return deps
}
