package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/providers"
)

func listLeads(ctx context.Context, cfg *config.Config) ([]leads.Lead, error) {
	store, err := openStore(ctx, cfg, cfg.Leads.Driver)
	if err != nil {
		return nil, fmt.Errorf("open lead store: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("leads.driver is none")
	}
	defer store.Close()
	return store.List(ctx)
}

func printStats(w io.Writer, st leads.Statistics) {
	fmt.Fprintf(w, "Total leads: %d\n", st.Total)
	for _, status := range st.Statuses() {
		fmt.Fprintf(w, "  %-16s %d\n", status, st.ByStatus[status])
	}
	fmt.Fprintf(w, "Scheduled calls: %d\n", st.ScheduledCalls)
	fmt.Fprintf(w, "Messages: %d\n", st.MessagesTotal)
	fmt.Fprintf(w, "Average match score: %.1f\n", st.AverageScore)
}

func printFollowups(w io.Writer, due []leads.Lead, now time.Time) {
	if len(due) == 0 {
		fmt.Fprintf(w, "No follow-ups due on %s.\n", now.Format("2006-01-02"))
		return
	}
	fmt.Fprintf(w, "Follow-ups due on %s (%d):\n", now.Format("2006-01-02"), len(due))
	for _, l := range due {
		fmt.Fprintf(w, "  - %s %s [%s] reminder %s\n", valueOr(l.Name, "unknown"), l.Phone, valueOr(l.Status, leads.StatusNew), l.ReminderDate)
	}
}

func statusCmd(w io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintf(w, "%s Status\n", appName)
	fmt.Fprintf(w, "Version: %s\n", formatVersion())
	if build, _ := formatBuildInfo(); build != "" {
		fmt.Fprintf(w, "Build: %s\n", build)
	}
	fmt.Fprintln(w)

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "not set"
	}
	fmt.Fprintln(w, "Config:", configPath, mark(fileExists(configPath)))

	provider, configured, mode, err := providers.ProviderCredentialStatus(cfg)
	if err != nil {
		fmt.Fprintf(w, "Model provider: %v\n", err)
	} else {
		fmt.Fprintf(w, "Model: %s via %s (%s %s)\n", cfg.Model.Name, provider, mark(configured), mode)
	}

	wa := cfg.Channels.WhatsApp
	fmt.Fprintln(w, "WhatsApp (Green API):", mark(wa.Enabled && wa.InstanceID != "" && wa.APIToken != ""))
	fmt.Fprintln(w, "Discord mirror:", mark(cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != ""))
	fmt.Fprintln(w, "Operator chat:", valueOr(cfg.Notify.OperatorChatID, "not set"))

	switch strings.ToLower(cfg.Leads.Driver) {
	case "sheets":
		fmt.Fprintln(w, "Lead store: sheets", mark(cfg.Leads.SheetID != "" && fileExists(config.ExpandHome(cfg.Leads.CredentialsFile))))
	default:
		fmt.Fprintf(w, "Lead store: %s %s\n", valueOr(cfg.Leads.Driver, "sqlite"), cfg.SQLitePath())
	}
	fmt.Fprintln(w, "Event broker:", mark(cfg.Events.AMQPURL != ""))
	if cfg.Followup.Enabled {
		fmt.Fprintln(w, "Follow-up digest:", cfg.Followup.Schedule)
	} else {
		fmt.Fprintln(w, "Follow-up digest: disabled")
	}
	fmt.Fprintf(w, "Gateway: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
