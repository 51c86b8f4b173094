package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/agent"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/channels"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/cron"
	"github.com/dotsetgreg/leadbot/pkg/health"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const gatewayShutdownTimeout = 30 * time.Second

func gatewayCmd(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := openStore(ctx, cfg, cfg.Leads.Driver)
	if err != nil {
		return fmt.Errorf("open lead store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	model, err := openModel(cfg, p, m)
	if err != nil {
		return err
	}

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	manager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}
	wa, ok := manager.WhatsApp()
	if !ok {
		return errors.New("the gateway needs channels.whatsapp.enabled")
	}
	transport := wa.Transport()

	notifier := agent.NewOperatorNotifier(transport, cfg.Notify.OperatorChatID)
	if cfg.Channels.Discord.Enabled && cfg.Notify.DiscordChannelID != "" {
		notifier.Mirror(msgBus, channels.ChannelDiscord, cfg.Notify.DiscordChannelID)
	}

	engine := agent.NewEngine(
		agent.EngineConfigFrom(cfg, p),
		pipelineDeps(transport, model, store, notifier, publisher, m),
		msgBus,
	)

	server := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, health.Options{
		Gatherer:     reg,
		WebhookToken: cfg.Gateway.WebhookToken,
		Webhook:      wa.HandleWebhook,
	})
	server.RegisterCheck("channels", func(context.Context) error {
		if stopped := manager.Stopped(); len(stopped) > 0 {
			return fmt.Errorf("not running: %s", strings.Join(stopped, ", "))
		}
		return nil
	})

	var followup *cron.FollowupService
	if cfg.Followup.Enabled {
		if store == nil {
			return errors.New("followup.enabled needs a lead store")
		}
		followup, err = cron.NewFollowupService(cfg.Followup.Schedule, store, transport, cfg.Notify.OperatorChatID, cfg.Location())
		if err != nil {
			return err
		}
		if cfg.Channels.Discord.Enabled && cfg.Notify.DiscordChannelID != "" {
			followup.Mirror(msgBus, channels.ChannelDiscord, cfg.Notify.DiscordChannelID)
		}
	}

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(manager.GetEnabledChannels(), ", "))
	fmt.Printf("✓ Gateway listening on %s:%d (/health, /ready, /metrics)\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if model == nil {
		fmt.Println("! No model credentials: customers get the offline reply")
	}
	if followup != nil {
		fmt.Printf("✓ Follow-up digest scheduled: %s\n", cfg.Followup.Schedule)
	}
	fmt.Println("Press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	if followup != nil {
		g.Go(func() error { return followup.Run(gctx) })
	}
	runErr := g.Wait()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gatewayShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := manager.StopAll(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop channels: %w", err))
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain turns: %w", err))
	}
	logger.InfoC("gateway", "Gateway stopped")
	logger.Sync()
	fmt.Println("✓ Gateway stopped")
	return errors.Join(errs...)
}
