package agent

import (
	"context"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
	"github.com/dotsetgreg/leadbot/pkg/utils"
	"golang.org/x/sync/errgroup"
)

const gaugeInterval = 10 * time.Second

type EngineConfig struct {
	BatchWait          time.Duration
	MaxTrackedMessages int
	MaxHistoryTurns    int
	SweepEnabled       bool
	SweepInterval      time.Duration
	SweepWindow        time.Duration
	Intake             IntakeConfig
	Pipeline           PipelineConfig
}

// EngineConfigFrom maps the bot section of cfg and the prompt set.
func EngineConfigFrom(cfg *config.Config, p prompts.Set) EngineConfig {
	return EngineConfig{
		BatchWait:          cfg.BatchWait(),
		MaxTrackedMessages: cfg.Bot.MaxTrackedMessages,
		MaxHistoryTurns:    cfg.Bot.MaxHistoryTurns,
		SweepEnabled:       cfg.Bot.SweepEnabled,
		SweepInterval:      cfg.SweepInterval(),
		SweepWindow:        cfg.SweepWindow(),
		Intake: IntakeConfig{
			GroupSuffix:     cfg.Bot.GroupSuffix,
			ExcludedNumbers: excludedNumbers(cfg),
			StopKeywords:    cfg.Bot.StopKeywords,
			StopReply:       p.StopReply,
		},
		Pipeline: PipelineConfig{
			Prompts:           p,
			AnalysisEvery:     cfg.Bot.AnalysisEvery,
			HistoryFetchLimit: cfg.Bot.HistoryFetchLimit,
			TurnTimeout:       cfg.TurnTimeout(),
			Location:          cfg.Location(),
		},
	}
}

// excludedNumbers adds the operator's own chat to the configured exclusions
// so operator replies never become lead turns.
func excludedNumbers(cfg *config.Config) []string {
	out := append([]string(nil), cfg.Bot.ExcludedNumbers...)
	if op := utils.NormalizeNumber(cfg.Notify.OperatorChatID); op != "" {
		out = append(out, op)
	}
	return out
}

// Engine owns the shared state of the bot: ledger, session memory, batcher,
// pipeline, intake and sweeper.
type Engine struct {
	cfg      EngineConfig
	Ledger   *Ledger
	Memory   *SessionMemory
	Batcher  *Batcher
	Pipeline *Pipeline
	Intake   *Intake
	Sweeper  *Sweeper
	loop     *AgentLoop
	deps     PipelineDeps
}

func NewEngine(cfg EngineConfig, deps PipelineDeps, msgBus *bus.MessageBus) *Engine {
	e := &Engine{cfg: cfg, deps: deps}
	e.Ledger = NewLedger(cfg.MaxTrackedMessages)
	if deps.Memory == nil {
		deps.Memory = NewSessionMemory(cfg.MaxHistoryTurns)
	}
	e.Memory = deps.Memory
	e.Pipeline = NewPipeline(deps, cfg.Pipeline)
	e.Batcher = NewBatcher(cfg.BatchWait, e.Pipeline.Process)
	e.Intake = NewIntake(cfg.Intake, e.Ledger, e.Batcher, deps.Transport, deps.Metrics)
	if deps.Transport != nil {
		e.Sweeper = NewSweeper(deps.Transport, e.Intake, cfg.SweepInterval, cfg.SweepWindow, deps.Metrics)
	}
	if msgBus != nil {
		e.loop = NewAgentLoop(msgBus, e.Intake)
	}
	return e
}

// Run blocks until ctx is cancelled or a component fails.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if e.loop != nil {
		g.Go(func() error { return e.loop.Run(ctx) })
	}
	if e.cfg.SweepEnabled && e.Sweeper != nil {
		g.Go(func() error { return e.Sweeper.Run(ctx) })
	}
	g.Go(func() error {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.deps.Metrics.SetPendingSessions(e.Batcher.Pending())
			}
		}
	})
	return g.Wait()
}

// Shutdown drops buffered fragments and waits for turns in flight.
func (e *Engine) Shutdown(ctx context.Context) error {
	dropped := e.Batcher.Close()
	if dropped > 0 {
		logger.WarnCF("engine", "Dropped buffered fragments on shutdown", map[string]interface{}{
			"fragments": dropped,
		})
	}
	if e.loop != nil {
		e.loop.Stop()
	}
	e.Intake.Wait()
	return e.Batcher.Wait(ctx)
}
