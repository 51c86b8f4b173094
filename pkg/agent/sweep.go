package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
)

// Sweeper periodically asks the transport for recent incoming messages and
// feeds the ones nobody processed back through the intake.
type Sweeper struct {
	transport Transport
	intake    *Intake
	interval  time.Duration
	window    time.Duration
	metrics   *metrics.Metrics
}

func NewSweeper(transport Transport, intake *Intake, interval, window time.Duration, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Sweeper{
		transport: transport,
		intake:    intake,
		interval:  interval,
		window:    window,
		metrics:   m,
	}
}

// Run sweeps every interval until ctx is cancelled. A failed cycle is
// logged and the next one runs on schedule.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.InfoCF("sweep", "Sweep loop started", map[string]interface{}{
		"interval": s.interval.String(),
		"window":   s.window.String(),
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("sweep", "Sweep loop stopped")
			return nil
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				logger.WarnCF("sweep", "Sweep cycle failed", map[string]interface{}{
					"error": err,
				})
				continue
			}
			if n > 0 {
				logger.InfoCF("sweep", "Recovered unanswered messages", map[string]interface{}{
					"count": n,
				})
			}
		}
	}
}

// RunOnce performs one sweep and returns how many messages were buffered.
func (s *Sweeper) RunOnce(ctx context.Context) (recovered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()

	msgs, err := s.transport.FetchUnanswered(ctx, s.window)
	if err != nil {
		return 0, fmt.Errorf("fetch unanswered: %w", err)
	}
	for _, msg := range msgs {
		if msg.MessageID == "" {
			continue
		}
		msg.Source = bus.SourceSweep
		if s.intake.Accept(ctx, msg) == ResultAccepted {
			recovered++
		}
	}
	s.metrics.SweepRecovered(recovered)
	return recovered, nil
}
