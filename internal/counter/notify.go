package counter

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/resilience"
)

// Publisher delivers one event. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// RunCompleted is the event published after the result sink was written.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Format      string    `json:"format"`
	Size        int       `json:"size"`
	Top         int       `json:"top"`
	Documents   uint64    `json:"documents"`
	Skipped     uint64    `json:"skipped"`
	Distinct    uint64    `json:"distinct"`
	Rows        int       `json:"rows"`
	Floor       uint64    `json:"floor"`
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier announces completed runs. Delivery is retried; a notification
// that still fails is logged and does not fail the run, whose output is
// already in place.
type Notifier struct {
	pub    Publisher
	cfg    config.NotifyConfig
	logger *slog.Logger
}

func NewNotifier(pub Publisher, cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		pub:    pub,
		cfg:    cfg,
		logger: logger.WithComponent("run-notifier"),
	}
}

// Event builds the completion event for summary.
func Event(cfg *config.Config, summary *Summary) kafka.Event {
	return kafka.Event{
		Key: summary.RunID,
		Value: RunCompleted{
			RunID:       summary.RunID,
			Source:      cfg.Source.Path,
			Destination: cfg.Output.Path,
			Format:      cfg.Output.Format,
			Size:        cfg.Counter.Size,
			Top:         cfg.Counter.Top,
			Documents:   summary.Documents,
			Skipped:     summary.Skipped,
			Distinct:    summary.Distinct,
			Rows:        summary.Rows,
			Floor:       summary.Floor,
			DurationMS:  summary.Duration.Milliseconds(),
			CompletedAt: time.Now().UTC(),
		},
	}
}

// RunCompleted publishes the completion event and reports whether it was
// delivered.
func (n *Notifier) RunCompleted(ctx context.Context, cfg *config.Config, summary *Summary) bool {
	event := Event(cfg, summary)
	err := resilience.Retry(ctx, "notify-run-complete", resilience.RetryConfig{MaxAttempts: n.cfg.MaxAttempts, Retryable: kafka.Retryable}, func(ctx context.Context) error {
		if n.cfg.Timeout <= 0 {
			return n.pub.Publish(ctx, event)
		}
		ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
		return n.pub.Publish(ctx, event)
	})
	if err != nil {
		n.logger.Error("run completion notification failed", "run_id", summary.RunID, "error", err)
		return false
	}
	n.logger.Info("run completion published", "run_id", summary.RunID)
	return true
}
