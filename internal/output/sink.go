// Package output writes the selected n-grams to their destination. Every
// sink replaces prior output as a whole: a run either leaves a complete new
// result or the previous one untouched.
package output

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/resilience"
)

// Columns of every result table, in order.
var Columns = []string{"n", "count", "ngram"}

// Sink stores one run's result rows of (n, count, ngram).
type Sink interface {
	Write(ctx context.Context, size int, rows []ngram.Record) error
	Close() error
}

// Open builds the sink selected by cfg.Output.Format.
func Open(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.Output.Format {
	case "csv":
		return &CSVFile{Path: cfg.Output.Path}, nil
	case "sqlite":
		return NewSQLiteFile(cfg.Output.Path, cfg.Output.Table)
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "connecting result database: %v", err)
		}
		sink, err := NewTable(client.DB, Postgres, cfg.Output.Table)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &retrying{
			Sink: sink,
			name: "postgres-sink",
			cfg: resilience.RetryConfig{
				MaxAttempts: cfg.Output.MaxAttempts,
				Retryable:   postgres.Retryable,
			},
		}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown output format %q", cfg.Output.Format)
	}
}

// retrying repeats a failed Write. Sinks write all rows in one transaction,
// so a retry never duplicates rows.
type retrying struct {
	Sink
	name string
	cfg  resilience.RetryConfig
}

func (r *retrying) Write(ctx context.Context, size int, rows []ngram.Record) error {
	err := resilience.Retry(ctx, r.name, r.cfg, func(ctx context.Context) error {
		return r.Sink.Write(ctx, size, rows)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSink, err)
	}
	return nil
}
