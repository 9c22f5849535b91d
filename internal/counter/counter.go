// Package counter runs one n-gram counting pass: documents are tokenised by
// a pool of extractors, folded into bounded in-memory chunks, spilled to
// sorted chunk files, merged into a single aggregated file and reduced to
// the top-K n-grams, which are handed to the result sink.
package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/document"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/output"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/topk"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/tracing"
)

// Summary reports what a completed run did.
type Summary struct {
	RunID       string         `json:"run_id"`
	Documents   uint64         `json:"documents"`
	Skipped     uint64         `json:"skipped"`
	Occurrences uint64         `json:"occurrences"`
	Chunks      int            `json:"chunks"`
	MergeRounds int            `json:"merge_rounds"`
	Distinct    uint64         `json:"distinct"`
	Rows        int            `json:"rows"`
	Floor       uint64         `json:"floor"`
	Duration    time.Duration  `json:"duration"`
	Results     []ngram.Record `json:"-"`
}

// Counter executes counting runs for one configuration.
type Counter struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	notifier *Notifier
	skipped  atomic.Uint64
	logger   *slog.Logger
}

// New returns a Counter. cfg must already be validated. A nil notifier
// disables run-completion events.
func New(cfg *config.Config, m *metrics.Metrics, notifier *Notifier) *Counter {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Counter{
		cfg:      cfg,
		metrics:  m,
		notifier: notifier,
		logger:   logger.WithComponent("counter"),
	}
}

// OnSkip records a document dropped by the source as malformed. It is meant
// to be passed as document.Options.OnSkip.
func (c *Counter) OnSkip(path string, line int, err error) {
	c.skipped.Add(1)
	c.metrics.DocumentsSkippedTotal.Inc()
}

// Run counts src and writes the top-K rows to sink. On failure the sink is
// never written. The run's scratch directory is removed on success, and on
// failure unless the configuration asks to keep it.
func (c *Counter) Run(ctx context.Context, src document.Source, sink output.Sink) (summary *Summary, err error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := c.logger.With("run_id", runID)
	c.skipped.Store(0)

	ctx, root := tracing.Start(ctx, "run", runID, func(name string, d time.Duration) {
		c.metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	})
	defer func() {
		root.End()
		if c.cfg.Tracing.Enabled {
			root.Log(log)
		}
	}()

	cacheDir := filepath.Join(c.cfg.Counter.CacheDir, runID)
	if mkErr := os.MkdirAll(cacheDir, 0o755); mkErr != nil {
		return nil, apperrors.Newf(apperrors.ErrCacheDir, apperrors.ExitFailure, "creating cache directory %s: %v", cacheDir, mkErr)
	}
	defer func() {
		if err != nil && c.cfg.Counter.KeepCacheOnError {
			log.Warn("cache directory kept for inspection", "path", cacheDir)
			return
		}
		if rmErr := os.RemoveAll(cacheDir); rmErr != nil {
			log.Warn("failed to remove cache directory", "path", cacheDir, "error", rmErr)
			return
		}
		// Succeeds only when no other run shares the parent.
		os.Remove(c.cfg.Counter.CacheDir)
	}()

	log.Info("run started",
		"fields", c.cfg.Counter.Fields,
		"size", c.cfg.Counter.Size,
		"top", c.cfg.Counter.Top,
		"chunk_size", c.cfg.Counter.ChunkSize,
		"workers", c.cfg.Counter.Workers,
		"cache_dir", cacheDir,
	)

	summary = &Summary{RunID: runID}
	writer := chunk.NewWriter(cacheDir)

	paths, err := c.extract(ctx, src, writer, summary)
	if err != nil {
		return nil, err
	}
	summary.Skipped = c.skipped.Load()
	summary.Chunks = len(paths)

	final, err := c.merge(ctx, writer, paths, summary)
	if err != nil {
		return nil, err
	}

	if err := c.selectTop(ctx, final, summary); err != nil {
		return nil, err
	}

	if err := c.write(ctx, sink, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	log.Info("run complete",
		"documents", summary.Documents,
		"skipped", summary.Skipped,
		"occurrences", summary.Occurrences,
		"chunks", summary.Chunks,
		"merge_rounds", summary.MergeRounds,
		"distinct", summary.Distinct,
		"rows", summary.Rows,
		"floor", summary.Floor,
		"duration", summary.Duration,
	)
	if c.notifier != nil {
		c.notifier.RunCompleted(ctx, c.cfg, summary)
	}
	return summary, nil
}

// extract streams src through the extractor pool into the accumulator and
// returns the chunk files written.
func (c *Counter) extract(ctx context.Context, src document.Source, writer *chunk.Writer, summary *Summary) ([]string, error) {
	ctx, span := tracing.StartChild(ctx, "extract")
	defer span.End()
	log := logger.FromContext(ctx).With("component", "counter")

	workers := c.cfg.Counter.Workers
	if workers < 1 {
		workers = 1
	}
	extractors := make([]*ngram.Extractor, workers)
	for i := range extractors {
		ex, err := ngram.NewExtractor(c.cfg.Counter.Fields, ngram.Options{
			Size:      c.cfg.Counter.Size,
			KeepCase:  c.cfg.Counter.KeepCase,
			KeepPunct: c.cfg.Counter.KeepPunct,
		})
		if err != nil {
			return nil, err
		}
		extractors[i] = ex
	}

	g, gctx := errgroup.WithContext(ctx)
	docs := make(chan document.Document, workers*2)
	local := make(chan ngram.Counts, workers*2)

	g.Go(func() error {
		defer close(docs)
		return src.Each(gctx, func(ctx context.Context, doc document.Document) error {
			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var wg sync.WaitGroup
	for _, ex := range extractors {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for doc := range docs {
				counts := ex.Extract(doc)
				select {
				case local <- counts:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(local)
		return nil
	})

	var paths []string
	acc := ngram.NewAccumulator(c.cfg.Counter.ChunkSize)
	spill := func(counts ngram.Counts) error {
		path, err := writer.WriteCounts(counts)
		if err != nil {
			return fmt.Errorf("%w: writing chunk %d: %v", apperrors.ErrCacheDir, len(paths)+1, err)
		}
		paths = append(paths, path)
		c.metrics.ChunksWrittenTotal.Inc()
		c.metrics.ChunkRecords.Observe(float64(len(counts)))
		log.Debug("chunk written", "path", path, "records", len(counts))
		return nil
	}
	g.Go(func() error {
		for counts := range local {
			total := counts.Total()
			summary.Documents++
			summary.Occurrences += total
			c.metrics.DocumentsTotal.Inc()
			c.metrics.NgramsExtractedTotal.Add(float64(total))
			acc.Add(counts)
			if every := c.cfg.Counter.ProgressEvery; every > 0 && summary.Documents%uint64(every) == 0 {
				log.Info("extraction progress",
					"documents", summary.Documents,
					"chunks", len(paths),
					"buffered", acc.Len(),
				)
			}
			if full, ok := acc.Drain(); ok {
				if err := spill(full); err != nil {
					return err
				}
			}
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if rest, ok := acc.Flush(); ok {
			return spill(rest)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Newf(apperrors.ErrAborted, apperrors.ExitAborted,
				"extraction stopped after %d documents: %v", summary.Documents, ctx.Err())
		}
		return nil, err
	}
	span.SetAttr("documents", summary.Documents)
	span.SetAttr("chunks", len(paths))
	log.Info("extraction complete",
		"documents", summary.Documents,
		"occurrences", summary.Occurrences,
		"chunks", len(paths),
	)
	return paths, nil
}

func (c *Counter) merge(ctx context.Context, writer *chunk.Writer, paths []string, summary *Summary) (string, error) {
	ctx, span := tracing.StartChild(ctx, "merge")
	defer span.End()

	engine := merge.NewEngine(writer, merge.Options{
		Workers: c.cfg.Counter.Workers,
		FanIn:   c.cfg.Counter.FanIn,
		Metrics: c.metrics,
	})
	final, stats, err := engine.Merge(ctx, paths)
	summary.MergeRounds = stats.Rounds
	span.SetAttr("rounds", stats.Rounds)
	if err != nil {
		return "", err
	}
	return final, nil
}

func (c *Counter) selectTop(ctx context.Context, final string, summary *Summary) error {
	_, span := tracing.StartChild(ctx, "select")
	defer span.End()

	sel := topk.NewSelector(c.cfg.Counter.Top)
	err := chunk.Each(final, func(r ngram.Record) error {
		sel.Add(r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading merged chunk: %w", err)
	}
	summary.Results = sel.Results()
	summary.Distinct = sel.Seen()
	summary.Rows = len(summary.Results)
	summary.Floor = sel.Floor()
	c.metrics.NgramsRetained.Set(float64(summary.Rows))
	span.SetAttr("rows", summary.Rows)
	return nil
}

func (c *Counter) write(ctx context.Context, sink output.Sink, summary *Summary) error {
	ctx, span := tracing.StartChild(ctx, "write")
	defer span.End()

	if err := sink.Write(ctx, c.cfg.Counter.Size, summary.Results); err != nil {
		if errors.Is(err, apperrors.ErrSink) {
			return err
		}
		return fmt.Errorf("%w: %v", apperrors.ErrSink, err)
	}
	return nil
}
