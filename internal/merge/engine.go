// Package merge reduces a set of sorted chunk files to one sorted,
// fully aggregated chunk. Files are merged in rounds: each round splits the
// live files into consecutive groups of fan-in files, merges the groups in
// parallel and carries a lone trailing file over untouched.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/chunk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/metrics"
)

// DefaultFanIn merges files pairwise.
const DefaultFanIn = 2

type Options struct {
	Workers int
	FanIn   int
	Metrics *metrics.Metrics
}

// Engine runs merge rounds over chunk files in one cache directory.
type Engine struct {
	writer  *chunk.Writer
	workers int
	fanIn   int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(writer *chunk.Writer, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FanIn < 2 {
		opts.FanIn = DefaultFanIn
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	return &Engine{
		writer:  writer,
		workers: opts.Workers,
		fanIn:   opts.FanIn,
		metrics: opts.Metrics,
		logger:  logger.WithComponent("merge-engine"),
	}
}

// Stats describes a completed merge.
type Stats struct {
	Rounds int
	Merged int
}

// Merge consumes paths and returns the single chunk left at the end. An empty
// input yields a new empty chunk. ctx is checked between rounds only; a round
// that has started always runs to completion. Inputs of a group are deleted
// only after the group's output is committed, so after a failure the live
// files still add up to the full table.
func (e *Engine) Merge(ctx context.Context, paths []string) (string, Stats, error) {
	var stats Stats
	if len(paths) == 0 {
		path, err := e.writer.Write(nil)
		return path, stats, err
	}
	live := append([]string(nil), paths...)
	e.metrics.LiveChunks.Set(float64(len(live)))
	for len(live) > 1 {
		if err := ctx.Err(); err != nil {
			return "", stats, apperrors.Newf(apperrors.ErrAborted, apperrors.ExitAborted,
				"merge stopped before round %d with %d chunks left: %v", stats.Rounds+1, len(live), err)
		}
		stats.Rounds++
		start := time.Now()
		next, merged, err := e.round(live)
		stats.Merged += merged
		if err != nil {
			return "", stats, fmt.Errorf("merge round %d: %w", stats.Rounds, err)
		}
		e.metrics.MergeRoundsTotal.Inc()
		e.metrics.LiveChunks.Set(float64(len(next)))
		e.logger.Info("merge round complete",
			"round", stats.Rounds,
			"chunks_in", len(live),
			"chunks_left", len(next),
			"duration", time.Since(start),
		)
		live = next
	}
	return live[0], stats, nil
}

// round merges every group concurrently and waits for all of them. A group
// failure stops groups that have not started yet; groups already running
// finish and keep their outputs.
func (e *Engine) round(paths []string) ([]string, int, error) {
	groups := Group(paths, e.fanIn)
	out := make([]string, len(groups))
	merged := make([]bool, len(groups))
	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.workers)
	for i, grp := range groups {
		if len(grp) == 1 {
			out[i] = grp[0]
			e.metrics.MergeGroupsTotal.WithLabelValues("carried").Inc()
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			start := time.Now()
			path, err := e.MergeGroup(grp)
			if err != nil {
				e.metrics.MergeGroupsTotal.WithLabelValues("error").Inc()
				return err
			}
			e.metrics.MergeGroupsTotal.WithLabelValues("merged").Inc()
			e.metrics.MergeDuration.Observe(time.Since(start).Seconds())
			out[i] = path
			merged[i] = true
			return nil
		})
	}
	err := g.Wait()
	n := 0
	for _, ok := range merged {
		if ok {
			n++
		}
	}
	if err != nil {
		return nil, n, err
	}
	return out, n, nil
}

// Group splits paths into consecutive groups of at most fanIn files,
// preserving order. Only the last group can be short.
func Group(paths []string, fanIn int) [][]string {
	if fanIn < 2 {
		fanIn = DefaultFanIn
	}
	groups := make([][]string, 0, (len(paths)+fanIn-1)/fanIn)
	for start := 0; start < len(paths); start += fanIn {
		end := min(start+fanIn, len(paths))
		groups = append(groups, paths[start:end:end])
	}
	return groups
}

// MergeGroup merges the given sorted chunks into a new chunk, summing the
// counts of equal n-grams, and deletes the inputs once the output is durable.
func (e *Engine) MergeGroup(paths []string) (string, error) {
	path, err := mergeFiles(e.writer, paths)
	if err != nil {
		return "", err
	}
	e.metrics.ChunksWrittenTotal.Inc()
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			e.logger.Warn("failed to delete merged chunk", "chunk", p, "error", err)
		}
	}
	e.logger.Debug("chunk group merged", "inputs", len(paths), "output", path)
	return path, nil
}
