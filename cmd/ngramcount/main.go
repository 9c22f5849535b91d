package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/counter"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/document"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/output"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	flag.String("source", "", "JSONL file, text file or folder to count")
	flag.String("dest", "", "result path (.csv, .db/.sqlite)")
	flag.String("fields", "", "comma separated fields to tokenise")
	flag.Int("size", 0, "n-gram length")
	flag.Int("top", 0, "number of most frequent n-grams to keep, ties included")
	flag.Int("chunk-size", 0, "distinct n-grams buffered in memory per chunk")
	flag.Bool("keep-case", false, "do not upper-case lines")
	flag.Bool("keep-punct", false, "do not replace punctuation with spaces")
	flag.Int("workers", 0, "extraction and merge workers")
	flag.String("format", "", "output format: csv, sqlite or postgres")
	flag.String("cache-dir", "", "scratch directory for chunk files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitUsage
	}
	if err := applyFlags(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flag: %v\n", err)
		return apperrors.ExitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return apperrors.ExitCode(err)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting n-gram counter",
		"source", cfg.Source.Path,
		"dest", cfg.Output.Path,
		"format", cfg.Output.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewNop()
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		checker := health.NewChecker()
		checker.Register("cache_dir", health.DirWritable(cfg.Counter.CacheDir))
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	var notifier *counter.Notifier
	if cfg.Notify.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RunComplete)
		defer producer.Close()
		notifier = counter.NewNotifier(producer, cfg.Notify)
	}

	c := counter.New(cfg, m, notifier)
	src, err := document.Open(cfg.Source.Path, document.Options{
		Fields:    cfg.Counter.Fields,
		TextField: cfg.Source.TextField,
		OnSkip:    c.OnSkip,
	})
	if err != nil {
		slog.Error("failed to open source", "error", err)
		return apperrors.ExitCode(err)
	}

	sink, err := output.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open output", "error", err)
		return apperrors.ExitCode(err)
	}
	defer sink.Close()

	summary, err := c.Run(ctx, src, sink)
	if err != nil {
		slog.Error("run failed", "error", err)
		return apperrors.ExitCode(err)
	}
	slog.Info("n-gram counter finished",
		"run_id", summary.RunID,
		"rows", summary.Rows,
		"duration", summary.Duration,
	)
	return 0
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "source":
			cfg.Source.Path = v
		case "dest":
			cfg.Output.Path = v
		case "fields":
			cfg.Counter.Fields = config.SplitList(v)
		case "size":
			cfg.Counter.Size, err = strconv.Atoi(v)
		case "top":
			cfg.Counter.Top, err = strconv.Atoi(v)
		case "chunk-size":
			cfg.Counter.ChunkSize, err = strconv.Atoi(v)
		case "keep-case":
			cfg.Counter.KeepCase, err = strconv.ParseBool(v)
		case "keep-punct":
			cfg.Counter.KeepPunct, err = strconv.ParseBool(v)
		case "workers":
			cfg.Counter.Workers, err = strconv.Atoi(v)
		case "format":
			cfg.Output.Format = v
		case "cache-dir":
			cfg.Counter.CacheDir = v
		}
	})
	return err
}
