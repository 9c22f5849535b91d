// Package config loads and validates the n-gram counter configuration from
// YAML files with environment-variable overrides. It provides typed structs
// for every subsystem (Counter, Source, Output, Postgres, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Counter  CounterConfig  `yaml:"counter"`
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CounterConfig controls tokenisation, the in-memory chunk threshold, and
// the external merge.
type CounterConfig struct {
	Fields           []string `yaml:"fields"`
	Size             int      `yaml:"size"`
	Top              int      `yaml:"top"`
	ChunkSize        int      `yaml:"chunkSize"`
	KeepCase         bool     `yaml:"keepCase"`
	KeepPunct        bool     `yaml:"keepPunct"`
	CacheDir         string   `yaml:"cacheDir"`
	Workers          int      `yaml:"workers"`
	FanIn            int      `yaml:"fanIn"`
	KeepCacheOnError bool     `yaml:"keepCacheOnError"`
	ProgressEvery    int      `yaml:"progressEvery"`
}

// SourceConfig points at the JSONL file or folder holding the corpus.
type SourceConfig struct {
	Path      string `yaml:"path"`
	TextField string `yaml:"textField"`
}

// OutputConfig selects the result sink. Format is one of csv, sqlite or
// postgres; an empty format is inferred from the path extension.
// MaxAttempts bounds retries of network sinks.
type OutputConfig struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`
	Table       string `yaml:"table"`
	MaxAttempts int    `yaml:"maxAttempts"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RunComplete string `yaml:"runComplete"`
}

// NotifyConfig controls the run-completion event.
type NotifyConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles the stage timing span tree logged at the end of a run.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Counter: CounterConfig{
			Fields:        []string{"text"},
			Size:          1,
			Top:           100,
			ChunkSize:     1_000_000,
			Workers:       runtime.NumCPU(),
			FanIn:         2,
			ProgressEvery: 10_000,
		},
		Source: SourceConfig{
			TextField: "text",
		},
		Output: OutputConfig{
			Table:       "ngrams",
			MaxAttempts: 3,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ngramstats",
			User:            "ngramstats",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				RunComplete: "ngram.run.complete",
			},
		},
		Notify: NotifyConfig{
			MaxAttempts: 3,
			Timeout:     10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads NG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NG_FIELDS"); v != "" {
		cfg.Counter.Fields = SplitList(v)
	}
	if v := os.Getenv("NG_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counter.Size = n
		}
	}
	if v := os.Getenv("NG_TOP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counter.Top = n
		}
	}
	if v := os.Getenv("NG_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counter.ChunkSize = n
		}
	}
	if v := os.Getenv("NG_KEEP_CASE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Counter.KeepCase = b
		}
	}
	if v := os.Getenv("NG_KEEP_PUNCT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Counter.KeepPunct = b
		}
	}
	if v := os.Getenv("NG_CACHE_DIR"); v != "" {
		cfg.Counter.CacheDir = v
	}
	if v := os.Getenv("NG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counter.Workers = n
		}
	}
	if v := os.Getenv("NG_SOURCE"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("NG_DEST"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("NG_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("NG_OUTPUT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Output.MaxAttempts = n
		}
	}
	if v := os.Getenv("NG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("NG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("NG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("NG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("NG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("NG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NG_NOTIFY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Notify.Enabled = b
		}
	}
	if v := os.Getenv("NG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the counter options and resolves the output format and
// cache directory.
func (c *Config) Validate() error {
	cc := &c.Counter
	if len(cc.Fields) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "at least one field is required")
	}
	if cc.Size < 1 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "size must be >= 1, got %d", cc.Size)
	}
	if cc.Top < 1 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "top must be >= 1, got %d", cc.Top)
	}
	if cc.ChunkSize < 1 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "chunk size must be >= 1, got %d", cc.ChunkSize)
	}
	if cc.FanIn < 2 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "fan-in must be >= 2, got %d", cc.FanIn)
	}
	if cc.Workers < 1 {
		cc.Workers = runtime.NumCPU()
	}
	if c.Source.Path == "" {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "source path is required")
	}
	if c.Output.Format == "" {
		c.Output.Format = InferFormat(c.Output.Path)
	}
	switch c.Output.Format {
	case "csv", "sqlite":
		if c.Output.Path == "" {
			return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "destination path is required")
		}
	case "postgres":
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown output format %q", c.Output.Format)
	}
	if cc.CacheDir == "" {
		cc.CacheDir = DefaultCacheDir(c.Output.Path)
	}
	return nil
}

// InferFormat maps a destination path to a sink format by extension.
func InferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "csv"
	}
}

// DefaultCacheDir returns the scratch directory next to dest, named after it.
func DefaultCacheDir(dest string) string {
	if dest == "" {
		return filepath.Join(os.TempDir(), "tmp_ngrams")
	}
	return filepath.Join(filepath.Dir(dest), "tmp_"+filepath.Base(dest))
}

// SplitList splits a comma separated option, dropping empty entries.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
