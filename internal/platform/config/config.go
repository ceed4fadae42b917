// Package config loads process configuration from the environment, an
// optional .env file and an optional YAML overlay. Environment variables win
// over the overlay; the overlay wins over defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	dErrors "attendsync/pkg/domain-errors"
	pstrings "attendsync/pkg/platform/strings"
)

// Document store backends.
const (
	DocStoreSurreal = "surrealdb"
	DocStoreMongo   = "mongo"
	DocStoreMemory  = "memory"
)

// Reconciliation queue backends.
const (
	QueueLog   = "log"
	QueueRedis = "redis"
	QueueKafka = "kafka"
)

const (
	// MaxBatchSize caps rows per backfill transaction.
	MaxBatchSize = 500

	defaultTxTimeout = 5 * time.Second
)

// Config is the full process configuration.
type Config struct {
	Addr        string          `yaml:"addr"`
	Environment string          `yaml:"environment"`
	LogLevel    string          `yaml:"log_level"`
	Database    DatabaseConfig  `yaml:"database"`
	DocStore    DocStoreConfig  `yaml:"docstore"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Backfill    BackfillConfig  `yaml:"backfill"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`

	// AllowInsecure permits sslmode=disable, allow or prefer. Development only.
	AllowInsecure bool `yaml:"allow_insecure"`
}

// DocStoreConfig selects and configures the document store.
type DocStoreConfig struct {
	Backend          string `yaml:"backend"`
	SurrealURL       string `yaml:"surreal_url"`
	SurrealNamespace string `yaml:"surreal_namespace"`
	SurrealDatabase  string `yaml:"surreal_database"`
	SurrealUser      string `yaml:"surreal_user"`
	SurrealPass      string `yaml:"surreal_pass"`
	MongoURI         string `yaml:"mongo_uri"`
	MongoDatabase    string `yaml:"mongo_database"`
}

// ReconcileConfig selects the queue that receives compensating actions.
type ReconcileConfig struct {
	Backend      string      `yaml:"backend"`
	Redis        RedisConfig `yaml:"redis"`
	RedisKey     string      `yaml:"redis_key"`
	KafkaBrokers []string    `yaml:"kafka_brokers"`
	KafkaTopic   string      `yaml:"kafka_topic"`
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BackfillConfig tunes the backfill job.
type BackfillConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:        ":8080",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       defaultTxTimeout,
		},
		DocStore: DocStoreConfig{
			SurrealNamespace: "attendance",
			SurrealDatabase:  "attendance",
			MongoDatabase:    "attendance",
		},
		Reconcile: ReconcileConfig{
			Backend:  QueueLog,
			RedisKey: "attendsync:reconcile",
			Redis: RedisConfig{
				PoolSize:     10,
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			KafkaTopic: "attendsync.reconcile",
		},
		Backfill: BackfillConfig{BatchSize: MaxBatchSize},
	}
}

// FromEnv loads .env (if present), the SYNC_CONFIG_FILE overlay (if set) and
// the process environment, then validates the result.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, dErrors.Wrap(err, dErrors.CodeConfiguration, "failed to load .env file")
	}
	return Load(os.LookupEnv)
}

// Load builds a Config from the given lookup function. It never touches the
// process environment directly.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("SYNC_CONFIG_FILE"); ok && path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "failed to read config file "+path)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "failed to parse config file "+path)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, key+" must be an integer")
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, key+" must be a duration")
		}
		*dst = d
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, key+" must be a boolean")
		}
		*dst = b
		return nil
	}

	str("SYNC_ADDR", &cfg.Addr)
	str("APP_ENV", &cfg.Environment)
	str("LOG_LEVEL", &cfg.LogLevel)

	str("DATABASE_URL", &cfg.Database.URL)
	str("DOCSTORE_BACKEND", &cfg.DocStore.Backend)
	str("SURREALDB_URL", &cfg.DocStore.SurrealURL)
	str("SURREALDB_NAMESPACE", &cfg.DocStore.SurrealNamespace)
	str("SURREALDB_DATABASE", &cfg.DocStore.SurrealDatabase)
	str("SURREALDB_USER", &cfg.DocStore.SurrealUser)
	str("SURREALDB_PASS", &cfg.DocStore.SurrealPass)
	str("MONGODB_URI", &cfg.DocStore.MongoURI)
	str("MONGODB_DATABASE", &cfg.DocStore.MongoDatabase)

	str("RECONCILE_QUEUE", &cfg.Reconcile.Backend)
	str("REDIS_URL", &cfg.Reconcile.Redis.URL)
	str("RECONCILE_REDIS_KEY", &cfg.Reconcile.RedisKey)
	str("RECONCILE_KAFKA_TOPIC", &cfg.Reconcile.KafkaTopic)
	if v, ok := lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(v) != "" {
		cfg.Reconcile.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(v, ","))
	}

	for _, f := range []func() error{
		func() error { return num("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return num("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error { return dur("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime) },
		func() error { return dur("DB_TX_TIMEOUT", &cfg.Database.TxTimeout) },
		func() error { return flag("DB_ALLOW_INSECURE", &cfg.Database.AllowInsecure) },
		func() error { return num("REDIS_POOL_SIZE", &cfg.Reconcile.Redis.PoolSize) },
		func() error { return num("BACKFILL_BATCH_SIZE", &cfg.Backfill.BatchSize) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	cfg.DocStore.Backend = strings.ToLower(cfg.DocStore.Backend)
	cfg.Reconcile.Backend = strings.ToLower(cfg.Reconcile.Backend)
	return nil
}

// Validate checks that every required setting is present. Backends left
// unset are inferred from which credentials were supplied.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return dErrors.New(dErrors.CodeConfiguration, "DATABASE_URL is required")
	}
	if c.Database.AllowInsecure && c.IsProduction() {
		return dErrors.New(dErrors.CodeConfiguration, "DB_ALLOW_INSECURE cannot be set in production")
	}

	if c.DocStore.Backend == "" {
		switch {
		case c.DocStore.SurrealURL != "":
			c.DocStore.Backend = DocStoreSurreal
		case c.DocStore.MongoURI != "":
			c.DocStore.Backend = DocStoreMongo
		default:
			return dErrors.New(dErrors.CodeConfiguration, "document store credentials are required (SURREALDB_URL or MONGODB_URI)")
		}
	}
	switch c.DocStore.Backend {
	case DocStoreSurreal:
		if c.DocStore.SurrealURL == "" || c.DocStore.SurrealNamespace == "" || c.DocStore.SurrealDatabase == "" {
			return dErrors.New(dErrors.CodeConfiguration, "SURREALDB_URL, SURREALDB_NAMESPACE and SURREALDB_DATABASE are required")
		}
	case DocStoreMongo:
		if c.DocStore.MongoURI == "" || c.DocStore.MongoDatabase == "" {
			return dErrors.New(dErrors.CodeConfiguration, "MONGODB_URI and MONGODB_DATABASE are required")
		}
	case DocStoreMemory:
	default:
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown document store backend %q", c.DocStore.Backend))
	}

	switch c.Reconcile.Backend {
	case "", QueueLog:
		c.Reconcile.Backend = QueueLog
	case QueueRedis:
		if c.Reconcile.Redis.URL == "" {
			return dErrors.New(dErrors.CodeConfiguration, "REDIS_URL is required for the redis reconciliation queue")
		}
	case QueueKafka:
		if len(c.Reconcile.KafkaBrokers) == 0 {
			return dErrors.New(dErrors.CodeConfiguration, "KAFKA_BROKERS is required for the kafka reconciliation queue")
		}
	default:
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown reconciliation queue %q", c.Reconcile.Backend))
	}

	if c.Backfill.BatchSize <= 0 || c.Backfill.BatchSize > MaxBatchSize {
		c.Backfill.BatchSize = MaxBatchSize
	}
	if c.Database.TxTimeout <= 0 {
		c.Database.TxTimeout = defaultTxTimeout
	}
	return nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
