// Package config loads the settings shared by the daemon and the CLI.
//
// Sources are applied in order, later ones winning:
//
//	defaults
//	.env in the working directory (loaded into the environment)
//	JSON or YAML file given with -c / -config
//	FILEPOOL_* environment variables
//	command-line flags
//
// The result is checked with Validate.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const EnvPrefix = "FILEPOOL_"

type Config struct {
	DataDir string `env:"DATA_DIR,overwrite" validate:"required"`

	StoreDriver string `env:"STORE_DRIVER,overwrite" validate:"oneof=sqlite postgres leveldb"`
	// DatabaseDSN defaults to a file under DataDir for sqlite and leveldb.
	DatabaseDSN string `env:"DATABASE_DSN,overwrite" validate:"required_if=StoreDriver postgres"`

	ContentBackend string `env:"CONTENT_BACKEND,overwrite" validate:"oneof=disk s3"`
	// ContentDir defaults to DataDir/files.
	ContentDir  string `env:"CONTENT_DIR,overwrite"`
	S3Bucket    string `env:"S3_BUCKET,overwrite" validate:"required_if=ContentBackend s3"`
	S3Region    string `env:"S3_REGION,overwrite"`
	S3Endpoint  string `env:"S3_ENDPOINT,overwrite" validate:"omitempty,url"`
	S3AccessKey string `env:"S3_ACCESS_KEY,overwrite"`
	S3SecretKey string `env:"S3_SECRET_KEY,overwrite"`
	S3Prefix    string `env:"S3_PREFIX,overwrite"`

	ListenAddr        string        `env:"LISTEN_ADDR,overwrite" validate:"required"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL,overwrite" validate:"required,url"`
	GRPCAddr          string        `env:"GRPC_ADDR,overwrite"`
	SecretKey         string        `env:"SECRET_KEY,overwrite" validate:"required,min=8"`
	LinkTTL           time.Duration `env:"LINK_TTL,overwrite" validate:"gt=0s"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS,overwrite"`
	RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE,overwrite" validate:"gte=0"`

	OfflineRetry time.Duration `env:"OFFLINE_RETRY,overwrite" validate:"gt=0s"`
	PingInterval time.Duration `env:"PING_INTERVAL,overwrite" validate:"gt=0s"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL,overwrite" validate:"gte=0s"`
	// ProbeURL is pinged to decide online/offline. Empty means the
	// registered sites are pinged instead.
	ProbeURL string `env:"PROBE_URL,overwrite" validate:"omitempty,url"`

	LogLevel     string `env:"LOG_LEVEL,overwrite" validate:"oneof=debug info warn warning error"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT,overwrite"`
	NATSURL      string `env:"NATS_URL,overwrite" validate:"omitempty,url"`
	NATSPrefix   string `env:"NATS_PREFIX,overwrite"`
}

// LoadDefaults sets development defaults. SecretKey must be overridden in
// any shared deployment.
func (c *Config) LoadDefaults() {
	c.DataDir = ".filepool"
	c.StoreDriver = "sqlite"
	c.ContentBackend = "disk"
	c.S3Region = "us-east-1"
	c.ListenAddr = "127.0.0.1:8765"
	c.PublicBaseURL = "http://127.0.0.1:8765"
	c.GRPCAddr = "127.0.0.1:50051"
	c.SecretKey = "change-me-please"
	c.LinkTTL = time.Hour
	c.RequestsPerMinute = 600
	c.OfflineRetry = 30 * time.Second
	c.PingInterval = 30 * time.Second
	c.SyncInterval = 30 * time.Minute
	c.LogLevel = "info"
	c.NATSPrefix = "filepool"
}

// LoadConfig builds the configuration from every source for the given
// command-line arguments (without the program name).
func LoadConfig(ctx context.Context, args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	// A missing .env is fine.
	_ = godotenv.Load()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(ctx, cfg, envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	})
	if err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// StoreDSN is DatabaseDSN with the per-driver default applied.
func (c *Config) StoreDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	switch c.StoreDriver {
	case "leveldb":
		return filepath.Join(c.DataDir, "filepool.ldb")
	default:
		return filepath.Join(c.DataDir, "filepool.db")
	}
}

// ContentRoot is ContentDir with its default applied.
func (c *Config) ContentRoot() string {
	if c.ContentDir != "" {
		return c.ContentDir
	}
	return filepath.Join(c.DataDir, "files")
}

// EnsureDataDir creates DataDir when it does not exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return nil
}
