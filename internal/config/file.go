package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filepool/internal/flagx"
	"github.com/dmitrijs2005/filepool/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept
// "30s" style strings or integer nanoseconds. Unset keys keep the value of
// earlier sources.
type FileConfig struct {
	DataDir           string         `json:"data_dir" yaml:"data_dir"`
	StoreDriver       string         `json:"store_driver" yaml:"store_driver"`
	DatabaseDSN       string         `json:"database_dsn" yaml:"database_dsn"`
	ContentBackend    string         `json:"content_backend" yaml:"content_backend"`
	ContentDir        string         `json:"content_dir" yaml:"content_dir"`
	S3Bucket          string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region          string         `json:"s3_region" yaml:"s3_region"`
	S3Endpoint        string         `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey       string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Prefix          string         `json:"s3_prefix" yaml:"s3_prefix"`
	ListenAddr        string         `json:"listen_addr" yaml:"listen_addr"`
	PublicBaseURL     string         `json:"public_base_url" yaml:"public_base_url"`
	GRPCAddr          string         `json:"grpc_addr" yaml:"grpc_addr"`
	SecretKey         string         `json:"secret_key" yaml:"secret_key"`
	LinkTTL           timex.Duration `json:"link_ttl" yaml:"link_ttl"`
	AllowedOrigins    []string       `json:"allowed_origins" yaml:"allowed_origins"`
	RequestsPerMinute *int           `json:"requests_per_minute" yaml:"requests_per_minute"`
	OfflineRetry      timex.Duration `json:"offline_retry" yaml:"offline_retry"`
	PingInterval      timex.Duration `json:"ping_interval" yaml:"ping_interval"`
	SyncInterval      timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	ProbeURL          string         `json:"probe_url" yaml:"probe_url"`
	LogLevel          string         `json:"log_level" yaml:"log_level"`
	OTLPEndpoint      string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	NATSURL           string         `json:"nats_url" yaml:"nats_url"`
	NATSPrefix        string         `json:"nats_prefix" yaml:"nats_prefix"`
}

// parseFile overlays the file named by -c/-config, if any. Files ending in
// .yaml or .yml are read as YAML, anything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.StoreDriver, fc.StoreDriver)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.ContentBackend, fc.ContentBackend)
	setString(&cfg.ContentDir, fc.ContentDir)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3Endpoint, fc.S3Endpoint)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.S3Prefix, fc.S3Prefix)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.PublicBaseURL, fc.PublicBaseURL)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.SecretKey, fc.SecretKey)
	setString(&cfg.ProbeURL, fc.ProbeURL)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.OTLPEndpoint, fc.OTLPEndpoint)
	setString(&cfg.NATSURL, fc.NATSURL)
	setString(&cfg.NATSPrefix, fc.NATSPrefix)

	if fc.LinkTTL.Duration != 0 {
		cfg.LinkTTL = fc.LinkTTL.Duration
	}
	if fc.OfflineRetry.Duration != 0 {
		cfg.OfflineRetry = fc.OfflineRetry.Duration
	}
	if fc.PingInterval.Duration != 0 {
		cfg.PingInterval = fc.PingInterval.Duration
	}
	if fc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = fc.SyncInterval.Duration
	}
	if fc.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.RequestsPerMinute != nil {
		cfg.RequestsPerMinute = *fc.RequestsPerMinute
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
