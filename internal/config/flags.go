package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filepool/internal/flagx"
)

// flagNames are the flags read by parseFlags; other arguments are left to
// the caller.
//
//	-d      data directory
//	-driver store driver (sqlite, postgres, leveldb)
//	-dsn    store DSN
//	-a      local file server address
//	-b      public base URL of the local file server
//	-g      gRPC health address
//	-k      link signing secret
//	-l      log level
//	-o      OTLP/HTTP endpoint
//	-n      NATS URL
var flagNames = []string{"-d", "-driver", "-dsn", "-a", "-b", "-g", "-k", "-l", "-o", "-n"}

func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("filepool", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.StoreDriver, "driver", cfg.StoreDriver, "store driver")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "store DSN")
	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "local file server address")
	fs.StringVar(&cfg.PublicBaseURL, "b", cfg.PublicBaseURL, "public base URL")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC health address")
	fs.StringVar(&cfg.SecretKey, "k", cfg.SecretKey, "link signing secret")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.OTLPEndpoint, "o", cfg.OTLPEndpoint, "OTLP/HTTP endpoint")
	fs.StringVar(&cfg.NATSURL, "n", cfg.NATSURL, "NATS URL")

	if err := fs.Parse(flagx.FilterArgs(args, flagNames)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
