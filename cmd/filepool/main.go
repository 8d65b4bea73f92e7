package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/filepool/internal/cli"
	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/service"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(ctx, os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	svc, err := service.New(ctx, cfg, logger, service.Options{})
	if err != nil {
		log.Fatalf("%v", err)
	}

	runErr := cli.NewApp(svc, os.Stdin, os.Stdout).Run(ctx)
	stop()
	if err := svc.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}

}
