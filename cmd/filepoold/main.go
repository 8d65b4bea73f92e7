package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/server"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx, os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
