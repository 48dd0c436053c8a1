package main

import (
	"context"
	"log"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/deaddrop/internal/server"
	"github.com/dmitrijs2005/deaddrop/internal/server/config"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
