package main

import (
	"log"

	"github.com/yourorg/overview-api/internal/env"
)

func main() {
	cfg, err := env.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Fatalf("Application run failed: %v", err)
	}
}
