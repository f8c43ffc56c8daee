package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/bookfriends/lending-service/config"
	"github.com/bookfriends/lending-service/internal/cli"
	"github.com/bookfriends/lending-service/pkg/logger"
)

func main() {
	// .env is optional outside of local development.
	_ = godotenv.Load()

	cfg := config.NewConfig()
	log := logger.NewLogger(cfg.Log, "lending")
	defer func() { _ = log.Sync() }()

	root := cli.New(cfg, log)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
