// Command migrate applies the schema for every persistent model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/observability"

	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|ping>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Env, cfg.LogLevel)

	dialector, err := database.Dialector(cfg)
	if err != nil {
		return err
	}
	db, err := database.Open(dialector, logger.Warn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("schema applied")
	case "ping":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		log.Printf("database reachable (driver=%s)", cfg.DBDriver)
	default:
		return usage()
	}
	return nil
}
