package main

import (
	"context"
	"fmt"
	"os"

	"giggen/pkg/config"
	"giggen/pkg/db"
)

func main() {
	cfg := config.Load()
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations"
	}

	version, err := db.Migrate(cfg.MigrationsPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	// The API talks to DATABASE_URL, which may be the pooler; check it answers.
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime db open failed: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var bookings int64
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM bookings`).Scan(&bookings); err != nil {
		fmt.Fprintf(os.Stderr, "bookings table check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("schema at version %d, %d bookings\n", version, bookings)
}
