// README: Scenario runner; drives lifecycle scenarios against a running API and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	sim := NewRunner(cfg)
	results := sim.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	passed, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			passed++
		case statusFail:
			failed++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", passed, failed, skipped)
	if failed > 0 {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL       string
	DSN           string
	RedisAddr     string
	MigrationPath string
	Timeout       time.Duration
	Concurrency   int
	Duration      time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("WERIDE_SIM_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("WERIDE_DB_DSN", ""), "Postgres DSN (optional)")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("WERIDE_REDIS_ADDR", ""), "Redis address (optional)")
	flag.StringVar(&cfg.MigrationPath, "migration", envOrDefault("WERIDE_SIM_MIGRATION", "migrations/0001_init.sql"), "Migration SQL path")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("WERIDE_SIM_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("WERIDE_SIM_CONCURRENCY", 8), "Concurrent offers / workers")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("WERIDE_SIM_DURATION", 5*time.Second), "Duration for load cases")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
