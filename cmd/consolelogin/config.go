package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

type config struct {
	APIURL      string
	Timeout     time.Duration
	Store       string
	SQLitePath  string
	RedisAddr   string
	CallbackURL string
	MetricsAddr string
	Audit       bool
	Verbose     bool
}

// loadConfig reads the environment, then lets flags override it.
func loadConfig(args []string) (config, error) {
	cfg := config{
		APIURL:      getEnv("CONSOLE_API_URL", ""),
		Timeout:     getDurationEnv("CONSOLE_API_TIMEOUT", 15*time.Second),
		Store:       getEnv("CONSOLE_STORE", "memory"),
		SQLitePath:  getEnv("CONSOLE_SQLITE_PATH", "consolelogin.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		CallbackURL: getEnv("CONSOLE_CALLBACK_URL", "/dashboard"),
		MetricsAddr: getEnv("CONSOLE_METRICS_ADDR", ""),
		Audit:       getBoolEnv("CONSOLE_AUDIT", false),
	}

	fs := flag.NewFlagSet("consolelogin", flag.ContinueOnError)
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "security API base url; empty runs the built-in demo backend")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request API timeout")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "storage backend: memory, sqlite or redis")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "sqlite database file")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address; if empty with -store=redis, miniredis is used")
	fs.StringVar(&cfg.CallbackURL, "callback", cfg.CallbackURL, "post-login callback url")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.BoolVar(&cfg.Audit, "audit", cfg.Audit, "write audit events as JSON lines to stderr")
	fs.BoolVar(&cfg.Verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
