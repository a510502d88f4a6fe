package main

import (
	"fmt"

	"github.com/MrEthical07/consolelogin"
	"github.com/MrEthical07/consolelogin/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// openStore returns the configured key-value store and its cleanup.
func openStore(cfg config, prefix string) (consolelogin.KeyValueStore, func(), error) {
	switch cfg.Store {
	case "", "memory":
		return storage.NewMemory(), func() {}, nil

	case "sqlite":
		s, err := storage.OpenSQLite(cfg.SQLitePath, prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		addr := cfg.RedisAddr
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
			}
			addr = mr.Addr()
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup := func() {
			_ = client.Close()
			if mr != nil {
				mr.Close()
			}
		}
		return storage.NewRedis(client, prefix, 0), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
