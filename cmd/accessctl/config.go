package main

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// cliConfig is read from ACCESSCTL_* variables; store flags override it per command.
type cliConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"accessctl.db"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"goaccess"`
	// Keyring is "id:base64key[,id:base64key...]"; the first entry encrypts.
	Keyring  string `env:"KEYRING"`
	EnvFile  string `env:"ENV_FILE" envDefault:".env"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func loadCLIConfig() (cliConfig, error) {
	var cfg cliConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "ACCESSCTL_"}); err != nil {
		return cliConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *cliConfig) bindStoreFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Driver, "driver", c.Driver, "store driver: sqlite, postgres, redis or memory")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "SQL data source name")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for the redis driver")
}
