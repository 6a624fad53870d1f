package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/encryption"
	"github.com/MrEthical07/goAccess/store/memory"
	"github.com/MrEthical07/goAccess/store/redisstore"
	"github.com/MrEthical07/goAccess/store/sqlstore"
)

const driverMemory = "memory"
const driverRedis = "redis"

// openStore connects the configured backend. SQL backends are migrated before use.
func (a *app) openStore(ctx context.Context) (goAccess.Store, func(), error) {
	switch a.cfg.Driver {
	case driverMemory:
		return memory.NewStore(), func() {}, nil
	case driverRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{a.cfg.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", a.cfg.RedisAddr, err)
		}
		return redisstore.New(client, a.cfg.RedisPrefix), func() { _ = client.Close() }, nil
	}

	driver, err := sqlstore.ParseDriver(a.cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlstore.Open(ctx, driver, a.cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlstore.Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s := sqlstore.New(db, driver)
	return s, func() { _ = s.Close() }, nil
}

// newEngine builds an Engine over s using GOACCESS_* configuration.
func (a *app) newEngine(s goAccess.Store) (*goAccess.Engine, error) {
	cfg, err := goAccess.LoadConfigFromEnv(a.cfg.EnvFile)
	if err != nil {
		return nil, err
	}

	keyring, err := a.keyring()
	if err != nil {
		return nil, err
	}

	return goAccess.New().
		WithConfig(cfg).
		WithStore(s).
		WithEncrypter(keyring).
		WithLogger(a.log.Logger).
		Build()
}

func (a *app) keyring() (*encryption.Keyring, error) {
	if a.cfg.Keyring != "" {
		return encryption.ParseKeyring(a.cfg.Keyring)
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		return nil, err
	}
	a.log.Warn("ACCESSCTL_KEYRING not set; two-factor material written now cannot be read back later")
	return encryption.ParseKeyring("1:" + key)
}

// withEngine opens the store, builds an engine and closes both after fn returns.
func (a *app) withEngine(ctx context.Context, fn func(*goAccess.Engine) error) error {
	s, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := a.newEngine(s)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(engine)
}
