package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"offline_worker/internal/cache"
	"offline_worker/internal/config"
)

// loadConfig loads the dotenv file, then the config file with env overrides.
func loadConfig() (*config.Config, []string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := config.Validate(cfg)
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

func storageOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Driver:         cfg.Storage.Driver,
		MaxObjectBytes: cfg.Storage.MaxObjectBytes,
		Badger: cache.BadgerOptions{
			Path:     cfg.Storage.Path,
			InMemory: cfg.Storage.InMemory,
		},
		Redis: cache.RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.RedisPrefix,
		},
	}
}
