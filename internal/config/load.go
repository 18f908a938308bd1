package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "OFFLINE_WORKER"

// Load reads path (any format viper understands) over Default. Environment
// variables such as OFFLINE_WORKER_STORAGE_DRIVER override storage.driver.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers the scalar keys so AutomaticEnv can resolve them even
// when the file does not mention them.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("admin_addr", cfg.AdminAddr)
	v.SetDefault("grpc_addr", cfg.GRPCAddr)
	v.SetDefault("origin", cfg.Origin)
	v.SetDefault("version", cfg.Version)
	v.SetDefault("generations.static_role", cfg.Generations.StaticRole)
	v.SetDefault("generations.dynamic_role", cfg.Generations.DynamicRole)
	v.SetDefault("offline.cached_path", cfg.Offline.CachedPath)
	v.SetDefault("notification.title", cfg.Notification.Title)
	v.SetDefault("notification.default_body", cfg.Notification.DefaultBody)
	v.SetDefault("notification.icon", cfg.Notification.Icon)
	v.SetDefault("notification.badge", cfg.Notification.Badge)
	v.SetDefault("notification.root_url", cfg.Notification.RootURL)
	v.SetDefault("sync.tag", cfg.Sync.Tag)
	v.SetDefault("sync.schedule", cfg.Sync.Schedule)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.max_object_bytes", cfg.Storage.MaxObjectBytes)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.in_memory", cfg.Storage.InMemory)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", cfg.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", cfg.Storage.RedisPrefix)
	v.SetDefault("interceptor.coalesce", cfg.Interceptor.Coalesce)
	v.SetDefault("interceptor.max_flights", cfg.Interceptor.MaxFlights)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
