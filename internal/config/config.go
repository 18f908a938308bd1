package config

import (
	"encoding/json"
	"time"
)

const (
	DefaultVersion     = "v1"
	DefaultListenAddr  = "127.0.0.1:8080"
	DefaultAdminAddr   = "127.0.0.1:9090"
	DefaultSyncTag     = "content-sync"
	DefaultStaticRole  = "static"
	DefaultDynamicRole = "dynamic"
)

type Config struct {
	ListenAddr   string             `json:"listen_addr" mapstructure:"listen_addr"`
	AdminAddr    string             `json:"admin_addr" mapstructure:"admin_addr"`
	GRPCAddr     string             `json:"grpc_addr" mapstructure:"grpc_addr"`
	Origin       string             `json:"origin" mapstructure:"origin" validate:"required,url"`
	Version      string             `json:"version" mapstructure:"version" validate:"required,excludesall=/ "`
	Generations  GenerationsConfig  `json:"generations" mapstructure:"generations"`
	Manifest     []string           `json:"manifest" mapstructure:"manifest" validate:"required,min=1,dive,required"`
	Routes       RoutesConfig       `json:"routes" mapstructure:"routes"`
	Offline      OfflineConfig      `json:"offline" mapstructure:"offline"`
	Notification NotificationConfig `json:"notification" mapstructure:"notification"`
	Sync         SyncConfig         `json:"sync" mapstructure:"sync"`
	Storage      StorageConfig      `json:"storage" mapstructure:"storage"`
	Interceptor  InterceptorConfig  `json:"interceptor" mapstructure:"interceptor"`
	Activate     ActivateConfig     `json:"activate" mapstructure:"activate"`
	Transport    TransportConfig    `json:"transport" mapstructure:"transport"`
	Shutdown     ShutdownConfig     `json:"shutdown" mapstructure:"shutdown"`
	Log          LogConfig          `json:"log" mapstructure:"log"`
}

type GenerationsConfig struct {
	StaticRole  string `json:"static_role" mapstructure:"static_role" validate:"required,excludesall=/ "`
	DynamicRole string `json:"dynamic_role" mapstructure:"dynamic_role" validate:"required,excludesall=/ ,nefield=StaticRole"`
}

type RoutesConfig struct {
	StaticSegments   []string `json:"static_segments" mapstructure:"static_segments"`
	StaticExtensions []string `json:"static_extensions" mapstructure:"static_extensions"`
	ImageCDNOrigins  []string `json:"image_cdn_origins" mapstructure:"image_cdn_origins"`
	APIPrefixes      []string `json:"api_prefixes" mapstructure:"api_prefixes"`
}

type OfflineConfig struct {
	// CachedPath is served for failed navigations when it exists in a generation.
	CachedPath string   `json:"cached_path" mapstructure:"cached_path"`
	Title      string   `json:"title" mapstructure:"title"`
	Heading    string   `json:"heading" mapstructure:"heading"`
	Message    string   `json:"message" mapstructure:"message"`
	RetryLabel string   `json:"retry_label" mapstructure:"retry_label"`
	Available  []string `json:"available" mapstructure:"available"`
}

type NotificationConfig struct {
	Title       string `json:"title" mapstructure:"title" validate:"required"`
	DefaultBody string `json:"default_body" mapstructure:"default_body"`
	Icon        string `json:"icon" mapstructure:"icon"`
	Badge       string `json:"badge" mapstructure:"badge"`
	RootURL     string `json:"root_url" mapstructure:"root_url"`
	Vibrate     []int  `json:"vibrate" mapstructure:"vibrate"`
}

type SyncConfig struct {
	Tag      string `json:"tag" mapstructure:"tag" validate:"required"`
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

type StorageConfig struct {
	Driver         string `json:"driver" mapstructure:"driver" validate:"omitempty,oneof=memory badger redis"`
	MaxObjectBytes int64  `json:"max_object_bytes" mapstructure:"max_object_bytes" validate:"gte=0"`
	Path           string `json:"path" mapstructure:"path"`
	InMemory       bool   `json:"in_memory" mapstructure:"in_memory"`
	RedisAddr      string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `json:"redis_db" mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix    string `json:"redis_prefix" mapstructure:"redis_prefix"`
}

type InterceptorConfig struct {
	Coalesce   bool `json:"coalesce" mapstructure:"coalesce"`
	MaxFlights int  `json:"max_flights" mapstructure:"max_flights" validate:"gte=0"`
}

type ActivateConfig struct {
	DeleteForeign *bool `json:"delete_foreign" mapstructure:"delete_foreign"`
}

type TransportConfig struct {
	DialTimeoutMS           int `json:"dial_timeout_ms" mapstructure:"dial_timeout_ms" validate:"gte=0"`
	TLSHandshakeTimeoutMS   int `json:"tls_handshake_timeout_ms" mapstructure:"tls_handshake_timeout_ms" validate:"gte=0"`
	ResponseHeaderTimeoutMS int `json:"response_header_timeout_ms" mapstructure:"response_header_timeout_ms" validate:"gte=0"`
}

type ShutdownConfig struct {
	DrainMS           int `json:"drain_ms" mapstructure:"drain_ms"`
	GracefulTimeoutMS int `json:"graceful_timeout_ms" mapstructure:"graceful_timeout_ms"`
	ForceCloseMS      int `json:"force_close_ms" mapstructure:"force_close_ms"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// Default carries every constant the worker needs so it can run without a file.
func Default() Config {
	return Config{
		ListenAddr: DefaultListenAddr,
		AdminAddr:  DefaultAdminAddr,
		Origin:     "http://127.0.0.1:3000",
		Version:    DefaultVersion,
		Generations: GenerationsConfig{
			StaticRole:  DefaultStaticRole,
			DynamicRole: DefaultDynamicRole,
		},
		Manifest: []string{
			"/",
			"/manifest.json",
			"/icons/icon-192x192.png",
			"/icons/icon-512x512.png",
		},
		Routes: RoutesConfig{
			StaticSegments:   []string{"/assets/", "/icons/"},
			StaticExtensions: []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"},
			ImageCDNOrigins:  []string{"https://images.unsplash.com"},
			APIPrefixes: []string{
				"/api/",
				"https://firestore.googleapis.com",
				"https://identitytoolkit.googleapis.com",
			},
		},
		Offline: OfflineConfig{
			CachedPath: "/",
		},
		Notification: NotificationConfig{
			Title:       "New content available",
			DefaultBody: "There is something new on the site.",
			Icon:        "/icons/icon-192x192.png",
			Badge:       "/icons/icon-72x72.png",
			RootURL:     "/",
			Vibrate:     []int{100, 50, 100},
		},
		Sync: SyncConfig{
			Tag: DefaultSyncTag,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ParseJSON overlays data on top of Default.
func ParseJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) StaticGeneration() string {
	return c.Generations.StaticRole + "-" + c.Version
}

func (c *Config) DynamicGeneration() string {
	return c.Generations.DynamicRole + "-" + c.Version
}

func (c *Config) DeleteForeignGenerations() bool {
	if c.Activate.DeleteForeign == nil {
		return true
	}
	return *c.Activate.DeleteForeign
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (t TransportConfig) DialTimeout() time.Duration {
	return msDuration(t.DialTimeoutMS)
}

func (t TransportConfig) TLSHandshakeTimeout() time.Duration {
	return msDuration(t.TLSHandshakeTimeoutMS)
}

func (t TransportConfig) ResponseHeaderTimeout() time.Duration {
	return msDuration(t.ResponseHeaderTimeoutMS)
}
