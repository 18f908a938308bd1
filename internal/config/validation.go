package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

const maxRecommendedObjectBytes int64 = 100 * 1024 * 1024

var validate = validator.New()

func Validate(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	warnings := []string{}
	if err := validate.Struct(cfg); err != nil {
		return warnings, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateOrigin(cfg); err != nil {
		return warnings, err
	}
	if err := validateManifest(cfg); err != nil {
		return warnings, err
	}
	if err := validateRoutes(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateStorage(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateSync(cfg); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func validateOrigin(cfg *Config) error {
	parsed, err := url.Parse(cfg.Origin)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("origin %q must use http or https", cfg.Origin)
	}
	if parsed.Host == "" {
		return fmt.Errorf("origin %q must include a host", cfg.Origin)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("origin %q must not include a path", cfg.Origin)
	}
	return nil
}

func validateManifest(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Manifest))
	for _, entry := range cfg.Manifest {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, "/") {
			parsed, err := url.Parse(entry)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return fmt.Errorf("manifest entry %q must be a path or an absolute http(s) url", entry)
			}
		}
		if _, dup := seen[entry]; dup {
			return fmt.Errorf("manifest entry %q listed twice", entry)
		}
		seen[entry] = struct{}{}
	}
	return nil
}

func validateRoutes(cfg *Config, warnings *[]string) error {
	for _, origin := range cfg.Routes.ImageCDNOrigins {
		parsed, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("routes.image_cdn_origins entry %q must be an absolute url", origin)
		}
	}
	if len(cfg.Routes.APIPrefixes) == 0 {
		*warnings = append(*warnings, "routes.api_prefixes empty: dynamic generation will stay empty")
	}
	if len(cfg.Routes.StaticSegments) == 0 && len(cfg.Routes.StaticExtensions) == 0 && len(cfg.Routes.ImageCDNOrigins) == 0 {
		*warnings = append(*warnings, "no static asset rules configured: only manifest entries are cached")
	}
	return nil
}

func validateStorage(cfg *Config, warnings *[]string) error {
	switch cfg.Storage.Driver {
	case "badger":
		if !cfg.Storage.InMemory && strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required for the badger driver")
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
	}
	if cfg.Storage.MaxObjectBytes > maxRecommendedObjectBytes {
		*warnings = append(*warnings, fmt.Sprintf("storage.max_object_bytes %d exceeds 100MiB", cfg.Storage.MaxObjectBytes))
	}
	return nil
}

func validateSync(cfg *Config) error {
	if strings.TrimSpace(cfg.Sync.Schedule) == "" {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Sync.Schedule); err != nil {
		return fmt.Errorf("sync.schedule %q: %w", cfg.Sync.Schedule, err)
	}
	return nil
}
