// Package config loads engine configuration from defaults, an optional TOML
// file, and REDLINE_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Addr       string `koanf:"addr"`
	CORSOrigin string `koanf:"cors_origin"`
	LogLevel   string `koanf:"log_level"`

	// Blob backend: minio, redis, postgres or none. With "none" the engine
	// runs purely in memory and write-through persistence is disabled.
	BlobBackend string `koanf:"blob_backend"`

	Minio struct {
		Endpoint  string `koanf:"endpoint"`
		AccessKey string `koanf:"access_key"`
		SecretKey string `koanf:"secret_key"`
		Bucket    string `koanf:"bucket"`
		UseSSL    bool   `koanf:"use_ssl"`
	} `koanf:"minio"`

	RedisURL    string `koanf:"redis_url"`
	DatabaseURL string `koanf:"database_url"`

	// ArchiveDir enables the git archive of committed versions when set.
	ArchiveDir string `koanf:"archive_dir"`

	MeiliURL       string `koanf:"meili_url"`
	MeiliMasterKey string `koanf:"meili_master_key"`

	DefaultLockMinutes int `koanf:"default_lock_minutes"`
}

// Load reads configuration from the given TOML path (or default locations
// when empty) with environment overrides.
func Load(configPath string) (Config, error) {
	k := koanf.New(".")

	_ = k.Load(confmap.Provider(map[string]interface{}{
		"addr":                 ":8788",
		"cors_origin":          "*",
		"log_level":            "info",
		"blob_backend":         "none",
		"minio.bucket":         "redline",
		"default_lock_minutes": 30,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./redline.toml", "$HOME/.redline.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	_ = k.Load(env.Provider("REDLINE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REDLINE_")), "__", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected blob backend has what it needs.
func Validate(cfg Config) error {
	switch cfg.BlobBackend {
	case "", "none", "memory":
		return nil
	case "minio":
		if cfg.Minio.Endpoint == "" {
			return fmt.Errorf("minio endpoint is required for the minio backend")
		}
		if cfg.Minio.Bucket == "" {
			return fmt.Errorf("minio bucket is required for the minio backend")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis backend")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
	return nil
}
