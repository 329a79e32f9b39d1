package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/beanbocchi/parcel/pkg/validator"
)

const (
	EnvPrefix     = "PARCEL"
	EnvConfigPath = "PARCEL_CONFIG"

	DefaultPath = "config.yaml"
)

var (
	once   sync.Once
	config *Config
)

// GetConfig returns the process-wide configuration, loading it on first use.
// The file is taken from $PARCEL_CONFIG, falling back to ./config.yaml.
func GetConfig() *Config {
	once.Do(func() {
		path := os.Getenv(EnvConfigPath)
		if path == "" {
			path = DefaultPath
		}

		cfg, err := Load(path)
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		config = cfg
	})
	return config
}

// Load reads the configuration at path. A missing file is not an error:
// defaults and PARCEL_* environment variables still apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.addSource", false)

	v.SetDefault("app.name", "parcel")
	v.SetDefault("app.publicUrl", "")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.readTimeout", "5m")
	v.SetDefault("server.writeTimeout", "5m")
	v.SetDefault("server.idleTimeout", "2m")

	v.SetDefault("upload.scratchDir", "./data/temp_uploads")
	v.SetDefault("upload.maxChunkSize", "50MB")
	v.SetDefault("upload.reaper.enabled", true)
	v.SetDefault("upload.reaper.interval", "10m")
	v.SetDefault("upload.reaper.ttl", "24h")

	v.SetDefault("database.path", "./data/parcel.db")

	v.SetDefault("objectstore.type", "local")
	v.SetDefault("objectstore.local.root", "./data/uploads")
	v.SetDefault("objectstore.s3.bucket", "")
	v.SetDefault("objectstore.s3.region", "us-east-1")
	v.SetDefault("objectstore.s3.endpoint", "")
	v.SetDefault("objectstore.s3.accessKeyID", "")
	v.SetDefault("objectstore.s3.secretAccessKey", "")
	v.SetDefault("objectstore.s3.usePathStyle", false)
	v.SetDefault("objectstore.storj.accessGrant", "")
	v.SetDefault("objectstore.storj.bucket", "")
	v.SetDefault("objectstore.cache.enabled", false)
	v.SetDefault("objectstore.cache.maxSize", "1GB")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.username", "")
	v.SetDefault("metrics.password", "")
}
