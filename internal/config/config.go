// Package config loads memeboard settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/memeboard/internal/store"
)

// Asset backend names.
const (
	AssetsCloudinary = "cloudinary"
	AssetsLocal      = "local"
	AssetsMemory     = "memory"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr              string   `mapstructure:"addr"`
	CORSOrigins       []string `mapstructure:"cors_origins"`
	EditRatePerMinute int      `mapstructure:"edit_rate_per_minute"`
}

type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

type AssetsConfig struct {
	Driver        string `mapstructure:"driver"`
	CloudinaryURL string `mapstructure:"cloudinary_url"`
	Folder        string `mapstructure:"folder"`
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Seeded by serve when set; an existing account is left alone.
	BootstrapUsername string `mapstructure:"bootstrap_username"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.edit_rate_per_minute", 30)
	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.mongo_uri", "")
	v.SetDefault("storage.mongo_database", "memeboard")
	v.SetDefault("storage.sqlite_path", "memeboard.db")
	v.SetDefault("assets.driver", "")
	v.SetDefault("assets.cloudinary_url", "")
	v.SetDefault("assets.folder", "memes")
	v.SetDefault("assets.local_dir", "uploads")
	v.SetDefault("assets.public_base_url", "http://localhost:8080")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.bootstrap_username", "")
	v.SetDefault("auth.bootstrap_password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configFile when given, otherwise memeboard.yaml from the
// working directory or $HOME/.memeboard. A missing default file is fine.
// MEMEBOARD_* variables override file values; MONGODB_URI and
// CLOUDINARY_URL are honoured as well.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEMEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("storage.mongo_uri", "MEMEBOARD_STORAGE_MONGO_URI", "MONGODB_URI"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("assets.cloudinary_url", "MEMEBOARD_ASSETS_CLOUDINARY_URL", "CLOUDINARY_URL"); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("memeboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.memeboard")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.AssetDriver() {
	case AssetsCloudinary:
		if c.Assets.CloudinaryURL == "" {
			return errors.New("config: assets.cloudinary_url is required for the cloudinary driver")
		}
	case AssetsLocal, AssetsMemory:
	default:
		return fmt.Errorf("config: unknown assets.driver %q", c.Assets.Driver)
	}
	switch c.StoreConfig().ResolveDriver() {
	case store.DriverMemory, store.DriverSQLite, store.DriverMongo:
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if (c.Auth.BootstrapUsername == "") != (c.Auth.BootstrapPassword == "") {
		return errors.New("config: auth.bootstrap_username and auth.bootstrap_password must be set together")
	}
	if c.Server.EditRatePerMinute < 0 {
		return errors.New("config: server.edit_rate_per_minute must not be negative")
	}
	return nil
}

// AssetDriver resolves an empty assets.driver: cloudinary when a URL is
// configured, local disk otherwise.
func (c *Config) AssetDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Assets.Driver))
	if d != "" {
		return d
	}
	if c.Assets.CloudinaryURL != "" {
		return AssetsCloudinary
	}
	return AssetsLocal
}

// StoreConfig converts the storage section for store.Open.
func (c *Config) StoreConfig() store.StorageConfig {
	return store.StorageConfig{
		Driver:        c.Storage.Driver,
		MongoURI:      c.Storage.MongoURI,
		MongoDatabase: c.Storage.MongoDatabase,
		SQLitePath:    c.Storage.SQLitePath,
	}
}
