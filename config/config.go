package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded from an optional
// application.toml plus WAREHOUSE_* environment overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Index    IndexConfig    `mapstructure:"index"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Port        int    `mapstructure:"port"`
	UploadLimit int64  `mapstructure:"upload_limit"`
	Workers     int    `mapstructure:"workers"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"sslmode"`
	PoolMaxOpen     int    `mapstructure:"pool_max_open"`
	PoolMaxIdle     int    `mapstructure:"pool_max_idle"`
	PoolMaxLifetime int    `mapstructure:"pool_max_lifetime"`
	PoolIdleTimeout int    `mapstructure:"pool_idle_timeout"`
}

type SessionConfig struct {
	CookieName   string `mapstructure:"cookie_name"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	SecretKey    string `mapstructure:"secret_key"`
}

type StorageConfig struct {
	DataDir      string            `mapstructure:"data_dir"`
	ResourcesDir string            `mapstructure:"resources_dir"`
	Repositories map[string]string `mapstructure:"repositories"`
	S3           S3Config          `mapstructure:"s3"`
}

// S3Config enables mirroring published archives and indexes to a bucket
// when all required fields are set.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyID     string `mapstructure:"key_id"`
	AccessKey string `mapstructure:"access_key"`
	Timeout   string `mapstructure:"timeout"`
}

func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.Region) != "" &&
		strings.TrimSpace(c.Bucket) != "" &&
		strings.TrimSpace(c.KeyID) != "" &&
		strings.TrimSpace(c.AccessKey) != ""
}

type IndexConfig struct {
	AddCommand    string `mapstructure:"add_command"`
	RemoveCommand string `mapstructure:"remove_command"`
}

type LogConfig struct {
	Level         string `mapstructure:"level"`
	HumanReadable bool   `mapstructure:"human_readable"`
}

type UIConfig struct {
	PagingNum int `mapstructure:"paging_num"`
}

// Load reads application.toml from configDir (if present) and applies
// environment overrides of the form WAREHOUSE_SECTION_KEY.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("application")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("warehouse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "::")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_limit", 268_435_456)
	v.SetDefault("server.workers", runtime.NumCPU())

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "warehouse")
	v.SetDefault("database.password", "warehouse")
	v.SetDefault("database.database", "warehouse")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_max_open", 10)
	v.SetDefault("database.pool_max_idle", 2)
	v.SetDefault("database.pool_max_lifetime", 1800)
	v.SetDefault("database.pool_idle_timeout", 600)

	v.SetDefault("session.cookie_name", "warehouse_auth")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.secret_key", randomSecret())

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.resources_dir", "resources")
	v.SetDefault("storage.repositories", map[string]string{"core": "db"})

	v.SetDefault("index.add_command", "repo-add")
	v.SetDefault("index.remove_command", "repo-remove")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.human_readable", false)

	v.SetDefault("ui.paging_num", 10)
}

// randomSecret generates a fresh session key when none is configured;
// sessions then do not survive restarts.
func randomSecret() string {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	return base64.StdEncoding.EncodeToString(key)
}
