// Package config loads service settings and release requests.
//
// Settings merge a YAML file (optional) with environment variables prefixed
// IMAGE_RELEASE__, using "__" as the nesting delimiter:
//
//	IMAGE_RELEASE__RELEASE__WORKERS=8
//	IMAGE_RELEASE__STORAGE__MYSQL__HOST=db
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/notify"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/store"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "IMAGE_RELEASE__"

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

type ServerCfg struct {
	Addr string `koanf:"addr"`
}

type StorageCfg struct {
	Driver string            `koanf:"driver"` // memory|mysql
	MySQL  store.MySQLConfig `koanf:"mysql"`
}

type ReleaseCfg struct {
	DataRoot      string        `koanf:"data_root"`
	OutputDir     string        `koanf:"output_dir"`
	WorkDir       string        `koanf:"work_dir"`
	Workers       int           `koanf:"workers"`
	JPEGQuality   int           `koanf:"jpeg_quality"`
	StagingMaxAge time.Duration `koanf:"staging_max_age"`
}

type KafkaCfg struct {
	notify.KafkaConfig `koanf:",squash"`

	Enabled bool `koanf:"enabled"`
}

type NotifyCfg struct {
	Kafka KafkaCfg `koanf:"kafka"`
}

type LogCfg struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type Config struct {
	Server  ServerCfg  `koanf:"server"`
	Storage StorageCfg `koanf:"storage"`
	Release ReleaseCfg `koanf:"release"`
	Notify  NotifyCfg  `koanf:"notify"`
	Log     LogCfg     `koanf:"log"`
}

// Load merges the YAML file at path (a missing file is fine) with the
// environment and fills in defaults.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, apperr.Configuration("config.Load", "%s: %v", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return Config{}, apperr.Configuration("config.Load", "environment: %v", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, apperr.Configuration("config.Load", "%v", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Release.DataRoot == "" {
		c.Release.DataRoot = "data"
	}
	if c.Release.OutputDir == "" {
		c.Release.OutputDir = "releases"
	}
	if c.Release.WorkDir == "" {
		c.Release.WorkDir = ".image-release"
	}
	if c.Release.JPEGQuality == 0 {
		c.Release.JPEGQuality = 95
	}
	if c.Release.StagingMaxAge == 0 {
		c.Release.StagingMaxAge = 24 * time.Hour
	}
	if c.Notify.Kafka.Topic == "" {
		c.Notify.Kafka.Topic = "image-releases"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageMySQL:
		if c.Storage.MySQL.Host == "" || c.Storage.MySQL.DBName == "" {
			return apperr.Configuration("config.Load", "mysql storage needs host and dbname")
		}
	default:
		return apperr.Configuration("config.Load", "unknown storage driver %q", c.Storage.Driver)
	}
	if c.Release.Workers < 0 {
		return apperr.Configuration("config.Load", "release.workers must be >= 0, got %d", c.Release.Workers)
	}
	if q := c.Release.JPEGQuality; q < 1 || q > 100 {
		return apperr.Configuration("config.Load", "release.jpeg_quality must be in [1,100], got %d", q)
	}
	if c.Notify.Kafka.Enabled && len(c.Notify.Kafka.Brokers) == 0 {
		return apperr.Configuration("config.Load", "kafka notifications need at least one broker")
	}
	return nil
}

// Options returns the orchestrator options for c.
func (c Config) Options() release.Options {
	return release.Options{
		WorkDir:     c.Release.WorkDir,
		OutputDir:   c.Release.OutputDir,
		Workers:     c.Release.Workers,
		JPEGQuality: c.Release.JPEGQuality,
	}
}

// LoadRequest reads a release request from a YAML file.
func LoadRequest(path string) (release.Request, error) {
	var req release.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, apperr.IO("config.LoadRequest", err)
	}
	if err := yamlv3.Unmarshal(data, &req); err != nil {
		return req, apperr.Configuration("config.LoadRequest", "%s: %v", path, err)
	}
	return req, nil
}

// String renders c for startup logs with the database password masked.
func (c Config) String() string {
	m := c.Storage.MySQL
	if m.Password != "" {
		m.Password = "***"
	}
	return fmt.Sprintf("server=%s storage=%s mysql=%s@%s:%d/%s data_root=%s output_dir=%s work_dir=%s workers=%d kafka=%t",
		c.Server.Addr, c.Storage.Driver, m.User, m.Host, m.Port, m.DBName,
		c.Release.DataRoot, c.Release.OutputDir, c.Release.WorkDir, c.Release.Workers, c.Notify.Kafka.Enabled)
}
