package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the server runtime parameters.
type Config struct {
	ListenAddress       string        `mapstructure:"listen_address"`
	AdminAddress        string        `mapstructure:"admin_address"`
	LogLevel            string        `mapstructure:"log_level"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	MaxFrameSize        int           `mapstructure:"max_frame_size"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
	Roster              RosterConfig  `mapstructure:"roster"`
	Store               StoreConfig   `mapstructure:"store"`
}

// RosterConfig selects where the allow-list is loaded from.
type RosterConfig struct {
	Source          string `mapstructure:"source"`
	Path            string `mapstructure:"path"`
	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

// StoreConfig selects the message store backend.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

const (
	SourceFile  = "file"
	SourceMongo = "mongo"

	BackendFile  = "file"
	BackendRedis = "redis"
)

const (
	defaultListenAddress       = "127.0.0.1:8080"
	defaultLogLevel            = "info"
	defaultSweepInterval       = 10 * time.Second
	defaultMaxFrameSize        = 1 << 20
	defaultShutdownGracePeriod = 5 * time.Second
	defaultRosterPath          = "clients.json"
	defaultMongoURI            = "mongodb://localhost:27017"
	defaultMongoDatabase       = "voip"
	defaultMongoCollection     = "clients"
	defaultStorePath           = "messages.json"
	defaultRedisAddr           = "localhost:6379"
)

// Load reads configuration from the provided file path (if any) and the environment.
// Environment variables are prefixed with VOIP_ and override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_address", defaultListenAddress)
	v.SetDefault("admin_address", "")
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("sweep_interval", defaultSweepInterval.String())
	v.SetDefault("max_frame_size", defaultMaxFrameSize)
	v.SetDefault("shutdown_grace_period", defaultShutdownGracePeriod.String())
	v.SetDefault("roster.source", SourceFile)
	v.SetDefault("roster.path", defaultRosterPath)
	v.SetDefault("roster.mongo_uri", defaultMongoURI)
	v.SetDefault("roster.mongo_database", defaultMongoDatabase)
	v.SetDefault("roster.mongo_collection", defaultMongoCollection)
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", defaultStorePath)
	v.SetDefault("store.redis_addr", defaultRedisAddr)
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Durations may arrive as strings from env or file; normalize them here.
	var err error
	if cfg.SweepInterval, err = duration(v, "sweep_interval"); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownGracePeriod, err = duration(v, "shutdown_grace_period"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	dur, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return dur, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("max_frame_size must be positive, got %d", c.MaxFrameSize)
	}
	switch c.Roster.Source {
	case SourceFile, SourceMongo:
	default:
		return fmt.Errorf("unknown roster.source %q", c.Roster.Source)
	}
	switch c.Store.Backend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}
