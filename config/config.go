package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read on boot when present.
var DefaultConfigPath = filepath.Join("config", "config.yaml")

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort string `yaml:"app_port" env:"APP_PORT"`
	// Gin framework configuration
	GinMode string `yaml:"gin_mode" env:"GIN_MODE"`
	GinPath string `yaml:"gin_path" env:"GIN_PATH"`

	// StoreDriver selects the backend: mongo, mysql or memory.
	StoreDriver string `yaml:"store_driver" env:"STORE_DRIVER"`
	// Document database
	MongoURI        string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase   string `yaml:"mongo_database" env:"MONGO_DATABASE"`
	MongoTimeoutSec int    `yaml:"mongo_timeout_sec" env:"MONGO_TIMEOUT_SEC"`
	// Relational database, used when StoreDriver is mysql
	DatabaseURI string `yaml:"database_uri" env:"DATABASE_URI"`
	DBHost      string `yaml:"db_host" env:"DB_HOST"`
	DBPort      string `yaml:"db_port" env:"DB_PORT"`
	DBUser      string `yaml:"db_user" env:"DB_USER"`
	DBPassword  string `yaml:"db_password" env:"DB_PASSWORD"`
	DBName      string `yaml:"db_name" env:"DB_NAME"`

	// Redis backs the optional per-user ledger lock
	RedisHost         string `yaml:"redis_host" env:"REDIS_HOST"`
	RedisPort         int    `yaml:"redis_port" env:"REDIS_PORT"`
	RedisDB           int    `yaml:"redis_db" env:"REDIS_DB"`
	RedisPassword     string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	LedgerLockEnabled bool   `yaml:"ledger_lock_enabled" env:"LEDGER_LOCK_ENABLED"`
	LedgerLockTTLSec  int    `yaml:"ledger_lock_ttl_sec" env:"LEDGER_LOCK_TTL_SEC"`

	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	// DefaultUserID is used when a request names no user.
	DefaultUserID string `yaml:"default_user_id" env:"DEFAULT_USER_ID"`
	// AchievementSweepSpec is a cron spec for the background badge check. Empty disables it.
	AchievementSweepSpec string `yaml:"achievement_sweep_spec" env:"ACHIEVEMENT_SWEEP_SPEC"`

	// Logging configuration
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL"`
	LogPath       string `yaml:"log_path" env:"LOG_PATH"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `yaml:"log_max_backups" env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `yaml:"log_compress" env:"LOG_COMPRESS"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// Load loads the application configuration. It should be called once during boot.
// Invalid configuration is fatal.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	c, err := LoadFrom(DefaultConfigPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// LoadFrom builds a configuration from the given YAML file (missing files are ignored),
// then fills defaults and finally applies environment overrides.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig

	// 1) YAML file
	if err := loadYAMLConfig(path, &c); err != nil {
		return c, err
	}

	// 2) Fill defaults for any zero values
	applyDefaults(&c)

	// 3) Override from environment variables when set
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate rejects settings the server cannot start with.
func (c AppConfig) Validate() error {
	switch c.StoreDriver {
	case "mongo", "mysql", "memory":
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == "mongo" && c.MongoURI == "" {
		return errors.New("MONGO_URI must be set")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid rate limit %d", c.RateLimitPerMinute)
	}
	return nil
}

// loadYAMLConfig reads the YAML file into out if present. Returns error only for invalid YAML.
func loadYAMLConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "5000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "mongo"
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017/"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "posture_monitoring"
	}
	if c.MongoTimeoutSec == 0 {
		c.MongoTimeoutSec = 10
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "posture_monitoring"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LedgerLockTTLSec == 0 {
		c.LedgerLockTTLSec = 5
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 600
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = "user_001"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	return nil
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
