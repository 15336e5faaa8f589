// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (optional), merges config.<APP_ENVIRONMENT>.yaml
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it (e.g. QUEUE_URL).
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "consume-grant-modifications")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("queue.url", "")
	v.SetDefault("queue.region", "")
	v.SetDefault("queue.endpoint", "")
	v.SetDefault("queue.max_messages", 10)
	v.SetDefault("queue.wait_time_seconds", 20)

	v.SetDefault("database.postgres.url", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.max_connections", 25)
	v.SetDefault("database.postgres.max_idle", 5)
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("database.elasticsearch.addresses", []string{})
	v.SetDefault("database.elasticsearch.url", "")
	v.SetDefault("database.elasticsearch.username", "")
	v.SetDefault("database.elasticsearch.password", "")

	v.SetDefault("ingest.date_formats", []string{"YYYY-MM-DD", "MMDDYYYY"})
	v.SetDefault("ingest.dedup.enabled", false)
	v.SetDefault("ingest.dedup.backend", "memory")
	v.SetDefault("ingest.dedup.ttl", 7*24*60*60)
	v.SetDefault("ingest.search_mirror.enabled", false)
	v.SetDefault("ingest.search_mirror.index", "grants")
	v.SetDefault("ingest.search_mirror.timeout", 5000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":8080")
}

// loadEnvFile loads .env from the working directory or the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values. An unset
// variable expands to "" so overrideEmptyConfig and the defaults can apply.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values from the variable names the deployment
// already exports.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Queue.URL == "" {
		if val := os.Getenv("GRANTS_INGEST_EVENTS_QUEUE_URL"); val != "" {
			cfg.Queue.URL = val
		}
	}
	if cfg.Queue.Endpoint == "" {
		if host := os.Getenv("LOCALSTACK_HOSTNAME"); host != "" {
			port := os.Getenv("EDGE_PORT")
			if port == "" {
				port = "4566"
			}
			cfg.Queue.Endpoint = fmt.Sprintf("http://%s:%s", host, port)
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}

	if cfg.Database.Postgres.URL == "" {
		if val := os.Getenv("POSTGRES_URL"); val != "" {
			cfg.Database.Postgres.URL = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields that a
// config file may have zeroed.
func applyDefaults(cfg *Config) {
	if cfg.Queue.MaxMessages <= 0 || cfg.Queue.MaxMessages > 10 {
		cfg.Queue.MaxMessages = 10
	}
	if cfg.Queue.WaitTimeSeconds <= 0 || cfg.Queue.WaitTimeSeconds > 20 {
		cfg.Queue.WaitTimeSeconds = 20
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if len(cfg.Ingest.DateFormats) == 0 {
		cfg.Ingest.DateFormats = []string{"YYYY-MM-DD", "MMDDYYYY"}
	}
	if cfg.Ingest.Dedup.Backend == "" {
		cfg.Ingest.Dedup.Backend = "memory"
	}
	if cfg.Ingest.Dedup.TTL <= 0 {
		cfg.Ingest.Dedup.TTL = 7 * 24 * 60 * 60
	}
	if cfg.Ingest.SearchMirror.Index == "" {
		cfg.Ingest.SearchMirror.Index = "grants"
	}
	if cfg.Ingest.SearchMirror.Timeout <= 0 {
		cfg.Ingest.SearchMirror.Timeout = 5000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Queue.URL == "" {
		return fmt.Errorf("queue.url (or GRANTS_INGEST_EVENTS_QUEUE_URL) is required")
	}

	pg := cfg.Database.Postgres
	if pg.URL == "" {
		if pg.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if pg.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if pg.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Ingest.Dedup.Enabled {
		switch cfg.Ingest.Dedup.Backend {
		case "memory":
		case "redis":
			if cfg.Database.Redis.Address == "" {
				return fmt.Errorf("database.redis.address is required for the redis dedup backend")
			}
		default:
			return fmt.Errorf("ingest.dedup.backend %q is not supported", cfg.Ingest.Dedup.Backend)
		}
	}

	if cfg.Ingest.SearchMirror.Enabled && len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses or url is required for the search mirror")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
