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

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DB_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overrides, e.g. config.production.yaml
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

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

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
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
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Database defaults
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "memory"
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
	if cfg.Database.Redis.CacheTTL == 0 {
		cfg.Database.Redis.CacheTTL = 300000
	}
	if cfg.Database.Elasticsearch.IndexPrefix == "" {
		cfg.Database.Elasticsearch.IndexPrefix = "terminology"
	}

	// Vocabulary defaults: the closed set is always present
	if cfg.Vocabularies == nil {
		cfg.Vocabularies = map[string]VocabularyConfig{}
	}
	for _, name := range []string{"snomed", "loinc", "rxnorm"} {
		vc, ok := cfg.Vocabularies[name]
		if !ok {
			vc = VocabularyConfig{Enabled: true}
		}
		if vc.Threshold == 0 {
			vc.Threshold = 0.7
		}
		cfg.Vocabularies[name] = vc
	}

	// Matching defaults
	if cfg.Matching.DefaultThreshold == 0 {
		cfg.Matching.DefaultThreshold = 0.7
	}
	if cfg.Matching.DefaultMaxResults == 0 {
		cfg.Matching.DefaultMaxResults = 5
	}
	if cfg.Matching.CandidateBudget == 0 {
		cfg.Matching.CandidateBudget = 200
	}
	if cfg.Matching.StoreTimeout == 0 {
		cfg.Matching.StoreTimeout = 5000
	}
	if cfg.Matching.Weights == (WeightsConfig{}) {
		cfg.Matching.Weights = WeightsConfig{
			EditDistance: 0.35,
			Phonetic:     0.20,
			TokenOverlap: 0.30,
			Substring:    0.15,
		}
	}

	// Batch defaults
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 4
	}
	if cfg.Batch.MaxTerms == 0 {
		cfg.Batch.MaxTerms = 5000
	}
	if cfg.Batch.Retention == 0 {
		cfg.Batch.Retention = 3600000
	}
	if cfg.Batch.QueueBacklog == 0 {
		cfg.Batch.QueueBacklog = 100
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	w := cfg.Matching.Weights
	sum := w.EditDistance + w.Phonetic + w.TokenOverlap + w.Substring
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("matching.weights must sum to 1.0, got %.3f", sum)
	}

	if cfg.Matching.DefaultThreshold < 0 || cfg.Matching.DefaultThreshold > 1 {
		return fmt.Errorf("matching.default_threshold must be in [0,1]")
	}

	for name, vc := range cfg.Vocabularies {
		switch name {
		case "snomed", "loinc", "rxnorm":
		default:
			return fmt.Errorf("unknown vocabulary %q in config", name)
		}
		if vc.Threshold < 0 || vc.Threshold > 1 {
			return fmt.Errorf("vocabularies.%s.threshold must be in [0,1]", name)
		}
	}

	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1")
	}

	switch cfg.Database.Backend {
	case "memory", "postgres", "elasticsearch":
	default:
		return fmt.Errorf("unknown database.backend %q", cfg.Database.Backend)
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetVocabularyConfig retrieves vocabulary-specific configuration with fallback to defaults
func GetVocabularyConfig(cfg *Config, name string) VocabularyConfig {
	if vc, exists := cfg.Vocabularies[name]; exists {
		return vc
	}
	return VocabularyConfig{Enabled: true, Threshold: 0.7}
}
