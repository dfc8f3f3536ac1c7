// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig                   `mapstructure:"app"`
	Server       ServerConfig                `mapstructure:"server"`
	Database     DatabaseConfig              `mapstructure:"database"`
	Vocabularies map[string]VocabularyConfig `mapstructure:"vocabularies"`
	Matching     MatchingConfig              `mapstructure:"matching"`
	Batch        BatchConfig                 `mapstructure:"batch"`
	Logging      LoggingConfig               `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Backend selects the concept store: "memory", "postgres" or
	// "elasticsearch". The memory backend loads SeedFile at startup.
	Backend  string `mapstructure:"backend"`
	SeedFile string `mapstructure:"seed_file"`

	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	IndexPrefix string   `mapstructure:"index_prefix"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

// VocabularyConfig holds per-vocabulary settings. Keys of the Vocabularies
// map are the closed set "snomed", "loinc", "rxnorm".
type VocabularyConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Threshold            float64  `mapstructure:"threshold"`
	PreferredEntityTypes []string `mapstructure:"preferred_entity_types"`
}

// MatchingConfig holds pipeline and scorer settings.
type MatchingConfig struct {
	DefaultThreshold  float64 `mapstructure:"default_threshold"`
	DefaultMaxResults int     `mapstructure:"default_max_results"`
	CandidateBudget   int     `mapstructure:"candidate_budget"`
	StoreTimeout      int     `mapstructure:"store_timeout"` // milliseconds

	Weights WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig holds the fuzzy scorer blend weights. They must sum to 1.0.
type WeightsConfig struct {
	EditDistance float64 `mapstructure:"edit_distance"`
	Phonetic     float64 `mapstructure:"phonetic"`
	TokenOverlap float64 `mapstructure:"token_overlap"`
	Substring    float64 `mapstructure:"substring"`
}

// BatchConfig holds orchestrator settings.
type BatchConfig struct {
	Workers      int `mapstructure:"workers"`
	MaxTerms     int `mapstructure:"max_terms"`
	Retention    int `mapstructure:"retention"`     // milliseconds
	QueueBacklog int `mapstructure:"queue_backlog"` // pending jobs before Submit rejects
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
