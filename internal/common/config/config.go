// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	API         APIConfig         `mapstructure:"api"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Provider Configuration ---

// ProviderConfig selects the text-generation backend and carries per-backend
// credentials. Name is a pure lookup into the provider registry; there is no
// runtime "active" flag.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	Timeout int    `mapstructure:"timeout"` // milliseconds, per call

	OpenAI    BackendConfig `mapstructure:"openai"`
	Anthropic BackendConfig `mapstructure:"anthropic"`
	Google    BackendConfig `mapstructure:"google"`
}

type BackendConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// --- Worker Configuration ---

// GenerationConfig drives the persona generation worker.
type GenerationConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	ChunkWorkers int `mapstructure:"chunk_workers"`
}

// AggregationConfig drives the aggregation worker. City, when set, restricts
// the loop to one scope.
type AggregationConfig struct {
	PollInterval int    `mapstructure:"poll_interval"` // milliseconds
	City         string `mapstructure:"city"`
	SummaryTTL   int    `mapstructure:"summary_ttl"` // seconds, Redis cache
}

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
