package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	AdminAddr string `mapstructure:"admin_addr"`
}

type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type VectorConfig struct {
	// Backend selects the index implementation: "qdrant" or "memory".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	// Dimension is the embedding vector size the collection is created with.
	Dimension int `mapstructure:"dimension"`
}

type SecretsConfig struct {
	// Provider selects the secrets backend: "env" or "file".
	Provider string `mapstructure:"provider"`
	// FilePath is the JSON secrets file used by the file backend.
	FilePath string `mapstructure:"file_path"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Embedding.Provider != "" && c.Embedding.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("embedding provider '%s' is configured but api_key is empty", c.Embedding.Provider))
	}

	switch c.Vector.Backend {
	case "", "qdrant", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s' (expected 'qdrant' or 'memory')", c.Vector.Backend))
	}

	if c.Vector.Backend == "qdrant" && c.Vector.Dimension <= 0 {
		warnings = append(warnings, fmt.Sprintf("vector dimension %d is not positive; the qdrant collection cannot be created", c.Vector.Dimension))
	}

	switch c.Secrets.Provider {
	case "", "env", "file":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown secrets provider '%s' (expected 'env' or 'file')", c.Secrets.Provider))
	}

	if c.Secrets.Provider == "file" && c.Secrets.FilePath == "" {
		warnings = append(warnings, "secrets provider 'file' needs file_path")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			AdminAddr: ":8081",
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Vector: VectorConfig{
			Backend:    "qdrant",
			Host:       "localhost",
			Port:       6334,
			Collection: "translation_pairs",
			Dimension:  1536,
		},
		Secrets: SecretsConfig{
			Provider: "env",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("VERBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_addr", ":8081")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "translation_pairs")
	v.SetDefault("vector.dimension", 1536)
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
