package config

import (
	"os"

	"github.com/spf13/viper"
)

// ServerConfig holds the runtime options of the HTTP server. Values are
// resolved from flags, QUASAR_* environment variables, and an optional
// quasar.yaml in the working directory, in that precedence order.
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Workspace string `mapstructure:"workspace"`
	OllamaURL string `mapstructure:"ollama_url"`
	LogLevel  string `mapstructure:"log_level"`
}

// LoadServerConfig resolves the server configuration.
func LoadServerConfig() (*ServerConfig, error) {
	v := viper.New()
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("workspace", mustGetwd())
	v.SetDefault("ollama_url", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("QUASAR")
	v.AutomaticEnv()

	v.SetConfigName("quasar")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OllamaBaseURL returns the ollama endpoint, honoring the OLLAMA_URL
// override.
func OllamaBaseURL() string {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		return url
	}
	return Providers[ProviderOllama].BaseURL
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
