package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	VCO   VCOConfig   `mapstructure:"vco"`
	Probe ProbeConfig `mapstructure:"probe"`
	Log   LogConfig   `mapstructure:"log"`
}

// VCOConfig holds VeloCloud Orchestrator configuration
type VCOConfig struct {
	Host          string      `mapstructure:"host"`
	Username      string      `mapstructure:"username"`
	Password      string      `mapstructure:"password"`
	Operator      bool        `mapstructure:"operator"`
	EnterpriseIDs []int       `mapstructure:"enterprise_ids"`
	Timeout       int         `mapstructure:"timeout"`
	Insecure      bool        `mapstructure:"insecure"`
	Proxy         ProxyConfig `mapstructure:"proxy"`
}

// ProxyConfig holds outbound proxy configuration
type ProxyConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ProbeConfig holds settings for the permission probe itself
type ProbeConfig struct {
	IntervalMinutes int      `mapstructure:"interval_minutes"`
	Metrics         []string `mapstructure:"metrics"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("vco.operator", false)
	v.SetDefault("vco.timeout", 30)
	v.SetDefault("vco.insecure", false)

	v.SetDefault("probe.interval_minutes", 15)
	v.SetDefault("probe.metrics", []string{"bytesRx", "bytesTx"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Set environment variable bindings
	v.SetEnvPrefix("VCPROBE")
	v.AutomaticEnv()

	// Bind specific environment variables
	v.BindEnv("vco.host", "VCO_HOST")
	v.BindEnv("vco.username", "VCO_USERNAME")
	v.BindEnv("vco.password", "VCO_PASSWORD")
	v.BindEnv("vco.operator", "VCO_OPERATOR")
	v.BindEnv("vco.proxy.url", "VCO_PROXY_URL")
	v.BindEnv("vco.proxy.username", "VCO_PROXY_USERNAME")
	v.BindEnv("vco.proxy.password", "VCO_PROXY_PASSWORD")

	// Load configuration file if it exists
	if configPath != "" && fileExists(configPath) {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validateConfig validates required configuration values
func validateConfig(cfg *Config) error {
	if cfg.VCO.Host == "" {
		return fmt.Errorf("vco.host is required")
	}
	if cfg.VCO.Username == "" {
		return fmt.Errorf("vco.username is required")
	}
	if cfg.VCO.Password == "" {
		return fmt.Errorf("vco.password is required")
	}
	if cfg.VCO.Timeout <= 0 {
		return fmt.Errorf("vco.timeout must be positive")
	}
	if cfg.Probe.IntervalMinutes <= 0 {
		return fmt.Errorf("probe.interval_minutes must be positive")
	}
	for _, id := range cfg.VCO.EnterpriseIDs {
		if id <= 0 {
			return fmt.Errorf("vco.enterprise_ids must contain positive IDs, got %d", id)
		}
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
