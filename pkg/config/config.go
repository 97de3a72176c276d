package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete netgate configuration
type Config struct {
	NetBox    NetBoxConfig    `mapstructure:"netbox"`
	Render    RenderConfig    `mapstructure:"render"`
	Attest    AttestConfig    `mapstructure:"attest"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// NetBoxConfig contains NetBox API connection settings
type NetBoxConfig struct {
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	AllowInsecure bool   `mapstructure:"allow_insecure"`
}

// RenderConfig contains tfvars rendering settings
type RenderConfig struct {
	IntentDir string `mapstructure:"intent_dir"`
	OutputDir string `mapstructure:"output_dir"`
	Workers   int    `mapstructure:"workers"`
}

// AttestConfig contains attestation verification settings
type AttestConfig struct {
	Environment string `mapstructure:"environment"`
	PublicKey   string `mapstructure:"public_key"`
	PrivateKey  string `mapstructure:"private_key"`
	BuilderID   string `mapstructure:"builder_id"`
}

// ArtifactsConfig contains artifact store settings
type ArtifactsConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NetBox: NetBoxConfig{
			URL: "http://localhost:8000/api/",
		},
		Render: RenderConfig{
			IntentDir: "artifacts/intent-export",
			OutputDir: "artifacts/tfvars",
			Workers:   4,
		},
		Attest: AttestConfig{
			Environment: "production",
			BuilderID:   "",
		},
		Artifacts: ArtifactsConfig{
			BaseDir: "artifacts",
		},
		Output: OutputConfig{
			Format:  "table",
			NoColor: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".netgate"))
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("NETGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// NetBox credentials follow the names the exporter scripts used.
	viper.BindEnv("netbox.url", "NETBOX_URL")
	viper.BindEnv("netbox.token", "NETBOX_API_TOKEN")
	viper.BindEnv("netbox.allow_insecure", "NETGATE_ALLOW_INSECURE")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is not an error - we'll use defaults
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Attest.Environment != "production" && c.Attest.Environment != "development" {
		return fmt.Errorf("attest.environment must be production or development, got %q", c.Attest.Environment)
	}

	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be at least 1")
	}

	return nil
}

// ExpandPaths expands home directory paths
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{
		&c.Render.IntentDir,
		&c.Render.OutputDir,
		&c.Artifacts.BaseDir,
		&c.Attest.PublicKey,
		&c.Attest.PrivateKey,
	} {
		expanded, err := expandPath(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
