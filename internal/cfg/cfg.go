// Package cfg loads service settings from a YAML config file selected by
// CONFIG_FILE, with environment variables as fallback and override.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	ListenAddr      string
	MetricsPort     int
	ArtifactsDir    string
	DataPath        string
	RegistryURL     string
	RegistryTimeout time.Duration
	LogLevel        string
}

type ConfigFile struct {
	Server struct {
		ListenAddr  string `yaml:"listenAddr"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"server"`

	Artifacts struct {
		Dir             string `yaml:"dir"`
		RegistryURL     string `yaml:"registryURL"`
		RegistryTimeout string `yaml:"registryTimeout"`
	} `yaml:"artifacts"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	registryTimeout, err := time.ParseDuration(config.Artifacts.RegistryTimeout)
	if err != nil {
		registryTimeout = 30 * time.Second
	}

	settings := Settings{
		ListenAddr:      getEnvOrDefault("LISTEN_ADDR", config.Server.ListenAddr),
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort),
		ArtifactsDir:    getEnvOrDefault("ARTIFACTS_DIR", config.Artifacts.Dir),
		DataPath:        getEnvOrDefault("DATA_PATH", config.System.DataPath),
		RegistryURL:     getEnvOrDefault("REGISTRY_URL", config.Artifacts.RegistryURL),
		RegistryTimeout: registryTimeout,
		LogLevel:        getEnvOrDefault("LOG_LEVEL", config.System.LogLevel),
	}

	applyDefaults(&settings)
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ListenAddr:      os.Getenv("LISTEN_ADDR"),
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", 0),
		ArtifactsDir:    os.Getenv("ARTIFACTS_DIR"),
		DataPath:        os.Getenv("DATA_PATH"),
		RegistryURL:     os.Getenv("REGISTRY_URL"),
		RegistryTimeout: 30 * time.Second,
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}
	if raw := os.Getenv("REGISTRY_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			settings.RegistryTimeout = d
		}
	}

	applyDefaults(&settings)
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.ListenAddr == "" {
		s.ListenAddr = ":8000"
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 9090
	}
	if s.ArtifactsDir == "" {
		s.ArtifactsDir = "artifacts"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

func validateSettings(s *Settings) error {
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", s.MetricsPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntFromEnvOrConfig(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
