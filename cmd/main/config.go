package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP API server.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
}

// GenerationConfig holds the default tunables applied to generation requests
// that don't override them.
type GenerationConfig struct {
	Order        int     `json:"order"`
	TargetLength int     `json:"target_length"`
	MaxLength    int     `json:"max_length"`
	Samples      int     `json:"samples"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
}

// Config is the top-level configuration struct.
type Config struct {
	Server     *ServerConfig     `json:"server_config"`
	Generation *GenerationConfig `json:"generation_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7279",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/blather.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultGenerationConfig creates generation defaults with default values.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Order:        2,
		TargetLength: 15,
		MaxLength:    100,
		Samples:      5,
		Alpha:        1.0,
		Beta:         1.0,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path. If
// the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server:     DefaultServerConfig(),
		Generation: DefaultGenerationConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data, _ := json.MarshalIndent(config, "", "  ")
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveConfig atomically persists the configuration to the given path.
func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
