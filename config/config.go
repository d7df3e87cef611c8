// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "murmur"
	configFileName = "config.json"

	// DefaultPort serves the settings page.
	DefaultPort = 7878

	// EngineLocal runs whisper.cpp on this machine.
	EngineLocal = "local"
	// EngineAPI uses the hosted Whisper endpoint.
	EngineAPI = "api"
)

// ErrInvalidEngine is returned for an unrecognized engine selection.
var ErrInvalidEngine = errors.New("invalid transcription engine")

// Config represents the application configuration.
type Config struct {
	Whisper  WhisperConfig  `json:"whisper"`
	Audio    AudioConfig    `json:"audio"`
	Behavior BehaviorConfig `json:"behavior"`
	Server   ServerConfig   `json:"server"`
}

// WhisperConfig selects and configures the transcription engine.
type WhisperConfig struct {
	ModelPath string `json:"model_path"`
	Engine    string `json:"engine"`
	APIKey    string `json:"api_key,omitempty"`
}

// AudioConfig selects the input device. Empty Device means system default.
type AudioConfig struct {
	Device string `json:"device"`
}

// BehaviorConfig controls text delivery.
type BehaviorConfig struct {
	AutoPaste bool `json:"auto_paste"`
}

// ServerConfig configures the settings page listener.
type ServerConfig struct {
	Port int `json:"port"`
}

func defaultConfig() *Config {
	return &Config{
		Whisper:  WhisperConfig{Engine: EngineLocal},
		Behavior: BehaviorConfig{AutoPaste: true},
		Server:   ServerConfig{Port: DefaultPort},
	}
}

// Load reads the configuration from the user config directory. On first run
// the defaults are written to disk and returned.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := cfg.SaveTo(path); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	}
	return cfg, nil
}

// LoadFrom reads the configuration from an explicit path. A missing file
// yields the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	return cfg, nil
}

// Save persists the configuration to the user config directory.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration atomically: marshal to a temp file in the
// same directory, then rename over the target. A crash mid-write never
// leaves a truncated config behind.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, configFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// ValidateEngine checks the engine selection and its prerequisites that can
// be known without touching the filesystem. Model existence is checked
// lazily at claim time, so a model downloaded later is picked up.
func (c *Config) ValidateEngine() error {
	switch c.Whisper.Engine {
	case EngineLocal:
		return nil
	case EngineAPI:
		if c.Whisper.APIKey == "" {
			return fmt.Errorf("%w: api engine requires an api key", ErrInvalidEngine)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Whisper.Engine)
	}
}

// ServerURL returns the settings page address.
func (c *Config) ServerURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}
