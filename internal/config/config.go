// Package config provides the startup configuration for the clicker.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"autoclicker/internal/control"
	"autoclicker/internal/hotkey"
	"autoclicker/internal/input"
	"autoclicker/internal/logging"
)

// Config represents the application configuration
type Config struct {
	// Clicker contains the initial hotkey and click settings
	Clicker ClickerConfig `json:"clicker"`

	// API contains the local control server settings
	API APIConfig `json:"api"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// ClickerConfig holds the values the clicker starts with. All of them can be
// changed at runtime; runtime changes are not written back.
type ClickerConfig struct {
	// Hotkey is the key that arms and disarms clicking (e.g. "F9")
	Hotkey string `json:"hotkey"`

	// DelayMillis is the pause between clicks in milliseconds
	DelayMillis int `json:"delay_ms"`

	// Button is "left", "right" or "middle"
	Button string `json:"button"`

	// SettleMillis is the wait after each injected event
	SettleMillis int `json:"settle_ms"`
}

// APIConfig configures the HTTP/WebSocket control server
type APIConfig struct {
	// Enabled starts the control server
	Enabled bool `json:"enabled"`

	// Addr is the listen address (default: 127.0.0.1:18081)
	Addr string `json:"addr"`

	// Token is an optional bearer token required on every request but /health
	Token string `json:"token,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// Tray shows the system tray menu
	Tray bool `json:"tray"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level"`
}

// Delay returns the click delay as a duration
func (c ClickerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// Settle returns the post-event wait as a duration
func (c ClickerConfig) Settle() time.Duration {
	return time.Duration(c.SettleMillis) * time.Millisecond
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Clicker: ClickerConfig{
			Hotkey:       "F9",
			DelayMillis:  20,
			Button:       "left",
			SettleMillis: 10,
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:18081",
		},
		General: GeneralConfig{
			Tray:     true,
			LogLevel: "info",
		},
	}
}

// Validate checks every field and returns the first problem found
func (c Config) Validate() error {
	if _, err := hotkey.ParseKey(c.Clicker.Hotkey); err != nil {
		return fmt.Errorf("clicker.hotkey: %w", err)
	}
	if err := checkMillis(c.Clicker.DelayMillis); err != nil {
		return fmt.Errorf("clicker.delay_ms: %w", err)
	}
	if _, err := input.ParseButton(c.Clicker.Button); err != nil {
		return fmt.Errorf("clicker.button: %w", err)
	}
	if err := checkMillis(c.Clicker.SettleMillis); err != nil {
		return fmt.Errorf("clicker.settle_ms: %w", err)
	}
	if c.API.Enabled {
		if _, _, err := net.SplitHostPort(c.API.Addr); err != nil {
			return fmt.Errorf("api.addr: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("general.log_level: %w", err)
	}
	return nil
}

func checkMillis(ms int) error {
	if ms < 0 {
		return fmt.Errorf("must not be negative, got %d", ms)
	}
	if int64(ms) > control.MaxDelayMillis {
		return fmt.Errorf("too large, got %d (max %d)", ms, control.MaxDelayMillis)
	}
	return nil
}

// Manager handles loading configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     Config
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager reading from path
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "autoclicker")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "autoclicker")
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, "autoclicker")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the file the manager reads
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file leaves the defaults
// in place; fields absent from the file keep their default values.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration after validating it
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}
