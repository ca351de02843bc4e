// Package config loads and persists the crew configuration file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config represents application configuration
type Config struct {
	Project              string   `json:"project"`
	Mode                 string   `json:"mode"` // ask_always, auto_approve, yolo
	Model                string   `json:"model"`
	APIKeyEnv            string   `json:"api_key_env"`
	MaxParallelTasks     int      `json:"max_parallel_tasks"`
	MaxRetries           int      `json:"max_retries"`
	ApprovalTimeoutSecs  int      `json:"approval_timeout_seconds"`
	TokenBudget          int      `json:"token_budget"`
	KeepRounds           int      `json:"keep_rounds"`
	SessionTTLMinutes    int      `json:"session_ttl_minutes"`
	SweepIntervalSeconds int      `json:"sweep_interval_seconds"`
	AllowedCommands      []string `json:"allowed_commands,omitempty"`
	DeniedCommands       []string `json:"denied_commands,omitempty"`
	AllowedPaths         []string `json:"allowed_paths,omitempty"`
	DeniedPaths          []string `json:"denied_paths,omitempty"`
	LogLevel             string   `json:"log_level"` // debug, info, warn, error, none
	LogPath              string   `json:"-"`
	StateDir             string   `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "crewschnell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "crewschnell")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "crewschnell")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "crewschnell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "crewschnell")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "crewschnell")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Project:              "default",
		Mode:                 "ask_always",
		Model:                "claude-3-5-sonnet-20241022",
		APIKeyEnv:            "ANTHROPIC_API_KEY",
		MaxParallelTasks:     3,
		MaxRetries:           2,
		ApprovalTimeoutSecs:  300,
		TokenBudget:          32000,
		KeepRounds:           5,
		SessionTTLMinutes:    30,
		SweepIntervalSeconds: 60,
		LogLevel:             "info",
		LogPath:              filepath.Join(stateDir, "crewschnell.log"),
		StateDir:             stateDir,
	}
}

// Load loads configuration from file, falling back to defaults for missing
// fields or a missing file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.Project == "" {
		config.Project = "default"
	}
	if config.Mode == "" {
		config.Mode = "ask_always"
	}
	if config.MaxParallelTasks <= 0 {
		config.MaxParallelTasks = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.ApprovalTimeoutSecs <= 0 {
		config.ApprovalTimeoutSecs = 300
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "crewschnell.log")
	}
	if config.StateDir == "" {
		config.StateDir = defaultStateDir()
	}

	return config, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
