// Package config provides configuration management for the xuanxuan host.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDirectory returns the per-user directory holding host.conf, the
// single-instance lock, and (on Unix) the host socket.
//
// Locations:
//   - Windows: %APPDATA%\Xuanxuan
//   - Unix: ~/.config/xuanxuan
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "xuanxuan")
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Xuanxuan")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "xuanxuan")
		}
		return filepath.Join(homeDir, ".config", "xuanxuan")
	}
	return filepath.Join(configDir, "xuanxuan")
}

// LogDirectory returns the log directory shared by host and window processes.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\Xuanxuan\logs
//   - Unix: ~/.config/xuanxuan/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "xuanxuan-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "Xuanxuan", "logs")
	}
	return filepath.Join(ConfigDirectory(), "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// DefaultHostConfigPath returns the default location of host.conf.
func DefaultHostConfigPath() string {
	return filepath.Join(ConfigDirectory(), "host.conf")
}
