package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/easysoft/xuanxuan-host/internal/constants"
)

// HostConfig is the host process configuration.
//
// INI format:
//
//	[host]
//	entry_path = /opt/xuanxuan/app
//	debug = false
//	socket_path =
//
//	[window]
//	width = 900
//	height = 650
//	min_width = 400
//	min_height = 650
//	url = index.html
//	hash_route =
//
//	[tray]
//	icon = img/tray-icon-16.png
//	icon_blank = img/tray-icon-transparent.png
//	tooltip = Xuanxuan
//
//	[log]
//	file_enabled = true
//	max_size_mb = 10
//	max_backups = 5
type HostConfig struct {
	Host   HostSection
	Window WindowSection
	Tray   TraySection
	Log    LogSection
}

// HostSection contains process-wide settings.
type HostSection struct {
	// EntryPath is the application root handed to windows through the
	// entryPath query. Defaults to the executable's directory.
	EntryPath string `ini:"entry_path"`

	// Debug enables debug logging and EventBus tracing.
	Debug bool `ini:"debug"`

	// SocketPath overrides the IPC endpoint (Unix socket or Windows pipe name).
	SocketPath string `ini:"socket_path"`
}

// WindowSection holds defaults for application windows.
type WindowSection struct {
	Width     int    `ini:"width"`
	Height    int    `ini:"height"`
	MinWidth  int    `ini:"min_width"`
	MinHeight int    `ini:"min_height"`
	URL       string `ini:"url"`
	HashRoute string `ini:"hash_route"`
}

// TraySection holds the tray image paths, relative to EntryPath.
type TraySection struct {
	Icon      string `ini:"icon"`
	IconBlank string `ini:"icon_blank"`
	Tooltip   string `ini:"tooltip"`
}

// LogSection configures the rotating log file.
type LogSection struct {
	FileEnabled bool `ini:"file_enabled"`
	MaxSizeMB   int  `ini:"max_size_mb"`
	MaxBackups  int  `ini:"max_backups"`
}

// HostConfig validation errors
var (
	ErrInvalidWindowSize = errors.New("window width and height must be positive")
	ErrInvalidMinSize    = errors.New("window min size must not exceed default size")
	ErrInvalidLogSize    = errors.New("max_size_mb must be between 1 and 1024")
)

// NewHostConfig creates a HostConfig with default values.
func NewHostConfig() *HostConfig {
	return &HostConfig{
		Host: HostSection{
			EntryPath: defaultEntryPath(),
		},
		Window: WindowSection{
			Width:     constants.DefaultWindowWidth,
			Height:    constants.DefaultWindowHeight,
			MinWidth:  constants.DefaultWindowMinWidth,
			MinHeight: constants.DefaultWindowMinHeight,
			URL:       "index.html",
		},
		Tray: TraySection{
			Icon:      filepath.Join("img", "tray-icon-16.png"),
			IconBlank: filepath.Join("img", "tray-icon-transparent.png"),
			Tooltip:   constants.DefaultTrayTooltip,
		},
		Log: LogSection{
			FileEnabled: true,
			MaxSizeMB:   10,
			MaxBackups:  5,
		},
	}
}

func defaultEntryPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// LoadHostConfig loads configuration from host.conf.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
func LoadHostConfig(path string) (*HostConfig, error) {
	cfg := NewHostConfig()

	if path == "" {
		path = DefaultHostConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load host.conf: %w", err)
	}

	hostSection := iniFile.Section("host")
	cfg.Host.EntryPath = hostSection.Key("entry_path").MustString(cfg.Host.EntryPath)
	cfg.Host.Debug = hostSection.Key("debug").MustBool(false)
	cfg.Host.SocketPath = hostSection.Key("socket_path").String()

	windowSection := iniFile.Section("window")
	cfg.Window.Width = windowSection.Key("width").MustInt(constants.DefaultWindowWidth)
	cfg.Window.Height = windowSection.Key("height").MustInt(constants.DefaultWindowHeight)
	cfg.Window.MinWidth = windowSection.Key("min_width").MustInt(constants.DefaultWindowMinWidth)
	cfg.Window.MinHeight = windowSection.Key("min_height").MustInt(constants.DefaultWindowMinHeight)
	cfg.Window.URL = windowSection.Key("url").MustString("index.html")
	cfg.Window.HashRoute = windowSection.Key("hash_route").String()

	traySection := iniFile.Section("tray")
	cfg.Tray.Icon = traySection.Key("icon").MustString(cfg.Tray.Icon)
	cfg.Tray.IconBlank = traySection.Key("icon_blank").MustString(cfg.Tray.IconBlank)
	cfg.Tray.Tooltip = traySection.Key("tooltip").MustString(constants.DefaultTrayTooltip)

	logSection := iniFile.Section("log")
	cfg.Log.FileEnabled = logSection.Key("file_enabled").MustBool(true)
	cfg.Log.MaxSizeMB = logSection.Key("max_size_mb").MustInt(10)
	cfg.Log.MaxBackups = logSection.Key("max_backups").MustInt(5)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host.conf: %w", err)
	}

	return cfg, nil
}

// SaveHostConfig writes cfg to path (default path when empty), creating
// parent directories as needed.
func SaveHostConfig(cfg *HostConfig, path string) error {
	if path == "" {
		path = DefaultHostConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	hostSection, err := iniFile.NewSection("host")
	if err != nil {
		return fmt.Errorf("failed to create host section: %w", err)
	}
	hostSection.Key("entry_path").SetValue(cfg.Host.EntryPath)
	hostSection.Key("debug").SetValue(strconv.FormatBool(cfg.Host.Debug))
	hostSection.Key("socket_path").SetValue(cfg.Host.SocketPath)

	windowSection, err := iniFile.NewSection("window")
	if err != nil {
		return fmt.Errorf("failed to create window section: %w", err)
	}
	windowSection.Key("width").SetValue(strconv.Itoa(cfg.Window.Width))
	windowSection.Key("height").SetValue(strconv.Itoa(cfg.Window.Height))
	windowSection.Key("min_width").SetValue(strconv.Itoa(cfg.Window.MinWidth))
	windowSection.Key("min_height").SetValue(strconv.Itoa(cfg.Window.MinHeight))
	windowSection.Key("url").SetValue(cfg.Window.URL)
	windowSection.Key("hash_route").SetValue(cfg.Window.HashRoute)

	traySection, err := iniFile.NewSection("tray")
	if err != nil {
		return fmt.Errorf("failed to create tray section: %w", err)
	}
	traySection.Key("icon").SetValue(cfg.Tray.Icon)
	traySection.Key("icon_blank").SetValue(cfg.Tray.IconBlank)
	traySection.Key("tooltip").SetValue(cfg.Tray.Tooltip)

	logSection, err := iniFile.NewSection("log")
	if err != nil {
		return fmt.Errorf("failed to create log section: %w", err)
	}
	logSection.Key("file_enabled").SetValue(strconv.FormatBool(cfg.Log.FileEnabled))
	logSection.Key("max_size_mb").SetValue(strconv.Itoa(cfg.Log.MaxSizeMB))
	logSection.Key("max_backups").SetValue(strconv.Itoa(cfg.Log.MaxBackups))

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the host configuration is usable.
func (cfg *HostConfig) Validate() error {
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return ErrInvalidWindowSize
	}
	if cfg.Window.MinWidth > cfg.Window.Width || cfg.Window.MinHeight > cfg.Window.Height {
		return ErrInvalidMinSize
	}
	if cfg.Log.MaxSizeMB < 1 || cfg.Log.MaxSizeMB > 1024 {
		return ErrInvalidLogSize
	}
	return nil
}

// ResolvePath resolves p against EntryPath unless it is already absolute.
func (cfg *HostConfig) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Host.EntryPath, p)
}

// WindowURL returns the page URL for app windows, with the hash route
// appended when configured.
func (cfg *HostConfig) WindowURL() string {
	u := cfg.Window.URL
	if cfg.Window.HashRoute != "" {
		u += "#" + strings.TrimPrefix(cfg.Window.HashRoute, "#")
	}
	return u
}

// LogFilePath returns the host log file path, or "" when file logging is off.
func (cfg *HostConfig) LogFilePath(component string) string {
	if !cfg.Log.FileEnabled {
		return ""
	}
	return filepath.Join(LogDirectory(), component+".log")
}
