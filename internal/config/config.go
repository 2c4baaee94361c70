package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "trellis-bridge"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Config is the bridge configuration file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Features    FeatureConfig     `yaml:"features"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Assets      AssetsConfig      `yaml:"assets"`
	LogLevel    string            `yaml:"log_level"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
}

// ServerConfig configures the command server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Interval        time.Duration `yaml:"interval"`
	PollSlice       time.Duration `yaml:"poll_slice"`
	Framing         string        `yaml:"framing"`
	MaxMessageBytes int           `yaml:"max_message_bytes"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// FeatureConfig holds feature flags.
type FeatureConfig struct {
	Marketplace bool `yaml:"marketplace"`
}

// MarketplaceConfig configures the asset marketplace client.
type MarketplaceConfig struct {
	APIURL string `yaml:"api_url"`
}

// AssetsConfig configures the download cache.
type AssetsConfig struct {
	// CacheDir defaults to a directory under the system temp dir.
	CacheDir string `yaml:"cache_dir"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// DiscoveryConfig configures mDNS advertisement.
type DiscoveryConfig struct {
	Advertise bool `yaml:"advertise"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9876,
			Interval:        100 * time.Millisecond,
			PollSlice:       time.Millisecond,
			Framing:         string(protocol.ModeWhole),
			MaxMessageBytes: protocol.DefaultMaxMessageSize,
			WriteTimeout:    5 * time.Second,
		},
		Marketplace: MarketplaceConfig{
			APIURL: "https://api.polyhaven.com",
		},
	}
}

// FeatureSet returns the enabled feature flags.
func (c *Config) FeatureSet() command.Features {
	return command.Features{
		command.FeatureMarketplace: c.Features.Marketplace,
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range 0-65535", c.Server.Port))
	}
	if c.Server.Interval <= 0 {
		errs = append(errs, fmt.Errorf("server.interval must be positive, got %s", c.Server.Interval))
	}
	if c.Server.PollSlice <= 0 {
		errs = append(errs, fmt.Errorf("server.poll_slice must be positive, got %s", c.Server.PollSlice))
	} else if c.Server.PollSlice >= c.Server.Interval {
		errs = append(errs, fmt.Errorf("server.poll_slice (%s) must be shorter than server.interval (%s)", c.Server.PollSlice, c.Server.Interval))
	}
	if _, err := protocol.ParseMode(c.Server.Framing); err != nil {
		errs = append(errs, fmt.Errorf("server.framing: %w", err))
	}
	if c.Server.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_message_bytes must not be negative"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive, got %s", c.Server.WriteTimeout))
	}
	if u := c.Marketplace.APIURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		errs = append(errs, fmt.Errorf("marketplace.api_url must be an http(s) URL, got %q", u))
	}
	if a := c.Metrics.Addr; a != "" {
		if _, _, err := net.SplitHostPort(a); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/trellis-bridge or $HOME/.config/trellis-bridge
//   - macOS: $HOME/.config/trellis-bridge (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\trellis-bridge
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			baseDir = filepath.Join(xdg, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding onto the defaults keeps every key the file leaves out.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	header := []byte(`# trellis-bridge configuration
#
# Changes to "features" apply while the bridge is running; other keys are
# read at startup.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
