package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Nullbr contains configuration for the Nullbr resource search API.
type Nullbr struct {
	AppID          string `toml:"app_id"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RatePerSecond  int    `toml:"rate_per_second"`
}

// Resources contains the resource-type priority order and per-type toggles.
type Resources struct {
	// Priority lists resource types from most to least preferred. An order
	// that is not a permutation of all known types is replaced wholesale by
	// the default order.
	Priority     []string `toml:"priority"`
	EnableShare  bool     `toml:"enable_share"`
	EnableMagnet bool     `toml:"enable_magnet"`
	EnableED2K   bool     `toml:"enable_ed2k"`
	EnableStream bool     `toml:"enable_stream"`
}

// CloudDrive contains configuration for the CloudDrive2 offline-queue backend.
// Credential is either an API token or a username/password pair, not both.
type CloudDrive struct {
	Enabled               bool   `toml:"enabled"`
	URL                   string `toml:"url"`
	APIToken              string `toml:"api_token"`
	Username              string `toml:"username"`
	Password              string `toml:"password"`
	SavePath              string `toml:"save_path"`
	OfflinePath           string `toml:"offline_path"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Drive115 contains configuration for the cookie-session 115 share-save backend.
type Drive115 struct {
	Enabled  bool   `toml:"enabled"`
	Cookies  string `toml:"cookies"`
	SavePath string `toml:"save_path"`
}

// Share contains share-link recognition settings.
type Share struct {
	// Domains is the closed set of share-link hosts the parser accepts.
	Domains []string `toml:"domains"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ferry.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, API bind address and token
//   - Nullbr: resource search provider credentials and limits
//   - Resources: resource-type priority order and per-type toggles
//   - CloudDrive: CloudDrive2 endpoint, credential, and target folders
//   - Drive115: 115 cookie session and share-save target folder
//   - Share: accepted share-link domains
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Nullbr     Nullbr     `toml:"nullbr"`
	Resources  Resources  `toml:"resources"`
	CloudDrive CloudDrive `toml:"clouddrive"`
	Drive115   Drive115   `toml:"drive115"`
	Share      Share      `toml:"share"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ferry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and the priority order canonicalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CloudDriveConfigured reports whether the offline-queue backend is usable.
func (c *Config) CloudDriveConfigured() bool {
	return c.CloudDrive.Enabled && strings.TrimSpace(c.CloudDrive.URL) != ""
}

// Drive115Configured reports whether the cookie share-save backend is usable.
func (c *Config) Drive115Configured() bool {
	return c.Drive115.Enabled && strings.TrimSpace(c.Drive115.Cookies) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
