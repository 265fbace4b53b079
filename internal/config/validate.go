package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNullbr(); err != nil {
		return err
	}
	if err := c.validateCloudDrive(); err != nil {
		return err
	}
	if err := c.validateDrive115(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNullbr() error {
	if c.Nullbr.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ferry/config.toml"
		}
		return fmt.Errorf("nullbr.api_key is required. Set NULLBR_API_KEY env var or edit %s (create with 'ferry config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateCloudDrive() error {
	if !c.CloudDrive.Enabled {
		return nil
	}
	if c.CloudDrive.URL == "" {
		return errors.New("clouddrive.url must be set when clouddrive.enabled is true")
	}
	hasToken := c.CloudDrive.APIToken != ""
	hasLogin := c.CloudDrive.Username != "" && c.CloudDrive.Password != ""
	if hasToken && (c.CloudDrive.Username != "" || c.CloudDrive.Password != "") {
		return errors.New("clouddrive credential: set api_token or username/password, not both")
	}
	if !hasToken && !hasLogin {
		return errors.New("clouddrive credential: api_token or username/password required")
	}
	if !strings.HasPrefix(c.CloudDrive.SavePath, "/") {
		return fmt.Errorf("clouddrive.save_path must be absolute, got %q", c.CloudDrive.SavePath)
	}
	if !strings.HasPrefix(c.CloudDrive.OfflinePath, "/") {
		return fmt.Errorf("clouddrive.offline_path must be absolute, got %q", c.CloudDrive.OfflinePath)
	}
	return nil
}

func (c *Config) validateDrive115() error {
	if !c.Drive115.Enabled {
		return nil
	}
	if c.Drive115.Cookies == "" {
		return errors.New("drive115.cookies must be set when drive115.enabled is true")
	}
	for _, field := range []string{"UID", "CID", "SEID"} {
		if !strings.Contains(c.Drive115.Cookies, field+"=") {
			return fmt.Errorf("drive115.cookies missing required field %s", field)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
