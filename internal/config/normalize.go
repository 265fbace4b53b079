package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNullbr()
	c.normalizeResources()
	c.normalizeBackends()
	c.normalizeShare()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("FERRY_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeNullbr() {
	if c.Nullbr.APIKey == "" {
		if value, ok := os.LookupEnv("NULLBR_API_KEY"); ok {
			c.Nullbr.APIKey = value
		}
	}
	if c.Nullbr.AppID == "" {
		if value, ok := os.LookupEnv("NULLBR_APP_ID"); ok {
			c.Nullbr.AppID = value
		}
	}
	c.Nullbr.BaseURL = strings.TrimRight(strings.TrimSpace(c.Nullbr.BaseURL), "/")
	if c.Nullbr.BaseURL == "" {
		c.Nullbr.BaseURL = defaultNullbrBaseURL
	}
	if c.Nullbr.TimeoutSeconds <= 0 {
		c.Nullbr.TimeoutSeconds = defaultNullbrTimeoutSeconds
	}
	if c.Nullbr.RatePerSecond <= 0 {
		c.Nullbr.RatePerSecond = defaultNullbrRatePerSecond
	}
}

// normalizeResources canonicalizes the priority order. Unknown entries and
// duplicates are dropped; anything short of a full permutation of the known
// types is replaced wholesale by the default order.
func (c *Config) normalizeResources() {
	known := make(map[string]struct{}, len(DefaultPriority))
	for _, t := range DefaultPriority {
		known[t] = struct{}{}
	}

	var cleaned []string
	seen := make(map[string]struct{}, len(DefaultPriority))
	for _, entry := range c.Resources.Priority {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if _, ok := known[entry]; !ok {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		cleaned = append(cleaned, entry)
	}

	if len(cleaned) != len(DefaultPriority) {
		cleaned = append([]string(nil), DefaultPriority...)
	}
	c.Resources.Priority = cleaned
}

func (c *Config) normalizeBackends() {
	c.CloudDrive.URL = strings.TrimRight(strings.TrimSpace(c.CloudDrive.URL), "/")
	c.CloudDrive.APIToken = strings.TrimSpace(c.CloudDrive.APIToken)
	c.CloudDrive.Username = strings.TrimSpace(c.CloudDrive.Username)
	if strings.TrimSpace(c.CloudDrive.SavePath) == "" {
		c.CloudDrive.SavePath = defaultCloudDriveSavePath
	}
	if strings.TrimSpace(c.CloudDrive.OfflinePath) == "" {
		c.CloudDrive.OfflinePath = defaultCloudDriveOfflinePath
	}
	if c.CloudDrive.ConnectTimeoutSeconds <= 0 {
		c.CloudDrive.ConnectTimeoutSeconds = defaultConnectTimeoutSeconds
	}
	if c.CloudDrive.RequestTimeoutSeconds <= 0 {
		c.CloudDrive.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}

	c.Drive115.Cookies = strings.TrimSpace(c.Drive115.Cookies)
	if strings.TrimSpace(c.Drive115.SavePath) == "" {
		c.Drive115.SavePath = defaultDrive115SavePath
	}
}

func (c *Config) normalizeShare() {
	var cleaned []string
	seen := make(map[string]struct{})
	for _, domain := range c.Share.Domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		cleaned = append(cleaned, domain)
	}
	if len(cleaned) == 0 {
		cleaned = append([]string(nil), DefaultShareDomains...)
	}
	c.Share.Domains = cleaned
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
