package config

const (
	defaultDataDir               = "~/.local/share/ferry"
	defaultLogDir                = "~/.local/share/ferry/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultNullbrBaseURL         = "https://api.nullbr.eu.org"
	defaultNullbrTimeoutSeconds  = 30
	defaultNullbrRatePerSecond   = 2
	defaultCloudDriveURL         = "http://localhost:19798"
	defaultCloudDriveSavePath    = "/115/Downloads"
	defaultCloudDriveOfflinePath = "/115/Offline"
	defaultConnectTimeoutSeconds = 10
	defaultRequestTimeoutSeconds = 60
	defaultDrive115SavePath      = "/"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// DefaultPriority is the canonical resource-type preference order.
var DefaultPriority = []string{"share", "magnet", "ed2k", "stream"}

// DefaultShareDomains is the closed set of share-link hosts accepted out of
// the box.
var DefaultShareDomains = []string{"115.com", "115cdn.com", "anxia.com", "115.tv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Nullbr: Nullbr{
			BaseURL:        defaultNullbrBaseURL,
			TimeoutSeconds: defaultNullbrTimeoutSeconds,
			RatePerSecond:  defaultNullbrRatePerSecond,
		},
		Resources: Resources{
			Priority:     append([]string(nil), DefaultPriority...),
			EnableShare:  true,
			EnableMagnet: true,
			EnableED2K:   true,
			EnableStream: true,
		},
		CloudDrive: CloudDrive{
			URL:                   defaultCloudDriveURL,
			SavePath:              defaultCloudDriveSavePath,
			OfflinePath:           defaultCloudDriveOfflinePath,
			ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Drive115: Drive115{
			SavePath: defaultDrive115SavePath,
		},
		Share: Share{
			Domains: append([]string(nil), DefaultShareDomains...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
