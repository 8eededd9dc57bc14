package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Sample   SampleConfig   `yaml:"sample" mapstructure:"sample"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Convert  ConvertConfig  `yaml:"convert" mapstructure:"convert"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                int    `yaml:"port" mapstructure:"port"`
	StaticDir           string `yaml:"static_dir" mapstructure:"static_dir"`
	ReadTimeoutSecs     int    `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// ReadTimeout returns the request header read timeout.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSecs) * time.Second
}

// ShutdownTimeout returns how long in-flight requests get to finish on shutdown.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SampleConfig configures the sample endpoint.
type SampleConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// FetchConfig configures upstream HTTP requests.
type FetchConfig struct {
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	HeaderTimeoutSecs int    `yaml:"header_timeout_secs" mapstructure:"header_timeout_secs"`
}

// HeaderTimeout returns the upstream response header timeout.
func (f FetchConfig) HeaderTimeout() time.Duration {
	return time.Duration(f.HeaderTimeoutSecs) * time.Second
}

// DownloadConfig configures dataset resolution and archive staging.
type DownloadConfig struct {
	MetadataURL string `yaml:"metadata_url" mapstructure:"metadata_url"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ConvertConfig configures CSV to GeoJSON conversion.
type ConvertConfig struct {
	LonField   string `yaml:"lon_field" mapstructure:"lon_field"`
	LatField   string `yaml:"lat_field" mapstructure:"lat_field"`
	FlushEvery int    `yaml:"flush_every" mapstructure:"flush_every"`
}

// Validate checks the settings required by the given run mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "sample":
	case "download":
		if c.Download.MetadataURL == "" {
			errs = append(errs, "download.metadata_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Sample.Limit < 1 || c.Sample.Limit > 1000 {
		errs = append(errs, "sample.limit must be between 1 and 1000")
	}
	if c.Convert.LonField == "" || c.Convert.LatField == "" {
		errs = append(errs, "convert.lon_field and convert.lat_field are required")
	}
	if c.Convert.FlushEvery < 1 {
		errs = append(errs, "convert.flush_every must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from config.yaml, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUBMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The metadata feed keeps its historical variable name as a fallback.
	if err := v.BindEnv("download.metadata_url", "SUBMIT_DOWNLOAD_METADATA_URL", "OPENADDRESSES_METADATA_FILE"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sample.limit", 10)
	v.SetDefault("fetch.user_agent", "submit-service/1.0")
	v.SetDefault("fetch.header_timeout_secs", 60)
	v.SetDefault("download.metadata_url", "")
	v.SetDefault("download.temp_dir", "")
	v.SetDefault("convert.lon_field", "LON")
	v.SetDefault("convert.lat_field", "LAT")
	v.SetDefault("convert.flush_every", 500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
