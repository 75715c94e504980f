package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. VERITAS_SERVER_LISTEN_ADDR.
const EnvPrefix = "VERITAS"

// Config is the runtime configuration of every component.
type Config struct {
	Server   ServerConfig
	Analysis analysis.Config
	Log      logging.Config
}

// ServerConfig configures the HTTP API and session housekeeping.
type ServerConfig struct {
	ListenAddr string
	// MaxUploadBytes caps image uploads. Zero means unlimited.
	MaxUploadBytes int64
	// SessionTTL evicts sessions idle for longer. Zero disables eviction.
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults. The API
// key is left empty.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			MaxUploadBytes: 0,
			SessionTTL:     30 * time.Minute,
			SweepInterval:  time.Minute,
		},
		Analysis: analysis.DefaultConfig(),
		Log: logging.Config{
			Level:       "info",
			Development: false,
		},
	}
}

// Load reads configuration from defaults, an optional file at path and the
// environment, in increasing precedence. The API key is also read from
// GEMINI_API_KEY or API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("analysis.api_key", EnvPrefix+"_ANALYSIS_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api key env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:     v.GetString("server.listen_addr"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
			SessionTTL:     v.GetDuration("server.session_ttl"),
			SweepInterval:  v.GetDuration("server.sweep_interval"),
		},
		Analysis: analysis.Config{
			APIKey:      v.GetString("analysis.api_key"),
			Model:       v.GetString("analysis.model"),
			BaseURL:     v.GetString("analysis.base_url"),
			Timeout:     v.GetDuration("analysis.timeout"),
			MaxAttempts: v.GetInt("analysis.max_attempts"),
			RetryDelay:  v.GetDuration("analysis.retry_delay"),
			Temperature: v.GetFloat64("analysis.temperature"),
		},
		Log: logging.Config{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("server.sweep_interval", d.Server.SweepInterval)

	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", d.Analysis.Model)
	v.SetDefault("analysis.base_url", d.Analysis.BaseURL)
	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.max_attempts", d.Analysis.MaxAttempts)
	v.SetDefault("analysis.retry_delay", d.Analysis.RetryDelay)
	v.SetDefault("analysis.temperature", d.Analysis.Temperature)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Validate rejects settings no component can run with. A missing API key is
// not an error here; it surfaces per upload.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must not be negative"))
	}
	if c.Server.SessionTTL < 0 {
		errs = append(errs, errors.New("server.session_ttl must not be negative"))
	}
	if c.Server.SessionTTL > 0 && c.Server.SweepInterval <= 0 {
		errs = append(errs, errors.New("server.sweep_interval must be positive when session_ttl is set"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
