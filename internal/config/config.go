// Package config loads handler settings from the environment and builds the logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full handler configuration.
type Config struct {
	Brevo  BrevoConfig  `mapstructure:"brevo"`
	Notify NotifyConfig `mapstructure:"notify"`
	Phone  PhoneConfig  `mapstructure:"phone"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	CORS   CORSConfig   `mapstructure:"cors"`
}

// BrevoConfig configures the CRM client.
type BrevoConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	APIKeySecretID string        `mapstructure:"api_key_secret_id"`
	ListID         int64         `mapstructure:"list_id"`
	SenderEmail    string        `mapstructure:"sender_email"`
	SenderName     string        `mapstructure:"sender_name"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
}

// NotifyConfig configures the internal inbox forward.
type NotifyConfig struct {
	Recipient string `mapstructure:"recipient"`
}

// PhoneConfig configures phone normalisation.
type PhoneConfig struct {
	DefaultCountryCode string `mapstructure:"default_country_code"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the local dev server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// CORSConfig configures the local dev server.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Configuration errors surfaced before any CRM call.
var (
	ErrMissingAPIKey = eris.New("BREVO_API_KEY is not set")
	ErrMissingListID = eris.New("BREVO_LIST_ID is not set")
)

// keys without defaults still need an env binding for Unmarshal to see them
var boundKeys = []string{
	"brevo.api_key",
	"brevo.api_key_secret_id",
	"brevo.list_id",
	"notify.recipient",
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("brevo.sender_email", "noreply@hub612.com")
	v.SetDefault("brevo.sender_name", "Hub612")
	v.SetDefault("brevo.base_url", "https://api.brevo.com/v3")
	v.SetDefault("brevo.timeout", 10*time.Second)
	v.SetDefault("brevo.retry_max", 0)
	v.SetDefault("phone.default_country_code", "+33")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("cors.allowed_origins", []string{"*"})

	for _, k := range boundKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", k)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the values the handler cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Brevo.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Brevo.ListID == 0 {
		return ErrMissingListID
	}
	return nil
}

// NewLogger builds a zap logger from the log settings.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
