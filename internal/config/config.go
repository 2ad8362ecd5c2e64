package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	MTN      MTNConfig      `koanf:"mtn"`
	Airtel   AirtelConfig   `koanf:"airtel"`
	Relworx  RelworxConfig  `koanf:"relworx"`
	Retry    RetryConfig    `koanf:"retry"`
	Poller   PollerConfig   `koanf:"poller"`
	Notifier NotifierConfig `koanf:"notifier"`
	Flags    FlagsConfig    `koanf:"flags"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env      string `koanf:"env" validate:"required"`
	Currency string `koanf:"currency"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// MTNConfig carries the MoMo Open API credential set. The subscription key
// and API user/key pair are separate credentials; both are required.
type MTNConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required"`
	SubscriptionKey string        `koanf:"subscription_key" validate:"required"`
	APIUser         string        `koanf:"api_user" validate:"required"`
	APIKey          string        `koanf:"api_key" validate:"required"`
	TargetEnv       string        `koanf:"target_env" validate:"required"`
	CallbackURL     string        `koanf:"callback_url" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"required"`
}

type AirtelConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required"`
	ClientID     string        `koanf:"client_id" validate:"required"`
	ClientSecret string        `koanf:"client_secret" validate:"required"`
	Country      string        `koanf:"country" validate:"required"`
	Currency     string        `koanf:"currency" validate:"required"`
	CallbackURL  string        `koanf:"callback_url" validate:"required"`
	Timeout      time.Duration `koanf:"timeout" validate:"required"`
}

type RelworxConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	APIKey      string        `koanf:"api_key" validate:"required"`
	AccountNo   string        `koanf:"account_no" validate:"required"`
	CallbackURL string        `koanf:"callback_url" validate:"required"`
	Timeout     time.Duration `koanf:"timeout" validate:"required"`
}

type RetryConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

type PollerConfig struct {
	// Ceiling is the hard wall-clock limit after which polling converts to
	// background-check-only.
	Ceiling time.Duration `koanf:"ceiling"`
}

type NotifierConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// FlagsConfig holds process-lifetime feature flags, injected at
// construction time rather than read from the environment at call depth.
type FlagsConfig struct {
	// ForceAggregator routes every transaction through the aggregator
	// regardless of the caller's provider choice or the number's network.
	ForceAggregator bool `koanf:"force_aggregator"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("SAFIRI_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SAFIRI_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if mainConfig.Poller.Ceiling == 0 {
		mainConfig.Poller.Ceiling = 5 * time.Minute
	}
	if mainConfig.Primary.Currency == "" {
		mainConfig.Primary.Currency = "UGX"
	}

	return mainConfig, nil
}
