package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dify     DifyConfig         `yaml:"dify" mapstructure:"dify"`
	Output   OutputConfig       `yaml:"output" mapstructure:"output"`
	Storage  StorageConfig      `yaml:"storage" mapstructure:"storage"`
	Notify   NotifyConfig       `yaml:"notify" mapstructure:"notify"`
	Ledger   LedgerConfig       `yaml:"ledger" mapstructure:"ledger"`
	Log      LogConfig          `yaml:"log" mapstructure:"log"`
	Profiles map[string]Profile `yaml:"profiles" mapstructure:"profiles"`
}

// DifyConfig holds the Dify API endpoints and credentials.
type DifyConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	APIToken        string  `yaml:"api_token" mapstructure:"api_token"`
	AppID           string  `yaml:"app_id" mapstructure:"app_id"`
	ConsoleEmail    string  `yaml:"console_email" mapstructure:"console_email"`
	ConsolePassword string  `yaml:"console_password" mapstructure:"console_password"`
	ConsoleToken    string  `yaml:"console_token" mapstructure:"console_token"`
	ConsoleRate     float64 `yaml:"console_rate" mapstructure:"console_rate"`
	RetryAttempts   int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// OutputConfig configures report generation defaults.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Limit  int    `yaml:"limit" mapstructure:"limit"`
}

// StorageConfig configures where reports and data dumps land.
type StorageConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// NotifyConfig configures the optional completion webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LedgerConfig configures the run history database.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Profile is a named preset of fetch parameters. Flags set explicitly on
// the command line win over profile values.
type Profile struct {
	Status             string `yaml:"status" mapstructure:"status"`
	Keyword            string `yaml:"keyword" mapstructure:"keyword"`
	Limit              int    `yaml:"limit" mapstructure:"limit"`
	FetchAll           bool   `yaml:"fetch_all" mapstructure:"fetch_all"`
	WithDetails        bool   `yaml:"with_details" mapstructure:"with_details"`
	WithNodeExecutions bool   `yaml:"with_node_executions" mapstructure:"with_node_executions"`
	Format             string `yaml:"format" mapstructure:"format"`
	CreatedAtBefore    string `yaml:"created_at_before" mapstructure:"created_at_before"`
	CreatedAtAfter     string `yaml:"created_at_after" mapstructure:"created_at_after"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WFREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dify.console_rate", 5.0)
	v.SetDefault("dify.retry_attempts", 3)
	v.SetDefault("output.format", "markdown")
	v.SetDefault("output.limit", 20)
	v.SetDefault("storage.dir", "output")
	v.SetDefault("storage.retention_days", 30)
	v.SetDefault("ledger.path", "runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
