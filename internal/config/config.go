// Package config loads Finora's runtime configuration from the environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Gargee-Buva/Finora/internal/retry"
)

// EnvPrefix prefixes every environment variable, e.g. FINORA_STORE_DRIVER.
const EnvPrefix = "FINORA"

const (
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	PageSize   int    `mapstructure:"page_size"`
}

type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Models         []string      `mapstructure:"models"`
	MaxAttempts    uint          `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// RetryPolicy converts the backoff settings into a retry.Policy.
func (g GeminiConfig) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if g.MaxAttempts > 0 {
		p.MaxAttempts = g.MaxAttempts
	}
	if g.InitialBackoff > 0 {
		p.InitialInterval = g.InitialBackoff
	}
	if g.MaxBackoff > 0 {
		p.MaxInterval = g.MaxBackoff
	}
	return p
}

type MailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

type ReportConfig struct {
	Locale   string `mapstructure:"locale"`
	Currency string `mapstructure:"currency"`
}

type BatchConfig struct {
	RecurringCommitTimeout time.Duration `mapstructure:"recurring_commit_timeout"`
	ReportCommitTimeout    time.Duration `mapstructure:"report_commit_timeout"`
}

type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"`
	Minute  int  `mapstructure:"minute"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	CronSecret string `mapstructure:"cron_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is built once at startup and passed by value to constructors.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Mail      MailConfig      `mapstructure:"mail"`
	Report    ReportConfig    `mapstructure:"report"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "finora.db")
	v.SetDefault("store.page_size", 500)
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset_id", "finora")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gemini.models", []string{"gemini-2.5-flash", "gemini-2.5-pro"})
	v.SetDefault("gemini.max_attempts", 5)
	v.SetDefault("gemini.initial_backoff", 500*time.Millisecond)
	v.SetDefault("gemini.max_backoff", 30*time.Second)
	v.SetDefault("mail.from", "")
	v.SetDefault("report.locale", "en-IN")
	v.SetDefault("report.currency", "INR")
	v.SetDefault("batch.recurring_commit_timeout", 20*time.Second)
	v.SetDefault("batch.report_commit_timeout", 10*time.Second)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.hour", 5)
	v.SetDefault("scheduler.minute", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Secrets also answer to their unprefixed names.
func bindSecrets(v *viper.Viper) error {
	binds := map[string][]string{
		"gemini.api_key":      {EnvPrefix + "_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"mail.resend_api_key": {EnvPrefix + "_MAIL_RESEND_API_KEY", "RESEND_API_KEY"},
		"server.cron_secret":  {EnvPrefix + "_SERVER_CRON_SECRET", "CRON_SECRET"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads .env (if present), then configFile (if not empty), then the
// environment, and validates the result.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config.Load: reading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := bindSecrets(v); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config.Load: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverBigQuery:
		if c.BigQuery.ProjectID == "" {
			errs = append(errs, errors.New("bigquery.project_id is required for the bigquery driver"))
		}
		if c.BigQuery.DatasetID == "" {
			errs = append(errs, errors.New("bigquery.dataset_id is required for the bigquery driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverBigQuery, c.Store.Driver))
	}

	if c.Mail.ResendAPIKey != "" && c.Mail.From == "" {
		errs = append(errs, errors.New("mail.from is required when a Resend API key is set"))
	}
	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
		errs = append(errs, fmt.Errorf("scheduler.hour must be 0-23, got %d", c.Scheduler.Hour))
	}
	if c.Scheduler.Minute < 0 || c.Scheduler.Minute > 59 {
		errs = append(errs, fmt.Errorf("scheduler.minute must be 0-59, got %d", c.Scheduler.Minute))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Batch.RecurringCommitTimeout <= 0 || c.Batch.ReportCommitTimeout <= 0 {
		errs = append(errs, errors.New("batch commit timeouts must be positive"))
	}

	return errors.Join(errs...)
}
