package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/dailybackup/internal/domain"
)

const EnvPrefix = "DAILYBACKUP"

type Config struct {
	App     AppConfig       `mapstructure:"app"`
	Notify  NotifyConfig    `mapstructure:"notify"`
	Targets []domain.Record `mapstructure:"targets"`
}

type AppConfig struct {
	Name          string        `mapstructure:"name"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	Schedule      string        `mapstructure:"schedule"`
	Concurrency   int           `mapstructure:"concurrency"`
	KnownHosts    string        `mapstructure:"known_hosts"`
	TickTimeout   time.Duration `mapstructure:"tick_timeout"`
	TargetTimeout time.Duration `mapstructure:"target_timeout"`
}

type NotifyConfig struct {
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "dailybackup")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.schedule", "@daily")
	v.SetDefault("app.concurrency", 1)
	v.SetDefault("app.known_hosts", "known_hosts")
	v.SetDefault("notify.smtp.port", 25)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Targets {
		cfg.Targets[i].ApplyDefaults()
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Schedule == "" {
		errs = append(errs, errors.New("app.schedule is required"))
	}
	if c.App.Concurrency < 1 {
		errs = append(errs, errors.New("app.concurrency must be at least 1"))
	}
	if c.App.TickTimeout < 0 || c.App.TargetTimeout < 0 {
		errs = append(errs, errors.New("app timeouts must not be negative"))
	}
	if c.Notify.SMTP.Enabled && c.Notify.SMTP.Host == "" {
		errs = append(errs, errors.New("notify.smtp.host is required when smtp is enabled"))
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		errs = append(errs, errors.New("notify.telegram.bot_token and chat_id are required when telegram is enabled"))
	}

	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true

		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Target returns the record named name.
func (c *Config) Target(name string) (domain.Record, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Record{}, false
}
