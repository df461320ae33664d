package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SIDECHAT_API_URL.
const EnvPrefix = "SIDECHAT"

type Config struct {
	APIURL        string        `mapstructure:"api_url" validate:"required,url"`
	RealtimeURL   string        `mapstructure:"realtime_url" validate:"omitempty,url"`
	SignInURL     string        `mapstructure:"sign_in_url" validate:"required,url"`
	FetchLimit    int           `mapstructure:"fetch_limit" validate:"min=1,max=500"`
	RateLimit     time.Duration `mapstructure:"rate_limit" validate:"min=1ms"`
	NoticeTimeout time.Duration `mapstructure:"notice_timeout" validate:"min=100ms"`
	BridgeAddr    string        `mapstructure:"bridge_addr" validate:"omitempty,hostname_port"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile       string        `mapstructure:"log_file" validate:"required"`
	TokenFile     string        `mapstructure:"token_file" validate:"required"`

	// File is the config file that was looked for; FileErr is set when it
	// exists but could not be read.
	File    string `mapstructure:"-"`
	FileErr error  `mapstructure:"-"`
}

var validate = validator.New()

// Dir returns the sidechat state directory, ~/.sidechat.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sidechat"
	}
	return filepath.Join(home, ".sidechat")
}

// Load reads defaults, the config file, .env and SIDECHAT_* variables, in
// increasing order of precedence, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	dir := Dir()
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("api_url", "https://api.sidechat.app")
	v.SetDefault("realtime_url", "")
	v.SetDefault("sign_in_url", "https://sidechat.app/cli-login")
	v.SetDefault("fetch_limit", 50)
	v.SetDefault("rate_limit", "1s")
	v.SetDefault("notice_timeout", "4s")
	v.SetDefault("bridge_addr", "127.0.0.1:7717")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", filepath.Join(dir, "sidechat.log"))
	v.SetDefault("token_file", filepath.Join(dir, "token"))

	file := os.Getenv(EnvPrefix + "_CONFIG")
	if file == "" {
		file = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(file)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	var fileErr error
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fileErr = err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = file
	cfg.FileErr = fileErr
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.TokenFile = expandHome(cfg.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
