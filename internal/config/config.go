package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"pocketkit/internal/cache"
	"pocketkit/internal/crypto"
	"pocketkit/internal/pocket"
)

// envPrefix selects the variables read by the environment overlay.
const envPrefix = "POCKET"

// envKeys maps environment variables onto config keys. Anything else with the
// prefix is ignored, as are empty values.
var envKeys = map[string]string{
	"POCKET_BASE_URL":      "pocket.base_url",
	"POCKET_CONSUMER_KEY":  "pocket.consumer_key",
	"POCKET_ACCESS_TOKEN":  "pocket.access_token",
	"POCKET_TOKEN_KEY":     "pocket.token_key",
	"POCKET_HTTP_TIMEOUT":  "pocket.http_timeout",
	"POCKETKIT_CACHE_PATH": "cache.path",
	"POCKETKIT_LOG_LEVEL":  "log_level",
}

// ConfigPocket holds the API credentials. AccessToken is sealed with
// crypto.Seal when TokenKey is set.
type ConfigPocket struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	ConsumerKey string        `koanf:"consumer_key" validate:"required"`
	AccessToken string        `koanf:"access_token"`
	TokenKey    string        `koanf:"token_key"`
	HTTPTimeout time.Duration `koanf:"http_timeout" validate:"min=0"`
}

type ConfigCache struct {
	Path string `koanf:"path" validate:"required"`
}

type Config struct {
	Pocket   ConfigPocket `koanf:"pocket"`
	Cache    ConfigCache  `koanf:"cache"`
	LogLevel string       `koanf:"log_level" validate:"oneof=error warn info debug"`
}

func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return fmt.Errorf("configuration validation failed: %v", validationErrors)
	}

	return err
}

// ErrNoAccessToken is returned by Token before the auth command has been run.
var ErrNoAccessToken = errors.New("no access token configured: run the auth command first")

// Token returns the plaintext access token, opening it with TokenKey when
// one is configured.
func (c *Config) Token() (string, error) {
	if c.Pocket.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	if c.Pocket.TokenKey == "" {
		return c.Pocket.AccessToken, nil
	}
	token, err := crypto.Open(c.Pocket.AccessToken, c.Pocket.TokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to open access token: %w", err)
	}
	return token, nil
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment, in increasing order of precedence. A missing file is not
// an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := setDefaultValues(k); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "pocketkit", cache.DefaultFile)
}

func setDefaultValues(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(map[string]any{
		"pocket.base_url":     pocket.DefaultBaseURL,
		"pocket.http_timeout": "30s",
		"cache.path":          defaultCachePath(),
		"log_level":           "info",
	}, "."), nil)
}
