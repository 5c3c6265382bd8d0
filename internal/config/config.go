// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles the bot configuration from an optional YAML
// file, a .env file, the environment, and the .secrets/ directory.
//
// Precedence, highest first: ARTICLE_BOT_* environment variables, the
// config file, the plain variables TELEGRAM_BOT_TOKEN, ALLOWED_USERS,
// OPENAI_API_KEY and ANTHROPIC_API_KEY, files in .secrets/, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/secrets"
	"github.com/pdiddy/article-bot/pkg/types"
)

const (
	// EnvPrefix prefixes the environment variables that override config keys.
	EnvPrefix = "ARTICLE_BOT"

	// ConfigName is the config file name without extension.
	ConfigName = "article-bot"

	DefaultSecretsDir = ".secrets"
	DefaultEnvFile    = ".env"
)

// Plain environment variables honored as fallbacks.
const (
	envBotToken     = "TELEGRAM_BOT_TOKEN"
	envAllowedUsers = "ALLOWED_USERS"
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// Options locate the configuration sources.
type Options struct {
	// ConfigFile is an explicit config path; empty searches for
	// article-bot.yaml in . and ~/.config/article-bot.
	ConfigFile string
	SecretsDir string
	EnvFile    string
}

// SetDefaults registers every key with its default so that environment
// overrides apply to keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.max_download_bytes", 20<<20)

	v.SetDefault("access.allowed_users", []string{})

	v.SetDefault("grobid.server", "http://localhost:8070")
	v.SetDefault("grobid.timeout", 90*time.Second)
	v.SetDefault("grobid.user_agent", "article-bot")
	v.SetDefault("grobid.consolidate_header", true)
	v.SetDefault("grobid.consolidate_citations", true)
	v.SetDefault("grobid.include_raw_citations", true)
	v.SetDefault("grobid.include_raw_affiliations", true)
	v.SetDefault("grobid.segment_sentences", true)
	v.SetDefault("grobid.tei_coordinates", []string{
		"ref", "biblStruct", "persName", "figure", "formula", "head",
		"s", "p", "note", "title", "affiliation",
	})
	v.SetDefault("grobid.force", true)
	v.SetDefault("grobid.batch_size", 100)
	v.SetDefault("grobid.poll_interval", 5*time.Second)
	v.SetDefault("grobid.max_wait", 60*time.Second)

	v.SetDefault("ai.provider", string(types.ProviderOpenAI))
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.display_name", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.user_agent", "article-bot")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.poll_interval", time.Second)
	v.SetDefault("ai.poll_timeout", 60*time.Second)
	v.SetDefault("ai.summary_topics", []string{})

	v.SetDefault("storage.resources_dir", "resources")
	v.SetDefault("storage.catalog_path", "")

	v.SetDefault("metrics.addr", "")
}

// Load reads every source into a BotConfig. It does not validate; call
// Validate before starting the bot.
func Load(v *viper.Viper, opts Options, log *zap.Logger) (types.BotConfig, error) {
	var cfg types.BotConfig
	if log == nil {
		log = zap.NewNop()
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if _, err := os.Stat(envFile); err == nil {
		// Existing environment variables win over .env entries.
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
		log.Debug("loaded env file", zap.String("path", envFile))
	}

	SetDefaults(v)
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Info("using config file", zap.String("path", v.ConfigFileUsed()))
	}

	secretsDir := opts.SecretsDir
	if secretsDir == "" {
		secretsDir = DefaultSecretsDir
	}
	sec, err := secrets.Load(secretsDir, func(name string, err error) {
		log.Warn("skipping unreadable secret", zap.String("name", name), zap.Error(err))
	})
	if err != nil {
		return cfg, err
	}
	if len(sec) > 0 {
		log.Info("loaded secrets", zap.Strings("keys", sec.Keys()))
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	applyFallbacks(&cfg, sec)
	return cfg, nil
}

func applyFallbacks(cfg *types.BotConfig, sec secrets.Secrets) {
	cfg.Telegram.Token = firstNonEmpty(cfg.Telegram.Token, os.Getenv(envBotToken), sec.Get(secrets.TelegramBotToken))

	if len(cfg.Access.AllowedUsers) == 0 {
		cfg.Access.AllowedUsers = SplitList(firstNonEmpty(os.Getenv(envAllowedUsers), sec.Get(secrets.AllowedUsers)))
	} else if len(cfg.Access.AllowedUsers) == 1 {
		// A single env value may hold a comma separated list.
		cfg.Access.AllowedUsers = SplitList(cfg.Access.AllowedUsers[0])
	}

	switch cfg.AI.Provider {
	case types.ProviderOpenAI:
		cfg.AI.APIKey = firstNonEmpty(cfg.AI.APIKey, os.Getenv(envOpenAIKey), sec.Get(secrets.OpenAIAPIKey))
	case types.ProviderAnthropic:
		cfg.AI.APIKey = firstNonEmpty(cfg.AI.APIKey, os.Getenv(envAnthropicKey), sec.Get(secrets.AnthropicAPIKey))
	}
}

// Validate reports every missing or invalid required setting.
func Validate(cfg types.BotConfig) error {
	var errs []error
	if cfg.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("telegram token is not set (telegram.token, %s or .secrets/%s)", envBotToken, secrets.TelegramBotToken))
	}
	if len(cfg.Access.AllowedUsers) == 0 {
		errs = append(errs, fmt.Errorf("allow-list is empty (access.allowed_users or %s)", envAllowedUsers))
	}
	switch cfg.AI.Provider {
	case types.ProviderOpenAI, types.ProviderAnthropic:
		if cfg.AI.APIKey == "" {
			errs = append(errs, fmt.Errorf("api key for provider %q is not set", cfg.AI.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider))
	}
	if cfg.GROBID.Server == "" {
		errs = append(errs, errors.New("grobid server is not set"))
	}
	if cfg.GROBID.PollInterval <= 0 || cfg.GROBID.MaxWait < cfg.GROBID.PollInterval {
		errs = append(errs, fmt.Errorf("grobid poll interval %s must be positive and not exceed max wait %s", cfg.GROBID.PollInterval, cfg.GROBID.MaxWait))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma, semicolon or whitespace separated list.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
