// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-bot/internal/secrets"
	"github.com/pdiddy/article-bot/pkg/types"
)

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envBotToken, envAllowedUsers, envOpenAIKey, envAnthropicKey,
		"ARTICLE_BOT_TELEGRAM_TOKEN", "ARTICLE_BOT_AI_PROVIDER", "ARTICLE_BOT_AI_API_KEY",
		"ARTICLE_BOT_ACCESS_ALLOWED_USERS", "ARTICLE_BOT_GROBID_SERVER",
	} {
		t.Setenv(k, "")
	}
}

func emptyOptions(t *testing.T) Options {
	dir := t.TempDir()
	return Options{
		SecretsDir: filepath.Join(dir, "missing-secrets"),
		EnvFile:    filepath.Join(dir, "missing.env"),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	opts := emptyOptions(t)
	opts.ConfigFile = ""
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8070", cfg.GROBID.Server)
	assert.Equal(t, 100, cfg.GROBID.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.GROBID.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.GROBID.MaxWait)
	assert.True(t, cfg.GROBID.ConsolidateCitations)
	assert.Contains(t, cfg.GROBID.TEICoordinates, "biblStruct")
	assert.Equal(t, types.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
	assert.Equal(t, "resources", cfg.Storage.ResourcesDir)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Empty(t, cfg.Telegram.Token)
	assert.Empty(t, cfg.Access.AllowedUsers)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	opts := emptyOptions(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "bot.yaml")
	writeFile(t, opts.ConfigFile, `
telegram:
  token: file-token
access:
  allowed_users: ["@alice", "42"]
grobid:
  server: http://grobid:8070
  poll_interval: 2s
ai:
  provider: anthropic
  api_key: file-key
  summary_topics: ["Título", "Autores"]
`)

	cfg, err := Load(viper.New(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, []string{"@alice", "42"}, cfg.Access.AllowedUsers)
	assert.Equal(t, "http://grobid:8070", cfg.GROBID.Server)
	assert.Equal(t, 2*time.Second, cfg.GROBID.PollInterval)
	assert.Equal(t, types.ProviderAnthropic, cfg.AI.Provider)
	assert.Equal(t, "file-key", cfg.AI.APIKey)
	assert.Equal(t, []string{"Título", "Autores"}, cfg.AI.SummaryTopics)
	require.NoError(t, Validate(cfg))
}

func TestLoadExplicitFileMissing(t *testing.T) {
	clearEnv(t)
	opts := emptyOptions(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(viper.New(), opts, nil)
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	opts := emptyOptions(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "bot.yaml")
	writeFile(t, opts.ConfigFile, "grobid:\n  server: http://file:8070\n")

	t.Setenv("ARTICLE_BOT_GROBID_SERVER", "http://env:8070")
	t.Setenv("ARTICLE_BOT_ACCESS_ALLOWED_USERS", "alice,bob")

	cfg, err := Load(viper.New(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8070", cfg.GROBID.Server)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Access.AllowedUsers)
}

func TestLoadPlainFallbacks(t *testing.T) {
	clearEnv(t)
	opts := emptyOptions(t)
	t.Chdir(t.TempDir())

	t.Setenv(envBotToken, "env-token")
	t.Setenv(envAllowedUsers, "alice; 42 bob")
	t.Setenv(envOpenAIKey, "sk-openai")
	t.Setenv(envAnthropicKey, "sk-anthropic")

	cfg, err := Load(viper.New(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, []string{"alice", "42", "bob"}, cfg.Access.AllowedUsers)
	assert.Equal(t, "sk-openai", cfg.AI.APIKey, "key follows the selected provider")
}

func TestLoadSecretsAndEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	opts := Options{
		SecretsDir: filepath.Join(dir, ".secrets"),
		EnvFile:    filepath.Join(dir, ".env"),
	}
	writeFile(t, filepath.Join(opts.SecretsDir, secrets.TelegramBotToken), "secret-token\n")
	writeFile(t, filepath.Join(opts.SecretsDir, secrets.AnthropicAPIKey), "sk-secret\n")
	writeFile(t, filepath.Join(opts.SecretsDir, secrets.AllowedUsers), "carol\n")
	writeFile(t, opts.EnvFile, "ARTICLE_BOT_AI_PROVIDER=anthropic\n")
	// godotenv writes into the process environment; restore it afterwards.
	t.Setenv("ARTICLE_BOT_AI_PROVIDER", "")
	require.NoError(t, os.Unsetenv("ARTICLE_BOT_AI_PROVIDER"))

	cfg, err := Load(viper.New(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderAnthropic, cfg.AI.Provider)
	assert.Equal(t, "secret-token", cfg.Telegram.Token)
	assert.Equal(t, "sk-secret", cfg.AI.APIKey)
	assert.Equal(t, []string{"carol"}, cfg.Access.AllowedUsers)
}

func TestValidate(t *testing.T) {
	valid := func() types.BotConfig {
		return types.BotConfig{
			Telegram: types.TelegramConfig{Token: "t"},
			Access:   types.AccessConfig{AllowedUsers: []string{"alice"}},
			GROBID: types.GROBIDConfig{
				Server:       "http://localhost:8070",
				PollInterval: 5 * time.Second,
				MaxWait:      60 * time.Second,
			},
			AI: types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*types.BotConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*types.BotConfig) {}},
		{name: "no token", mutate: func(c *types.BotConfig) { c.Telegram.Token = "" }, wantErr: "telegram token"},
		{name: "empty allow-list", mutate: func(c *types.BotConfig) { c.Access.AllowedUsers = nil }, wantErr: "allow-list is empty"},
		{name: "no api key", mutate: func(c *types.BotConfig) { c.AI.APIKey = "" }, wantErr: `provider "openai"`},
		{name: "unknown provider", mutate: func(c *types.BotConfig) { c.AI.Provider = "gemini" }, wantErr: `unknown ai provider "gemini"`},
		{name: "no grobid server", mutate: func(c *types.BotConfig) { c.GROBID.Server = "" }, wantErr: "grobid server"},
		{name: "poll exceeds wait", mutate: func(c *types.BotConfig) { c.GROBID.MaxWait = time.Second }, wantErr: "poll interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, SplitList(" a,b;c\nd "))
	assert.Empty(t, SplitList(""))
}
