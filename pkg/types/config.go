package types

import "time"

// HTTPConfig holds shared HTTP settings used by gateways that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather.
	Token string `json:"-" yaml:"-" mapstructure:"token"`

	// PollTimeout is the long-polling timeout in seconds (default 30).
	PollTimeout int `json:"poll_timeout" yaml:"poll_timeout" mapstructure:"poll_timeout"`

	// MaxDownloadBytes caps the size of an uploaded document (default 20 MiB).
	MaxDownloadBytes int64 `json:"max_download_bytes" yaml:"max_download_bytes" mapstructure:"max_download_bytes"`
}

// AccessConfig lists the sender identities allowed to use the bot.
type AccessConfig struct {
	// AllowedUsers holds usernames (with or without "@") or numeric user ids.
	AllowedUsers []string `json:"allowed_users" yaml:"allowed_users" mapstructure:"allowed_users"`
}

// GROBIDConfig holds settings for the extraction service.
type GROBIDConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Server is the GROBID base URL (e.g. "http://grobid:8070").
	Server string `json:"server" yaml:"server" mapstructure:"server"`

	ConsolidateHeader      bool `json:"consolidate_header" yaml:"consolidate_header" mapstructure:"consolidate_header"`
	ConsolidateCitations   bool `json:"consolidate_citations" yaml:"consolidate_citations" mapstructure:"consolidate_citations"`
	IncludeRawCitations    bool `json:"include_raw_citations" yaml:"include_raw_citations" mapstructure:"include_raw_citations"`
	IncludeRawAffiliations bool `json:"include_raw_affiliations" yaml:"include_raw_affiliations" mapstructure:"include_raw_affiliations"`
	SegmentSentences       bool `json:"segment_sentences" yaml:"segment_sentences" mapstructure:"segment_sentences"`

	// TEICoordinates lists the TEI elements for which PDF coordinates are returned.
	TEICoordinates []string `json:"tei_coordinates" yaml:"tei_coordinates" mapstructure:"tei_coordinates"`

	// Force reprocesses PDFs whose output already exists.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`

	// BatchSize caps the number of PDFs processed per directory (default 100).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// PollInterval is the wait between attempts while the server is busy (default 5s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxWait bounds the whole extraction of one directory (default 60s).
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait" mapstructure:"max_wait"`
}

// LLMProvider identifies the answer backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
)

// AIConfig holds settings for the Answer Gateway.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider selects the protocol: anthropic (inline document) or openai (assistant session).
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the provider model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// DisplayName names the provider in user-facing messages (e.g. "GPT-4o mini").
	DisplayName string `json:"display_name" yaml:"display_name" mapstructure:"display_name"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens bounds the generated output (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxRetries is the number of 429 retries for one request (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// PollInterval and PollTimeout bound the assistant run polling loop.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `json:"poll_timeout" yaml:"poll_timeout" mapstructure:"poll_timeout"`

	// SummaryTopics replaces the default topic list of /resumo.
	SummaryTopics []string `json:"summary_topics,omitempty" yaml:"summary_topics,omitempty" mapstructure:"summary_topics"`
}

// StorageConfig holds the on-disk layout.
type StorageConfig struct {
	// ResourcesDir is the root under which per-upload directories are created.
	ResourcesDir string `json:"resources_dir" yaml:"resources_dir" mapstructure:"resources_dir"`

	// CatalogPath is the SQLite catalog file. Empty selects catalog.db under
	// ResourcesDir; "-" disables the catalog.
	CatalogPath string `json:"catalog_path" yaml:"catalog_path" mapstructure:"catalog_path"`
}

// LogConfig selects the zap logger level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// BotConfig groups the configuration of every component.
type BotConfig struct {
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram" mapstructure:"telegram"`
	Access   AccessConfig   `json:"access" yaml:"access" mapstructure:"access"`
	GROBID   GROBIDConfig   `json:"grobid" yaml:"grobid" mapstructure:"grobid"`
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Storage  StorageConfig  `json:"storage" yaml:"storage" mapstructure:"storage"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
