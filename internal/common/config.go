package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development production"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Output      OutputConfig    `toml:"output"`
	Logging     LoggingConfig   `toml:"logging"`
	SEC         SECConfig       `toml:"sec"`
	Prices      PricesConfig    `toml:"prices"`
	Search      SearchConfig    `toml:"search"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	OpenAI      OpenAIConfig    `toml:"openai"`
	Matcher     MatcherConfig   `toml:"matcher"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port        int      `toml:"port" validate:"min=1,max=65535"`
	Host        string   `toml:"host" validate:"required"`
	CORSOrigins []string `toml:"cors_origins"` // Allowed browser origins; "*" allows any
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// OutputConfig controls where generated charts and reports are written
type OutputConfig struct {
	ChartsDir  string `toml:"charts_dir" validate:"required"`  // Charts are written to <charts_dir>/fundamental and <charts_dir>/technical
	ReportsDir string `toml:"reports_dir" validate:"required"` // Markdown and PDF reports
	PDF        bool   `toml:"pdf"`                             // Render a PDF alongside each markdown report
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`                                       // "json" or "text"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// SECConfig configures access to SEC EDGAR. The SEC rejects requests without a
// declared User-Agent naming the caller.
type SECConfig struct {
	UserAgent string `toml:"user_agent" validate:"required"` // e.g. "Acme Research admin@acme.com"
	RateLimit int    `toml:"rate_limit" validate:"min=1,max=10"`
	Timeout   string `toml:"timeout"` // e.g. "30s"
}

// PricesConfig selects the daily price history source
type PricesConfig struct {
	Provider     string `toml:"provider" validate:"oneof=yahoo eodhd"` // "yahoo" (default) or "eodhd"
	EODHDAPIKey  string `toml:"eodhd_api_key"`
	LookbackDays int    `toml:"lookback_days" validate:"min=30"` // Calendar days of history (default: 365)
	Benchmark    string `toml:"benchmark" validate:"required"`   // Default benchmark symbol (default: ^GSPC)
}

// SearchConfig configures Google Custom Search
type SearchConfig struct {
	Enabled    bool   `toml:"enabled"`
	APIKey     string `toml:"api_key"`
	EngineID   string `toml:"engine_id"`
	NumResults int    `toml:"num_results" validate:"min=1,max=10"`
	MaxChars   int    `toml:"max_chars" validate:"min=1"`
	Delay      string `toml:"delay"` // Pause between page fetches (default: "1s")
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderOpenAI LLMProvider = "openai"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude openai"` // Default provider (default: "openai")
	Narrative       bool        `toml:"narrative"`                                              // Add an LLM written summary and SWOT section to reports
	MaxRetries      int         `toml:"max_retries" validate:"gte=0,lte=10"`                    // Retries after a provider rate limit (default: 0)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"` // Optional OpenAI compatible endpoint
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// MatcherConfig selects how company concepts are matched to the template
type MatcherConfig struct {
	Mode     string  `toml:"mode" validate:"oneof=llm fuzzy"` // "llm" or "fuzzy" (offline, deterministic)
	Model    string  `toml:"model"`                           // Model override for matching; empty uses the provider default
	MinScore float64 `toml:"min_score" validate:"gte=0,lte=1"`
}

// SchedulerConfig configures the watchlist refresh job
type SchedulerConfig struct {
	Enabled   bool     `toml:"enabled"`
	Schedule  string   `toml:"schedule"` // Standard 5-field cron expression
	Watchlist []string `toml:"watchlist"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:        8085,
			Host:        "localhost",
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Output: OutputConfig{
			ChartsDir:  "./output/charts",
			ReportsDir: "./output/reports",
			PDF:        true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		SEC: SECConfig{
			RateLimit: 10, // SEC fair access limit
			Timeout:   "30s",
		},
		Prices: PricesConfig{
			Provider:     "yahoo",
			LookbackDays: 365,
			Benchmark:    "^GSPC",
		},
		Search: SearchConfig{
			Enabled:    false,
			NumResults: 2,
			MaxChars:   500,
			Delay:      "1s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderOpenAI,
			Narrative:       false,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Timeout:     "2m",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Timeout:     "2m",
			Temperature: 0.2,
		},
		Matcher: MatcherConfig{
			Mode:     "llm",
			MinScore: 0.6,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 6 * * 1-5", // Weekdays at 06:00
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. A .env file in the working directory is
// loaded first when present; variables already set in the process win.
func LoadFromFiles(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINAGENT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FINAGENT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINAGENT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage and output
	if badgerPath := os.Getenv("FINAGENT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dir := os.Getenv("FINAGENT_CHARTS_DIR"); dir != "" {
		config.Output.ChartsDir = dir
	}
	if dir := os.Getenv("FINAGENT_REPORTS_DIR"); dir != "" {
		config.Output.ReportsDir = dir
	}

	// Logging configuration
	if level := os.Getenv("FINAGENT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINAGENT_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// SEC
	if ua := os.Getenv("FINAGENT_SEC_USER_AGENT"); ua != "" {
		config.SEC.UserAgent = ua
	}

	// Prices
	if provider := os.Getenv("FINAGENT_PRICES_PROVIDER"); provider != "" {
		config.Prices.Provider = provider
	}
	config.Prices.EODHDAPIKey = firstEnv(config.Prices.EODHDAPIKey, "FINAGENT_EODHD_API_KEY", "EODHD_API_KEY")

	// Search
	config.Search.APIKey = firstEnv(config.Search.APIKey, "FINAGENT_SEARCH_API_KEY", "GOOGLE_API_KEY")
	config.Search.EngineID = firstEnv(config.Search.EngineID, "FINAGENT_SEARCH_ENGINE_ID", "GOOGLE_SEARCH_ENGINE_ID")
	if enabled := os.Getenv("FINAGENT_SEARCH_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Search.Enabled = b
		}
	}

	// LLM providers
	if provider := os.Getenv("FINAGENT_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	config.Gemini.APIKey = firstEnv(config.Gemini.APIKey, "FINAGENT_GEMINI_API_KEY", "GEMINI_API_KEY")
	config.Claude.APIKey = firstEnv(config.Claude.APIKey, "FINAGENT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	config.OpenAI.APIKey = firstEnv(config.OpenAI.APIKey, "FINAGENT_OPENAI_API_KEY", "OPENAI_API_KEY")
	if retries := os.Getenv("FINAGENT_LLM_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.LLM.MaxRetries = n
		}
	}

	// Matcher
	if mode := os.Getenv("FINAGENT_MATCHER_MODE"); mode != "" {
		config.Matcher.Mode = mode
	}
}

// firstEnv returns the value of the first set environment variable, or current.
func firstEnv(current string, names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return current
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct constraints and the cross-field rules that need a
// credential for every enabled upstream. Called once at startup so a missing
// key fails before any analysis runs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var errs []error

	var needed []LLMProvider
	if c.Matcher.Mode == "llm" {
		needed = append(needed, DetectLLMProvider(c.Matcher.Model, c.LLM.DefaultProvider))
	}
	if c.LLM.Narrative {
		needed = append(needed, c.LLM.DefaultProvider)
	}
	checked := make(map[LLMProvider]bool, len(needed))
	for _, provider := range needed {
		if checked[provider] {
			continue
		}
		checked[provider] = true
		if c.ProviderAPIKey(provider) == "" {
			errs = append(errs, fmt.Errorf("llm provider %q has no api key configured", provider))
		}
	}
	if c.Prices.Provider == "eodhd" && c.Prices.EODHDAPIKey == "" {
		errs = append(errs, errors.New("prices.provider is eodhd but prices.eodhd_api_key is empty"))
	}
	if c.Search.Enabled && (c.Search.APIKey == "" || c.Search.EngineID == "") {
		errs = append(errs, errors.New("search is enabled but search.api_key or search.engine_id is empty"))
	}
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			errs = append(errs, err)
		}
		if len(c.Scheduler.Watchlist) == 0 {
			errs = append(errs, errors.New("scheduler is enabled but scheduler.watchlist is empty"))
		}
	}
	for name, d := range map[string]string{
		"sec.timeout":    c.SEC.Timeout,
		"search.delay":   c.Search.Delay,
		"gemini.timeout": c.Gemini.Timeout,
		"claude.timeout": c.Claude.Timeout,
		"openai.timeout": c.OpenAI.Timeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, d))
		}
	}

	return errors.Join(errs...)
}

// ProviderAPIKey returns the configured API key for an LLM provider
func (c *Config) ProviderAPIKey(provider LLMProvider) string {
	switch provider {
	case LLMProviderGemini:
		return c.Gemini.APIKey
	case LLMProviderClaude:
		return c.Claude.APIKey
	case LLMProviderOpenAI:
		return c.OpenAI.APIKey
	}
	return ""
}

// DetectLLMProvider picks the provider serving model from its name or
// provider prefix. An empty or unrecognised model uses fallback.
func DetectLLMProvider(model string, fallback LLMProvider) LLMProvider {
	m := strings.ToLower(model)
	switch {
	case m == "":
		return fallback
	case strings.HasPrefix(m, "claude/") || strings.HasPrefix(m, "anthropic/") || strings.HasPrefix(m, "claude-"):
		return LLMProviderClaude
	case strings.HasPrefix(m, "gemini/") || strings.HasPrefix(m, "google/") || strings.HasPrefix(m, "gemini-"):
		return LLMProviderGemini
	case strings.HasPrefix(m, "openai/") || strings.HasPrefix(m, "gpt-") ||
		strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4"):
		return LLMProviderOpenAI
	}
	return fallback
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// ParseDurationOr parses d, returning fallback when d is empty or invalid.
func ParseDurationOr(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return parsed
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
