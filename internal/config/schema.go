package config

import (
	"time"

	"github.com/jackzampolin/clinex/internal/match"
	"github.com/jackzampolin/clinex/internal/report"
)

// Config holds clinex configuration.
// Stored at: ~/.clinex/config.yaml
type Config struct {
	LLM  LLMConfig  `mapstructure:"llm" yaml:"llm" json:"llm"`
	Eval EvalConfig `mapstructure:"eval" yaml:"eval" json:"eval"`
	Log  LogConfig  `mapstructure:"log" yaml:"log" json:"log"`
}

// LLMConfig configures the OpenAI-compatible extraction endpoint.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"` // Empty for api.openai.com
	Model       string  `mapstructure:"model" yaml:"model" json:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // Supports ${ENV_VAR} syntax
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	RetryDelay  string  `mapstructure:"retry_delay" yaml:"retry_delay" json:"retry_delay"` // Go duration, e.g. "2s"
	Timeout     string  `mapstructure:"timeout" yaml:"timeout" json:"timeout"`             // Go duration, e.g. "2m"
	RateLimit   int     `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`    // Requests per minute, 0 for none
}

// EvalConfig holds evaluation defaults; command flags override them.
type EvalConfig struct {
	Samples   string  `mapstructure:"samples" yaml:"samples" json:"samples"`
	Output    string  `mapstructure:"output" yaml:"output" json:"output"` // Empty for ~/.clinex/results
	Match     string  `mapstructure:"match" yaml:"match" json:"match"`    // exact, overlap, text, partial
	Threshold float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Format    string  `mapstructure:"format" yaml:"format" json:"format"` // json or yaml
}

// LogConfig configures logging and the rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	File       string `mapstructure:"file" yaml:"file" json:"file"` // Empty disables the file sink
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			APIKey:      "${OPENAI_API_KEY}",
			Temperature: 0,
			MaxTokens:   4096,
			MaxRetries:  3,
			RetryDelay:  "2s",
			Timeout:     "2m",
		},
		Eval: EvalConfig{
			Samples:   "samples",
			Match:     string(match.ModeOverlap),
			Threshold: 0,
			Format:    string(report.FormatJSON),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// ResolvedAPIKey returns the API key with ${ENV_VAR} references expanded.
func (c LLMConfig) ResolvedAPIKey() string {
	return ResolveEnvVars(c.APIKey)
}

// RetryDelayDuration parses RetryDelay, falling back to 2s.
func (c LLMConfig) RetryDelayDuration() time.Duration {
	return parseDuration(c.RetryDelay, 2*time.Second)
}

// TimeoutDuration parses Timeout, falling back to 2m.
func (c LLMConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 2*time.Minute)
}

// Policy returns the match policy described by the eval section.
func (c EvalConfig) Policy() (match.Policy, error) {
	mode, err := match.ParseMode(c.Match)
	if err != nil {
		return match.Policy{}, err
	}
	p := match.Policy{Mode: mode, Threshold: c.Threshold}
	return p, p.Validate()
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
