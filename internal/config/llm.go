package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "track-enricher/pkg/config"
)

// LLMConfig configures the language-model genre fallback.
type LLMConfig struct {
	// Backend selects the client: "anthropic", "openai" or "" (disabled).
	// Default: ""
	Backend string

	// Model overrides the backend's default model.
	Model string

	// APIKey is read from ANTHROPIC_API_KEY or OPENAI_API_KEY depending on Backend.
	APIKey string

	// MaxTokens caps the answer length. Default: 128
	MaxTokens int

	// Timeout for one completion. Default: 20 seconds
	Timeout time.Duration

	// MaxConfidence caps the confidence of model answers. Default: 0.6
	MaxConfidence float64
}

// LoadLLMConfig loads LLM configuration from environment variables.
func LoadLLMConfig() (*LLMConfig, error) {
	config := &LLMConfig{
		Backend:       pkgconfig.GetEnvString("LLM_BACKEND", ""),
		Model:         pkgconfig.GetEnvString("LLM_MODEL", ""),
		MaxTokens:     pkgconfig.GetEnvInt("LLM_MAX_TOKENS", 128),
		Timeout:       pkgconfig.GetEnvDuration("LLM_TIMEOUT", 20*time.Second),
		MaxConfidence: pkgconfig.GetEnvFloat("LLM_MAX_CONFIDENCE", 0.6),
	}

	switch config.Backend {
	case "anthropic":
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if config.Model == "" {
			config.Model = "claude-3-5-haiku-latest"
		}
	case "openai":
		config.APIKey = os.Getenv("OPENAI_API_KEY")
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM configuration: %w", err)
	}

	return config, nil
}

// Enabled reports whether a backend is configured.
func (c *LLMConfig) Enabled() bool {
	return c.Backend != ""
}

// Validate checks configuration correctness.
func (c *LLMConfig) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case "anthropic", "openai":
	default:
		return fmt.Errorf("LLM_BACKEND must be anthropic or openai, got %q", c.Backend)
	}

	if c.APIKey == "" {
		return fmt.Errorf("API key for LLM backend %q is not set", c.Backend)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.MaxConfidence <= 0 || c.MaxConfidence > 1 {
		return fmt.Errorf("LLM_MAX_CONFIDENCE must be between 0.0 and 1.0")
	}

	return nil
}
