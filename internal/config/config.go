package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

// Defaults mirror the historical CLI surface: a window of 4 entries and an
// OpenRouter-compatible endpoint.
const (
	DefaultWindowSize = 4
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
	DefaultModel      = "openai/gpt-3.5-turbo"
	DefaultTimeout    = 120
)

// Config holds the full run configuration. Values come from CLI flags with
// environment fallbacks applied by ApplyEnv.
type Config struct {
	// Input source, mutually exclusive.
	SubtitlePath string
	VideoPath    string

	// OutputPath must not pre-exist; the checkpoint lives at OutputPath+".tmp".
	OutputPath string

	TargetLanguage string
	WindowSize     int
	Context        string

	Model   string
	BaseURL string
	APIKey  string
	Timeout int

	Verbose bool
}

// ApplyEnv fills unset credentials from the environment. A .env file in the
// working directory is honored when present.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if c.APIKey == "" {
		c.APIKey = os.Getenv("LLM_API_KEY")
	}
}

// Validate checks the configuration before any file or network activity.
func (c *Config) Validate() error {
	if c.SubtitlePath == "" && c.VideoPath == "" {
		return fmt.Errorf("an input is required: pass --input or --video")
	}
	if c.SubtitlePath != "" && c.VideoPath != "" {
		return fmt.Errorf("--input and --video are mutually exclusive")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("--output is required")
	}
	if c.TargetLanguage == "" {
		return fmt.Errorf("--lang is required")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be a positive integer, got %d", c.WindowSize)
	}
	if c.Model == "" {
		return fmt.Errorf("--model is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must begin with http:// or https://, got %q", c.BaseURL)
	}

	if c.APIKey == "" {
		return fmt.Errorf("an API key is required: pass --api-key or set LLM_API_KEY")
	}

	return nil
}

// InputPath returns whichever input source is configured.
func (c *Config) InputPath() string {
	if c.VideoPath != "" {
		return c.VideoPath
	}
	return c.SubtitlePath
}
