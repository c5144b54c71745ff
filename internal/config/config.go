// Package config provides configuration loading for decisiond.
//
// Configuration is assembled from defaults, an optional YAML file and
// DECISIOND_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete decisiond configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Slack     SlackConfig     `koanf:"slack"`
	LLM       LLMConfig       `koanf:"llm"`
	Store     StoreConfig     `koanf:"store"`
	Events    EventsConfig    `koanf:"events"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Scrub     ScrubConfig     `koanf:"scrub"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
	// RateLimit is requests per second allowed per client IP on /slack/events.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// SlackConfig holds chat platform credentials.
type SlackConfig struct {
	BotToken      Secret `koanf:"bot_token"`
	SigningSecret Secret `koanf:"signing_secret"`
	APIBaseURL    string `koanf:"api_base_url"`
}

// LLMConfig selects and configures the model behind the capabilities.
type LLMConfig struct {
	Provider  string   `koanf:"provider"` // "openai" or "anthropic"
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	BaseURL   string   `koanf:"base_url"`
	Timeout   Duration `koanf:"timeout"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second
	MaxTokens int      `koanf:"max_tokens"`
}

// StoreConfig selects the decision record store backend.
type StoreConfig struct {
	Provider         string   `koanf:"provider"` // memory, sqlite, postgres, notion
	DSN              string   `koanf:"dsn"`
	NotionToken      Secret   `koanf:"notion_token"`
	NotionDatabaseID string   `koanf:"notion_database_id"`
	NotionBaseURL    string   `koanf:"notion_base_url"`
	LinkTemplate     string   `koanf:"link_template"` // sql backends; "{id}" is replaced with the record id
	Timeout          Duration `koanf:"timeout"`
}

// EventsConfig configures decision lifecycle event publishing.
// Publishing is disabled when NATSURL is empty.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// WorkflowConfig tunes the action workflows.
type WorkflowConfig struct {
	// PendingTTL expires unanswered delete confirmations. Zero keeps them
	// until answered or the process restarts.
	PendingTTL          Duration `koanf:"pending_ttl"`
	EventTimeout        Duration `koanf:"event_timeout"`
	SimilarityThreshold int      `koanf:"similarity_threshold"`
	ExtractionThreshold int      `koanf:"extraction_threshold"`
	UpdateThreshold     int      `koanf:"update_threshold"`
	SummaryThreshold    int      `koanf:"summary_threshold"`
}

// ScrubConfig controls credential redaction in thread text before it is
// sent to the model or written to a record.
type ScrubConfig struct {
	Enabled   bool     `koanf:"enabled"`
	AllowList []string `koanf:"allow_list"`
}

// LoggingConfig is the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "1M",
			RateLimit:       5,
			RateBurst:       20,
		},
		Slack: SlackConfig{
			APIBaseURL: "https://slack.com/api",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   Duration(30 * time.Second),
			RateLimit: 2,
			MaxTokens: 1024,
		},
		Store: StoreConfig{
			Provider:      "memory",
			NotionBaseURL: "https://api.notion.com/v1",
			Timeout:       Duration(15 * time.Second),
		},
		Events: EventsConfig{
			SubjectPrefix: "decisions",
		},
		Workflow: WorkflowConfig{
			EventTimeout:        Duration(2 * time.Minute),
			SimilarityThreshold: 70,
			ExtractionThreshold: 50,
			UpdateThreshold:     70,
			SummaryThreshold:    50,
		},
		Scrub: ScrubConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "decisiond",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

var validStoreProviders = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"notion":   true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("server rate limit and burst must be positive"))
	}

	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("llm timeout must be positive"))
	}

	if !validStoreProviders[c.Store.Provider] {
		errs = append(errs, fmt.Errorf("unknown store provider %q", c.Store.Provider))
	}
	switch c.Store.Provider {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store dsn required for %s", c.Store.Provider))
		}
	case "notion":
		if !c.Store.NotionToken.IsSet() || c.Store.NotionDatabaseID == "" {
			errs = append(errs, errors.New("notion store requires notion_token and notion_database_id"))
		}
	}

	for name, v := range map[string]int{
		"similarity_threshold": c.Workflow.SimilarityThreshold,
		"extraction_threshold": c.Workflow.ExtractionThreshold,
		"update_threshold":     c.Workflow.UpdateThreshold,
		"summary_threshold":    c.Workflow.SummaryThreshold,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("workflow %s must be 0-100, got %d", name, v))
		}
	}
	if c.Workflow.EventTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("workflow event timeout must be positive"))
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("service name required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}

// ValidateServe applies the extra checks needed to run the webhook server.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Slack.BotToken.IsSet() {
		return errors.New("slack bot_token not set")
	}
	if !c.Slack.SigningSecret.IsSet() {
		return errors.New("slack signing_secret not set")
	}
	if !c.LLM.APIKey.IsSet() {
		return errors.New("llm api_key not set")
	}
	return nil
}
