// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendAirtable = "airtable"
	BackendPostgres = "postgres"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// Timezone month labels are derived in.
	Timezone string
	Location *time.Location

	// Record store: "airtable" (default) or "postgres"
	StoreBackend string

	// Airtable
	AirtableToken  string
	AirtableBaseID string
	AirtableTable  string

	// Airtable draft column names
	AirtableDraftColumn     string
	AirtableSubmittedColumn string
	AirtableApprovedColumn  string

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible) for regeneration notes. Empty host disables it.
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// AI provider settings
	AIProvider     string // "openai" or "claude"
	OpenAIKey      string
	OpenAIModel    string
	OpenAIBaseURL  string
	ClaudeKey      string
	ClaudeModel    string
	ClaudeBaseURL  string
	AITemperature  float64
	PersonaFile    string
	DraftRateLimit int // model calls per operator per minute

	// SMTP notifications
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	ReviewerEmail    string
	StakeholderEmail string

	// Mailchimp
	MailchimpAPIKey        string
	MailchimpServerPrefix  string
	MailchimpAudienceID    string
	MailchimpTagPreRetiree int
	MailchimpTagRetiree    int
	MailchimpFromName      string
	MailchimpReplyTo       string

	// S3-compatible archive of pushed drafts
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	// Operator access
	OperatorUser         string
	OperatorPasswordHash string
	OperatorTOTPSecret   string
	CORSOrigins          []string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		Timezone:     envOrDefault("APP_TIMEZONE", "America/New_York"),
		StoreBackend: strings.ToLower(envOrDefault("STORE_BACKEND", BackendAirtable)),

		AirtableToken:  os.Getenv("AIRTABLE_PAT"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:  envOrDefault("AIRTABLE_TABLE", "MonthlyThemes"),

		AirtableDraftColumn:     envOrDefault("AIRTABLE_DRAFT_COLUMN", "email_draft"),
		AirtableSubmittedColumn: envOrDefault("AIRTABLE_SUBMITTED_COLUMN", "draft_submitted"),
		AirtableApprovedColumn:  envOrDefault("AIRTABLE_APPROVED_COLUMN", "draft_approved"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "themedesk"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "themedesk"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		AIProvider:    envOrDefault("AI_PROVIDER", "openai"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL: envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ClaudeKey:     os.Getenv("CLAUDE_API_KEY"),
		ClaudeModel:   envOrDefault("CLAUDE_MODEL", "claude-sonnet-4-5"),
		ClaudeBaseURL: envOrDefault("CLAUDE_BASE_URL", "https://api.anthropic.com/v1"),
		PersonaFile:   os.Getenv("PERSONA_FILE"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:         os.Getenv("SMTP_FROM"),
		ReviewerEmail:    os.Getenv("REVIEWER_EMAIL"),
		StakeholderEmail: os.Getenv("STAKEHOLDER_EMAIL"),

		MailchimpAPIKey:       os.Getenv("MAILCHIMP_API_KEY"),
		MailchimpServerPrefix: os.Getenv("MAILCHIMP_SERVER_PREFIX"),
		MailchimpAudienceID:   os.Getenv("MAILCHIMP_AUDIENCE_ID"),
		MailchimpFromName:     envOrDefault("MAILCHIMP_FROM_NAME", "Your Planning Team"),
		MailchimpReplyTo:      os.Getenv("MAILCHIMP_REPLY_TO"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    os.Getenv("S3_BUCKET"),

		OperatorUser:         envOrDefault("OPERATOR_USER", "operator"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		OperatorTOTPSecret:   os.Getenv("OPERATOR_TOTP_SECRET"),
		CORSOrigins:          splitList(os.Getenv("CORS_ORIGINS")),
	}

	var err error
	if cfg.AITemperature, err = envFloat("AI_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.DraftRateLimit, err = envInt("DRAFT_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.MailchimpTagPreRetiree, err = envInt("MAILCHIMP_TAG_PRE_RETIREE", 0); err != nil {
		return nil, err
	}
	if cfg.MailchimpTagRetiree, err = envInt("MAILCHIMP_TAG_RETIREE", 0); err != nil {
		return nil, err
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	switch cfg.StoreBackend {
	case BackendAirtable, BackendPostgres:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendAirtable, BackendPostgres, cfg.StoreBackend)
	}

	if cfg.Env == "production" {
		if err := cfg.checkProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) checkProduction() error {
	switch c.StoreBackend {
	case BackendAirtable:
		if c.AirtableToken == "" || c.AirtableBaseID == "" {
			return fmt.Errorf("AIRTABLE_PAT and AIRTABLE_BASE_ID must be set in production")
		}
	case BackendPostgres:
		if c.DBPassword == "changeme" {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}
	if c.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH must be set in production")
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// NotesEnabled reports whether a Valkey host is configured.
func (c *Config) NotesEnabled() bool {
	return c.ValkeyHost != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
