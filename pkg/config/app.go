package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// AppConfig is the top-level application configuration loaded at startup.
//
// Secrets (API keys) are kept on this struct and never logged; LogSummary
// reports only their presence.
type AppConfig struct {
	// Env is the deployment environment: "development", "preview", or
	// "production". The origin allow list is enforced only in production.
	Env string

	// Port is the HTTP listen port.
	Port int

	// LogLevel is the minimum slog level: debug, info, warn, or error.
	LogLevel string

	// AllowedOrigins is the domain allow list for the speech endpoint.
	AllowedOrigins []string

	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for client
	// identity. When false the TCP peer address is always used.
	TrustProxy bool

	// TrustedProxies lists CIDR ranges of proxies whose forwarding
	// headers are honored when TrustProxy is on. Empty means trust any.
	TrustedProxies []string

	// PatternsFile optionally points at a YAML file of extra
	// suspicious-input rules.
	PatternsFile string

	// TTSSharedSecret seeds the speech integrity token.
	TTSSharedSecret string

	// ChatProvider selects the completion upstream: "openai" or
	// "claude".
	ChatProvider string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	NotionAPIKey     string
	NotionDatabaseID string
}

// LoadAppConfig loads the application configuration from environment
// variables.
//
// Environment variables:
//   - APP_ENV: Deployment environment (default: development)
//   - PORT: HTTP listen port (default: 8080)
//   - LOG_LEVEL: Minimum log level (default: info)
//   - ALLOWED_ORIGINS: Comma-separated origin domains
//     (default: rigsy.ai, www.rigsy.ai, localhost)
//   - TRUST_PROXY: Honor forwarding headers (default: true)
//   - TRUSTED_PROXIES: CIDR ranges of trusted proxies (default: empty)
//   - RIGSY_PATTERNS_FILE: Extra suspicious-pattern rules file (default: unset)
//   - TTS_SHARED_SECRET: Speech integrity token secret (default: unset)
//   - CHAT_PROVIDER: Completion upstream, openai or claude (default: openai)
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY
//   - NOTION_API_KEY, NOTION_DATABASE_ID
//
// Returns an error only for values that cannot be safely defaulted, such as
// malformed TRUSTED_PROXIES entries.
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Env:              GetEnvString("APP_ENV", "development"),
		Port:             GetEnvInt("PORT", 8080),
		LogLevel:         GetEnvString("LOG_LEVEL", "info"),
		AllowedOrigins:   GetEnvStringList("ALLOWED_ORIGINS", []string{"rigsy.ai", "www.rigsy.ai", "localhost"}),
		TrustProxy:       GetEnvBool("TRUST_PROXY", true),
		TrustedProxies:   GetEnvStringList("TRUSTED_PROXIES", nil),
		PatternsFile:     GetEnvString("RIGSY_PATTERNS_FILE", ""),
		TTSSharedSecret:  GetEnvString("TTS_SHARED_SECRET", ""),
		ChatProvider:     strings.ToLower(GetEnvString("CHAT_PROVIDER", "openai")),
		OpenAIAPIKey:     GetEnvString("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  GetEnvString("ANTHROPIC_API_KEY", ""),
		NotionAPIKey:     GetEnvString("NOTION_API_KEY", ""),
		NotionDatabaseID: GetEnvString("NOTION_DATABASE_ID", ""),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}

	if cfg.ChatProvider != "openai" && cfg.ChatProvider != "claude" {
		return nil, fmt.Errorf("invalid CHAT_PROVIDER %q: want openai or claude", cfg.ChatProvider)
	}

	if err := ValidateTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// LogSummary logs the effective configuration at startup. Secrets are
// reported only as present or absent.
func (c *AppConfig) LogSummary(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.String("env", c.Env),
		slog.Int("port", c.Port),
		slog.String("log_level", c.LogLevel),
		slog.Any("allowed_origins", c.AllowedOrigins),
		slog.Bool("trust_proxy", c.TrustProxy),
		slog.Int("trusted_proxies", len(c.TrustedProxies)),
		slog.String("chat_provider", c.ChatProvider),
		slog.Bool("openai_key_set", c.OpenAIAPIKey != ""),
		slog.Bool("anthropic_key_set", c.AnthropicAPIKey != ""),
		slog.Bool("tts_secret_set", c.TTSSharedSecret != ""),
		slog.Bool("notion_configured", c.NotionAPIKey != "" && c.NotionDatabaseID != ""),
	)
}

// ValidateTrustedProxies validates a list of CIDR ranges for trusted proxies.
//
// Each entry must be valid CIDR notation (e.g., "10.0.0.0/8").
func ValidateTrustedProxies(cidrs []string) error {
	for _, cidr := range cidrs {
		if cidr == "" {
			return fmt.Errorf("CIDR cannot be empty")
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
	}
	return nil
}
