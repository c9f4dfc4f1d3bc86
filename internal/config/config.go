// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DirectoryConfig holds remote directory API and credential configuration.
type DirectoryConfig struct {
	BaseURL      string // Graph-style API base URL (default https://graph.microsoft.com/v1.0)
	TokenURL     string // OAuth2 token endpoint (derived from TenantID when empty)
	AuthorizeURL string // OAuth2 authorization endpoint (derived from TenantID when empty)
	TenantID     string // directory tenant id
	ClientID     string // application (client) id
	ClientSecret string // application secret (application-credential mode)
	AuthMode     string // "application" (client-credential grant) or "delegated"
	RedirectURL  string // OAuth redirect URL for the delegated login flow
	Scopes       []string

	// TokenRefreshBuffer is how far ahead of expiry tokens are refreshed.
	TokenRefreshBuffer time.Duration
}

// Validate checks that the directory configuration is internally consistent.
func (d *DirectoryConfig) Validate() error {
	if d.TenantID == "" && d.TokenURL == "" {
		return fmt.Errorf("one of DIR_TENANT_ID or DIR_TOKEN_URL must be set")
	}
	if d.ClientID == "" {
		return fmt.Errorf("DIR_CLIENT_ID is required")
	}
	if d.AuthMode == "application" && d.ClientSecret == "" {
		return fmt.Errorf("DIR_CLIENT_SECRET is required in application auth mode")
	}
	if d.AuthMode != "application" && d.AuthMode != "delegated" {
		return fmt.Errorf("DIR_AUTH_MODE must be \"application\" or \"delegated\", got %q", d.AuthMode)
	}
	return nil
}

// ReconcileConfig holds the reconciliation window constants and owner accounts.
type ReconcileConfig struct {
	ArchiveAfter  time.Duration // groups whose trip departed more than this ago are archived (default 14d)
	MonitorWindow time.Duration // groups whose trip departed within this window are still updated (default 7d)
	CreateBefore  time.Duration // trips departing within this horizon get a group (default 7d)
	SettleDelay   time.Duration // wait after group creation before adding members (default 8s)

	ArchiveOwnerUPN string // principal that becomes sole member/owner of archived groups
	ActiveOwnerUPN  string // placeholder owner never removed from active groups

	MaxConcurrent int    // per-phase fan-out limit (default 8)
	Schedule      string // cron expression for scheduled runs; empty disables the scheduler

	DisplayTimezone string // IANA zone used when formatting departure dates into group names
}

// AuthConfig holds bearer-token validation settings for the dashboard routes.
type AuthConfig struct {
	IssuerURL      string        // OIDC issuer URL for bearer validation
	Audience       string        // required audience claim
	AllowedIssuers []string      // accepted issuers (defaults to [IssuerURL])
	JWTSecret      string        // HS256 shared secret for local/dev bearer auth
	JWKSCacheTTL   time.Duration // JWKS cache duration (default 1h)
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != ""
}

// Config holds the configuration for the reconciliation service.
type Config struct {
	DBPath     string // path to the SQLite tracking database
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// TriggerSecret guards the production trigger and teardown endpoints.
	TriggerSecret string

	Directory DirectoryConfig
	Reconcile ReconcileConfig
	Auth      AuthConfig

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:        os.Getenv("DB_PATH"),
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
		TriggerSecret: os.Getenv("TRIGGER_SECRET"),
	}

	cfg.Directory = DirectoryConfig{
		BaseURL:            os.Getenv("DIR_BASE_URL"),
		TokenURL:           os.Getenv("DIR_TOKEN_URL"),
		AuthorizeURL:       os.Getenv("DIR_AUTHORIZE_URL"),
		TenantID:           os.Getenv("DIR_TENANT_ID"),
		ClientID:           os.Getenv("DIR_CLIENT_ID"),
		ClientSecret:       os.Getenv("DIR_CLIENT_SECRET"),
		AuthMode:           os.Getenv("DIR_AUTH_MODE"),
		RedirectURL:        os.Getenv("DIR_REDIRECT_URL"),
		TokenRefreshBuffer: durationEnv("DIR_TOKEN_REFRESH_BUFFER", time.Minute),
	}
	if v := os.Getenv("DIR_SCOPES"); v != "" {
		cfg.Directory.Scopes = splitTrimmed(v)
	}

	cfg.Reconcile = ReconcileConfig{
		ArchiveAfter:    durationEnv("ARCHIVE_AFTER", 14*24*time.Hour),
		MonitorWindow:   durationEnv("MONITOR_WINDOW", 7*24*time.Hour),
		CreateBefore:    durationEnv("CREATE_BEFORE", 7*24*time.Hour),
		SettleDelay:     durationEnv("SETTLE_DELAY", 8*time.Second),
		ArchiveOwnerUPN: os.Getenv("ARCHIVE_OWNER_UPN"),
		ActiveOwnerUPN:  os.Getenv("ACTIVE_OWNER_UPN"),
		Schedule:        os.Getenv("RECONCILE_SCHEDULE"),
		DisplayTimezone: os.Getenv("DISPLAY_TIMEZONE"),
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconcile.MaxConcurrent = n
		}
	}

	cfg.Auth = AuthConfig{
		IssuerURL:    os.Getenv("AUTH_ISSUER_URL"),
		Audience:     os.Getenv("AUTH_AUDIENCE"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWKSCacheTTL: durationEnv("AUTH_JWKS_CACHE_TTL", time.Hour),
	}
	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		cfg.Auth.AllowedIssuers = splitTrimmed(v)
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitTrimmed(v)
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "crewsync.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Directory.BaseURL == "" {
		cfg.Directory.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	if cfg.Directory.AuthMode == "" {
		cfg.Directory.AuthMode = "application"
	}
	if cfg.Directory.TenantID != "" {
		if cfg.Directory.TokenURL == "" {
			cfg.Directory.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Directory.TenantID)
		}
		if cfg.Directory.AuthorizeURL == "" {
			cfg.Directory.AuthorizeURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", cfg.Directory.TenantID)
		}
	}
	if len(cfg.Directory.Scopes) == 0 {
		cfg.Directory.Scopes = []string{"https://graph.microsoft.com/.default"}
	}
	if cfg.Reconcile.MaxConcurrent <= 0 {
		cfg.Reconcile.MaxConcurrent = 8
	}
	if cfg.Reconcile.DisplayTimezone == "" {
		cfg.Reconcile.DisplayTimezone = "America/New_York"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.Reconcile.ArchiveOwnerUPN == "" {
		cfg.Warnings = append(cfg.Warnings, "ARCHIVE_OWNER_UPN not set; archived groups will keep no owner placeholder")
	}
	if cfg.TriggerSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "TRIGGER_SECRET not set; trigger endpoint is unguarded")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.TriggerSecret == "" {
			return nil, fmt.Errorf("TRIGGER_SECRET must be set in production (ENV=production)")
		}
		if err := cfg.Directory.Validate(); err != nil {
			return nil, err
		}
		if cfg.Reconcile.ArchiveOwnerUPN == "" {
			return nil, fmt.Errorf("ARCHIVE_OWNER_UPN must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitTrimmed(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
