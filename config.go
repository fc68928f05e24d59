package kransite

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SiteConfig holds all configuration for a kransite deployment.
type SiteConfig struct {
	Name        string // Site name (default "Kransite")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for meta endpoints

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/site.db")
	StorageDir   string // Object storage root (default "data/storage")

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	AdminEmail    string // Bootstrap admin account email (default "admin@localhost")
	AdminPassword string // Required on first run: bootstrap admin password

	TelegramToken   string // Bot token for the contact-form forwarder
	TelegramChatID  string // Chat the contact form posts into
	TelegramAPIBase string // Override for tests (default "https://api.telegram.org")

	AssistantAPIKey  string // Prompt-vendor API key
	AssistantModel   string // Vendor model name (default "gpt-4o-mini")
	AssistantBaseURL string // Override for tests (default "https://api.openai.com")

	ContentCacheTTL time.Duration // Public content cache TTL (default 5min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Kransite"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/site.db"
	}
	if c.StorageDir == "" {
		c.StorageDir = "data/storage"
	}
	if c.AdminEmail == "" {
		c.AdminEmail = "admin@localhost"
	}
	if c.TelegramAPIBase == "" {
		c.TelegramAPIBase = "https://api.telegram.org"
	}
	if c.AssistantModel == "" {
		c.AssistantModel = "gpt-4o-mini"
	}
	if c.AssistantBaseURL == "" {
		c.AssistantBaseURL = "https://api.openai.com"
	}
	if c.ContentCacheTTL == 0 {
		c.ContentCacheTTL = 5 * time.Minute
	}
}

// ConfigFromEnv builds a SiteConfig from environment variables, loading
// a .env file first when one is present.
func ConfigFromEnv() SiteConfig {
	_ = godotenv.Load() // ok if missing in prod

	return SiteConfig{
		Name:             EnvOr("SITE_NAME", ""),
		URL:              strings.TrimSuffix(EnvOr("SITE_URL", ""), "/"),
		Description:      EnvOr("SITE_DESCRIPTION", ""),
		Addr:             EnvOr("LISTEN_ADDR", ""),
		DatabasePath:     EnvOr("DATABASE_PATH", ""),
		StorageDir:       EnvOr("STORAGE_DIR", ""),
		SessionSecret:    MustEnv("ADMIN_SESSION_SECRET"),
		CookieSecure:     strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		AdminEmail:       EnvOr("ADMIN_EMAIL", ""),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		AssistantAPIKey:  os.Getenv("ASSISTANT_API_KEY"),
		AssistantModel:   EnvOr("ASSISTANT_MODEL", ""),
		AssistantBaseURL: EnvOr("ASSISTANT_BASE_URL", ""),
	}
}

// EnvOr returns the value of the environment variable key, or fallback
// if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally
// exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("kransite: required environment variable %s is not set", key)
	}
	return v
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for site-owned static assets
// (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
