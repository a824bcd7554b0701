package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultPrecacheURLs is the asset list pre-populated into every new cache generation.
var DefaultPrecacheURLs = []string{
	"/",
	"/index.html",
	"/articles.html",
	"/manifest.json",
	"/RenewableEnergyNexus/css/StyleSheet1.css",
	"/RenewableEnergyNexus/js/script.js",
	"/RenewableEnergyNexus/js/emailSubscription.js",
}

// Brevo holds the email-marketing provider settings. The key never leaves the server.
type Brevo struct {
	APIKey      string `env:"BREVO_API_KEY"`
	APIURL      string `env:"BREVO_API_URL" envDefault:"https://api.brevo.com/v3"`
	ListID      int64  `env:"BREVO_LIST_ID" envDefault:"2"`
	SenderName  string `env:"BREVO_SENDER_NAME" envDefault:"Renewable Energy Nexus"`
	SenderEmail string `env:"BREVO_SENDER_EMAIL" envDefault:"renewableenergynexus@gmail.com"`
}

type NATS struct {
	URL           string `env:"NATS_URL"`
	Token         string `env:"NATS_TOKEN"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"renex"`
}

type Push struct {
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	Subject         string `env:"VAPID_SUBJECT" envDefault:"mailto:renewableenergynexus@gmail.com"`
}

type Backup struct {
	Endpoint   string `env:"BACKUP_S3_ENDPOINT"`
	Bucket     string `env:"BACKUP_S3_BUCKET"`
	Region     string `env:"BACKUP_S3_REGION" envDefault:"auto"`
	AccessKey  string `env:"BACKUP_S3_ACCESS_KEY"`
	SecretKey  string `env:"BACKUP_S3_SECRET_KEY"`
	Passphrase string `env:"BACKUP_PASSPHRASE"`
	Schedule   string `env:"BACKUP_SCHEDULE" envDefault:"0 3 * * *"`

	RetentionDays int `env:"BACKUP_RETENTION_DAYS" envDefault:"30"`
}

// Config is the full service configuration.
type Config struct {
	Port          string   `env:"RENEX_PORT" envDefault:"8080"`
	LogLevel      string   `env:"RENEX_LOG_LEVEL" envDefault:"info"`
	LogFormat     string   `env:"RENEX_LOG_FORMAT" envDefault:"text"`
	DBPath        string   `env:"RENEX_DB_PATH" envDefault:"renex.db"`
	BaseURL       string   `env:"RENEX_BASE_URL"`
	SiteDir       string   `env:"RENEX_SITE_DIR" envDefault:"web/site"`
	SiteOrigin    string   `env:"RENEX_SITE_ORIGIN"`
	CacheName     string   `env:"RENEX_CACHE_NAME" envDefault:"renewable-energy-nexus-v4"`
	PrecacheURLs  []string `env:"RENEX_PRECACHE_URLS" envSeparator:","`
	FallbackCount int      `env:"RENEX_FALLBACK_COUNT" envDefault:"2"`
	CORSOrigins   []string `env:"RENEX_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimit     int      `env:"RENEX_RATE_LIMIT" envDefault:"10"`
	ChatResponses string   `env:"RENEX_CHAT_RESPONSES"`

	Brevo  Brevo
	NATS   NATS
	Push   Push
	Backup Backup
}

// Load reads an optional .env file and then parses the environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.Port
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.PrecacheURLs) == 0 {
		c.PrecacheURLs = append([]string(nil), DefaultPrecacheURLs...)
	}
	if c.FallbackCount < 0 {
		c.FallbackCount = 0
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
}
