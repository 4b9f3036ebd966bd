package config

import "github.com/caarlos0/env/v6"

// Config is the full runtime configuration, loaded from the environment.
// The MLS credentials and webhook secret default to empty: an unconfigured
// instance runs local-only and every sync path short-circuits.
type Config struct {
	Port         int    `env:"PORT" envDefault:"5250"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/estate.db"`
	CacheDir     string `env:"CACHE_DIR" envDefault:"data/cache"`

	// MLS API configuration
	APIBaseURL    string `env:"MLS_API_URL"`
	APIKey        string `env:"MLS_API_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Push a property to the MLS right after interactive creation
	AutoPush bool `env:"AUTO_MLS" envDefault:"false"`

	YandexGeocoderKey string `env:"YANDEX_GEOCODER_KEY"`
	DefaultCityCode   string `env:"DEFAULT_CITY_CODE" envDefault:"almaty"`

	Sync struct {
		// Page size for the pull sweep
		PageSize int `env:"SYNC_PAGE_SIZE" envDefault:"50"`

		// Cron specs for the background jobs
		RetrySpec      string `env:"SYNC_RETRY_CRON" envDefault:"*/10 * * * *"`
		PullSpec       string `env:"SYNC_PULL_CRON" envDefault:"*/15 * * * *"`
		ReferencesSpec string `env:"SYNC_REFERENCES_CRON" envDefault:"0 4 * * *"`
		LedgerGCSpec   string `env:"WEBHOOK_GC_CRON" envDefault:"30 4 * * *"`

		// Webhook ledger retention in days
		LedgerRetentionDays int `env:"WEBHOOK_RETENTION_DAYS" envDefault:"30"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
