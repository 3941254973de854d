package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	Addr     string   `env:"ADDR" envDefault:":8080"`
	LogLevel int      `env:"LOG_LEVEL" envDefault:"0"`
	Database Database `envPrefix:"DB_"`
	Session  Session  `envPrefix:"SESSION_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	OIDC     OIDC     `envPrefix:"OIDC_"`
}

// Database contains SQLite parameters. Users always live here; sessions
// do too when the sqlite session backend is selected.
type Database struct {
	Path string `env:"PATH" envDefault:"./gatehouse.db"`
}

// Session selects and tunes the session store backend.
type Session struct {
	Backend          string        `env:"BACKEND" envDefault:"sqlite"` // sqlite, redis or memory
	TTL              time.Duration `env:"TTL" envDefault:"1h"`
	CookieName       string        `env:"COOKIE_NAME" envDefault:"session_token"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	SweepInitialWait time.Duration `env:"SWEEP_INITIAL_WAIT" envDefault:"10s"`
}

// Redis contains key-value store parameters for the redis session backend.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`
}

// Auth contains credential verification parameters.
type Auth struct {
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	LoginBlockTime   time.Duration `env:"LOGIN_BLOCK_TIME" envDefault:"15m"`
}

// OIDC contains federated login parameters. Federation is disabled when
// IssuerURL is empty.
type OIDC struct {
	IssuerURL    string `env:"ISSUER_URL" envDefault:""`
	ClientID     string `env:"CLIENT_ID" envDefault:""`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:""`
	RedirectURL  string `env:"REDIRECT_URL" envDefault:""`
}

// Enabled reports whether federated login is configured.
func (o OIDC) Enabled() bool {
	return o.IssuerURL != ""
}

// Load reads configuration from GATEHOUSE_-prefixed environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "GATEHOUSE_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
