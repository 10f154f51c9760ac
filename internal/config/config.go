package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Database    DatabaseConfig   `yaml:"database"`
	Auth        AuthConfig       `yaml:"auth"`
	LoginLimit  LoginLimitConfig `yaml:"login_limit"`
	CSRF        CSRFConfig       `yaml:"csrf"`
	Demo        DemoConfig       `yaml:"demo"`
	Security    SecurityConfig   `yaml:"security"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	// SessionSecret signs session JWTs. Required.
	SessionSecret string `yaml:"session_secret"`
	// BaseURL is the canonical URL of the application, used for redirect
	// targets and password-reset links. Required.
	BaseURL string `yaml:"base_url"`
	// SessionTTL is the absolute session lifetime.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// ResetTokenTTL is the password-reset token lifetime.
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
}

type LoginLimitConfig struct {
	// MaxAttempts is the number of failed logins allowed per IP per window.
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

type CSRFConfig struct {
	// AllowedOrigins lists origins accepted on mutating API requests.
	// Must be non-empty in production.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DemoConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SecurityConfig struct {
	// SettingsKey is an optional hex-encoded 32-byte key. When set,
	// organization settings are encrypted at rest.
	SettingsKey string `yaml:"settings_key"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			SessionTTL:    7 * 24 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
		LoginLimit: LoginLimitConfig{
			MaxAttempts: 10,
			Window:      15 * time.Minute,
		},
		Demo: DemoConfig{
			Enabled: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MANDANTIS_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("MANDANTIS_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MANDANTIS_SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("MANDANTIS_AUTH_URL"); v != "" {
		cfg.Auth.BaseURL = v
	}
	if v := os.Getenv("MANDANTIS_CSRF_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CSRF.AllowedOrigins = origins
	}
	if v := os.Getenv("MANDANTIS_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MANDANTIS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MANDANTIS_DEMO"); v != "" {
		cfg.Demo.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate checks required fields eagerly and reports every problem at once,
// so a misconfigured deployment fails at startup with the full list of
// missing keys rather than piecemeal at first use.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("database.url is required (MANDANTIS_DATABASE_URL)"))
	}
	if c.Auth.SessionSecret == "" {
		errs = append(errs, fmt.Errorf("auth.session_secret is required (MANDANTIS_SESSION_SECRET)"))
	}
	if c.Auth.BaseURL == "" {
		errs = append(errs, fmt.Errorf("auth.base_url is required (MANDANTIS_AUTH_URL)"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.session_ttl must be positive, got %v", c.Auth.SessionTTL))
	}
	if c.LoginLimit.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("login_limit.max_attempts must be > 0, got %d", c.LoginLimit.MaxAttempts))
	}

	switch c.Environment {
	case "development", "production":
		// valid
	default:
		errs = append(errs, fmt.Errorf("environment must be \"development\" or \"production\", got %q", c.Environment))
	}

	// An empty CSRF allow-list in production would otherwise degrade to
	// allow-all, so it is a hard startup error there.
	if c.Environment == "production" && len(c.CSRF.AllowedOrigins) == 0 {
		errs = append(errs, fmt.Errorf("csrf.allowed_origins is required in production (MANDANTIS_CSRF_ORIGINS)"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the process runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) MigrationsSource() string {
	return "file://migrations"
}

func (c *Config) DatabaseURLForMigrate() string {
	url := c.Database.URL
	if !strings.Contains(url, "sslmode=") {
		if strings.Contains(url, "?") {
			url += "&sslmode=disable"
		} else {
			url += "?sslmode=disable"
		}
	}
	return url
}
