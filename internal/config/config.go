// Package config loads and validates the service configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Captcha   CaptchaConfig   `koanf:"captcha"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Storage   StorageConfig   `koanf:"storage"`
	Forms     []FormConfig    `koanf:"forms"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// MaxRequestBytes bounds the size of an inbound submission, uploads
	// included.
	MaxRequestBytes int64 `koanf:"max_request_bytes"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// SMTPConfig configures the outbound mail transport.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	// Encryption selects the connection mode: "tls" (implicit TLS),
	// "starttls", or "none". Empty means infer from the port
	// (465=tls, 587=starttls, otherwise none).
	Encryption         string        `koanf:"encryption"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
	Timeout            time.Duration `koanf:"timeout"`
	// Provider selects the delivery backend: "smtp" or "stdout" (dev).
	Provider string `koanf:"provider"`
}

// CaptchaConfig is the global challenge-verification configuration.
// Individual forms can enable verification and override the keys.
type CaptchaConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Provider  string `koanf:"provider"` // hcaptcha, recaptcha, turnstile
	SiteKey   string `koanf:"site_key"`
	SecretKey string `koanf:"secret_key"`
	// VerifyURL overrides the provider's default siteverify endpoint.
	VerifyURL string        `koanf:"verify_url"`
	Timeout   time.Duration `koanf:"timeout"`
	MinScore  float64       `koanf:"min_score"`
	// FailOpen lets submissions through when the verification service
	// itself errors or times out. Off by default: an unverifiable
	// submission is rejected.
	FailOpen bool `koanf:"fail_open"`
}

type RateLimitConfig struct {
	// GlobalPerSecond caps total submissions per second across all forms.
	// Zero disables the global bucket.
	GlobalPerSecond float64 `koanf:"global_per_second"`
	GlobalBurst     int     `koanf:"global_burst"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// FormConfig is the per-form configuration. It is resolved once per request
// and treated as an immutable snapshot for the lifetime of that request.
type FormConfig struct {
	ID             string   `koanf:"id"`
	Name           string   `koanf:"name"`
	Recipients     []string `koanf:"recipients"`
	From           string   `koanf:"from"` // overrides smtp.from when set
	Subject        string   `koanf:"subject"`
	SuccessMessage string   `koanf:"success_message"`

	// AllowedDomains restricts submitting origins. Empty, or containing
	// "*", allows any origin.
	AllowedDomains []string `koanf:"allowed_domains"`

	HoneypotEnabled bool   `koanf:"honeypot_enabled"`
	HoneypotField   string `koanf:"honeypot_field"`

	Captcha FormCaptchaConfig `koanf:"captcha"`

	MaxFieldLength int `koanf:"max_field_length"`
	MaxFields      int `koanf:"max_fields"`

	MaxFileSize       int64    `koanf:"max_file_size"`
	MaxFiles          int      `koanf:"max_files"`
	AllowedExtensions []string `koanf:"allowed_extensions"`

	// RateLimitPerMinute caps submissions per client IP per minute.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// FormCaptchaConfig enables challenge verification for one form, optionally
// overriding the global keys.
type FormCaptchaConfig struct {
	Enabled   bool    `koanf:"enabled"`
	SiteKey   string  `koanf:"site_key"`
	SecretKey string  `koanf:"secret_key"`
	MinScore  float64 `koanf:"min_score"`
}

// EnvPrefix is the prefix for environment variable overrides, e.g.
// FORMRELAY_SERVER__PORT=9000 sets server.port.
const EnvPrefix = "FORMRELAY_"

// Load reads configuration from the given YAML file (if it exists) and
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Forms {
		applyFormDefaults(&cfg.Forms[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":              8080,
		"server.request_timeout":   "30s",
		"server.max_request_bytes": 32 << 20,
		"log.level":                "info",
		"smtp.port":                587,
		"smtp.timeout":             "30s",
		"smtp.provider":            "smtp",
		"captcha.provider":         "hcaptcha",
		"captcha.timeout":          "10s",
		"rate_limit.global_burst":  10,
		"storage.type":             "sqlite",
		"storage.sqlite.path":      "./data/formrelay.db",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func applyFormDefaults(f *FormConfig) {
	if f.HoneypotField == "" {
		f.HoneypotField = "_honeypot"
	}
	if f.Subject == "" {
		f.Subject = "New form submission"
	}
	if f.SuccessMessage == "" {
		f.SuccessMessage = "Thank you for your submission!"
	}
	if f.MaxFieldLength == 0 {
		f.MaxFieldLength = 5000
	}
	if f.MaxFields == 0 {
		f.MaxFields = 50
	}
	if f.MaxFileSize == 0 {
		f.MaxFileSize = 10 << 20
	}
	if f.MaxFiles == 0 {
		f.MaxFiles = 10
	}
	if f.RateLimitPerMinute == 0 {
		f.RateLimitPerMinute = 5
	}
}

// Validate checks the configuration for problems that would otherwise only
// surface at request time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.type must be sqlite or memory, got %q", c.Storage.Type)
	}

	switch c.SMTP.Provider {
	case "smtp", "stdout":
	default:
		return fmt.Errorf("smtp.provider must be smtp or stdout, got %q", c.SMTP.Provider)
	}

	if c.SMTP.Provider == "smtp" {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required")
		}
		switch c.SMTP.Encryption {
		case "", "tls", "starttls", "none":
		default:
			return fmt.Errorf("smtp.encryption must be tls, starttls, or none, got %q", c.SMTP.Encryption)
		}
	}

	switch c.Captcha.Provider {
	case "hcaptcha", "recaptcha", "turnstile":
	default:
		return fmt.Errorf("captcha.provider must be hcaptcha, recaptcha, or turnstile, got %q", c.Captcha.Provider)
	}

	seen := make(map[string]bool, len(c.Forms))
	for _, f := range c.Forms {
		if f.ID == "" {
			return fmt.Errorf("form is missing an id")
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate form id %q", f.ID)
		}
		seen[f.ID] = true
		if len(f.Recipients) == 0 {
			return fmt.Errorf("form %q has no recipients", f.ID)
		}
		if f.Captcha.Enabled && f.Captcha.SecretKey == "" && c.Captcha.SecretKey == "" {
			return fmt.Errorf("form %q enables captcha but no secret key is configured", f.ID)
		}
	}

	return nil
}

// FormByID resolves a form configuration. The returned value is a copy; the
// pipeline treats it as an immutable snapshot.
func (c *Config) FormByID(id string) (FormConfig, bool) {
	for _, f := range c.Forms {
		if f.ID == id {
			return f, true
		}
	}
	return FormConfig{}, false
}
