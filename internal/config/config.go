package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/airtel"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated by a double
// underscore: PAYWALL_HTTP__SHUTDOWN_TIMEOUT sets http.shutdown_timeout.
const EnvPrefix = "PAYWALL_"

// MediaPrefix is the URL path under which media.dir is served.
const MediaPrefix = "/static/"

// Config represents the application configuration
type Config struct {
	Service struct {
		Name string `koanf:"name"`
		Env  string `koanf:"env"`
	} `koanf:"service"`

	HTTP struct {
		Addr            string        `koanf:"addr"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		PayRPS          float64       `koanf:"pay_rps"`
		PayBurst        int           `koanf:"pay_burst"`
		SecureCookies   bool          `koanf:"secure_cookies"`
	} `koanf:"http"`

	Payment struct {
		Endpoint    string        `koanf:"endpoint"`
		Timeout     time.Duration `koanf:"timeout"`
		Currency    string        `koanf:"currency"`
		Tiers       []int64       `koanf:"tiers"`
		OutboundRPS float64       `koanf:"outbound_rps"`
	} `koanf:"payment"`

	Session struct {
		IdleTTL       time.Duration `koanf:"idle_ttl"`
		SweepInterval time.Duration `koanf:"sweep_interval"`
	} `koanf:"session"`

	Entitlement struct {
		File string `koanf:"file"`
	} `koanf:"entitlement"`

	Media struct {
		VideoURL string `koanf:"video_url"`
		Title    string `koanf:"title"`
		Dir      string `koanf:"dir"`
	} `koanf:"media"`

	Dev struct {
		ResetEnabled bool `koanf:"reset_enabled"`
	} `koanf:"dev"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"service.name":           "paywall",
		"service.env":            "dev",
		"http.addr":              ":8080",
		"http.shutdown_timeout":  "10s",
		"http.pay_rps":           5.0,
		"http.pay_burst":         10,
		"http.secure_cookies":    false,
		"payment.endpoint":       airtel.DefaultEndpoint,
		"payment.timeout":        "20s",
		"payment.currency":       "CFA",
		"payment.tiers":          []int64(dompay.DefaultTiers),
		"payment.outbound_rps":   0.0,
		"session.idle_ttl":       "30m",
		"session.sweep_interval": "5m",
		"entitlement.file":       "",
		"media.video_url":        "/static/video.mp4",
		"media.title":            "Just me",
		"media.dir":              "public",
		"dev.reset_enabled":      false,
	}
}

// Load reads defaults, then the TOML file at configPath (or the first default location
// that exists), then a .env file, then PAYWALL_* environment variables.
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./paywall.toml", "$HOME/.paywall.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	u, err := url.Parse(c.Payment.Endpoint)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("payment endpoint must be an absolute URL: %q", c.Payment.Endpoint)
	}
	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("payment timeout must be positive")
	}
	if c.Payment.Currency == "" {
		return fmt.Errorf("payment currency is required")
	}
	if err := dompay.Tiers(c.Payment.Tiers).Validate(); err != nil {
		return err
	}
	if c.Media.VideoURL == "" {
		return fmt.Errorf("media video_url is required")
	}
	if strings.HasPrefix(c.Media.VideoURL, MediaPrefix) && c.Media.Dir == "" {
		return fmt.Errorf("media dir is required to serve %s", c.Media.VideoURL)
	}
	if c.HTTP.PayRPS < 0 || c.Payment.OutboundRPS < 0 {
		return fmt.Errorf("rate limits must be zero or greater")
	}
	return nil
}

// Sample is the annotated configuration written by `paywall config init`.
const Sample = `# paywall configuration

[service]
name = "paywall"
env = "dev"

[http]
addr = ":8080"
shutdown_timeout = "10s"
pay_rps = 5.0
pay_burst = 10
secure_cookies = false

[payment]
endpoint = "https://gytx.dev/api/airtelmoney-web.php"
timeout = "20s"
currency = "CFA"
tiers = [2000, 3000, 5000]
outbound_rps = 0.0

[session]
idle_ttl = "30m"
sweep_interval = "5m"

[media]
video_url = "/static/video.mp4"
title = "Just me"
# Directory served under /static/
dir = "public"

[dev]
reset_enabled = false
`

// InitConfig writes Sample to configPath unless a file already exists there.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	return os.WriteFile(configPath, []byte(Sample), 0o644)
}
