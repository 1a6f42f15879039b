// Package config loads the service configuration from a YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

type AppleConfig struct {
	Enabled     bool     `yaml:"enabled"`
	ClientID    string   `yaml:"client_id"`
	TeamID      string   `yaml:"team_id"`
	KeyID       string   `yaml:"key_id"`
	PrivateKey  string   `yaml:"private_key"` // PEM, PKCS8
	RedirectURL string   `yaml:"redirect_url"`
	Scopes      []string `yaml:"scopes"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		PublicBaseURL      string   `yaml:"public_base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		DSN string `yaml:"dsn"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Secret     string `yaml:"secret"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Limit   int    `yaml:"limit"`
		Window  string `yaml:"window"`
	} `yaml:"rate"`

	OAuth struct {
		// RequireState is on unless the YAML sets it to false explicitly.
		RequireState *bool `yaml:"require_state"`
	} `yaml:"oauth"`

	Providers struct {
		Google    ProviderConfig `yaml:"google"`
		Microsoft ProviderConfig `yaml:"microsoft"`
		Apple     AppleConfig    `yaml:"apple"`
	} `yaml:"providers"`
}

// Load reads the YAML file, applies defaults and env overrides and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	base := strings.TrimRight(c.Server.PublicBaseURL, "/")
	if c.Providers.Google.RedirectURL == "" && base != "" {
		c.Providers.Google.RedirectURL = base + "/api/v1/auth/oauth/callback/google"
	}
	if c.Providers.Microsoft.RedirectURL == "" && base != "" {
		c.Providers.Microsoft.RedirectURL = base + "/api/v1/auth/oauth/callback/microsoft"
	}
	if c.Providers.Apple.RedirectURL == "" && base != "" {
		c.Providers.Apple.RedirectURL = base + "/api/v1/auth/oauth/callback/apple"
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "30m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 20
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if len(c.Providers.Microsoft.Scopes) == 0 {
		c.Providers.Microsoft.Scopes = []string{"openid", "email", "profile", "User.Read"}
	}
	if len(c.Providers.Apple.Scopes) == 0 {
		c.Providers.Apple.Scopes = []string{"name", "email"}
	}
}

// RequireState reports whether callbacks must carry a verifiable state.
func (c *Config) RequireState() bool {
	if c.OAuth.RequireState == nil {
		return true
	}
	return *c.OAuth.RequireState
}

func (c *Config) AccessTTL() time.Duration  { return mustDuration(c.JWT.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration { return mustDuration(c.JWT.RefreshTTL) }
func (c *Config) MemoryCacheTTL() time.Duration {
	return mustDuration(c.Cache.Memory.DefaultTTL)
}
func (c *Config) RateWindow() time.Duration { return mustDuration(c.Rate.Window) }

// Validate checks the pieces that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	if strings.EqualFold(c.App.Env, "prod") && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("config: jwt.secret must be at least 32 bytes in prod")
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: cache.redis.addr is required when cache.kind is redis")
		}
	default:
		return fmt.Errorf("config: unknown cache.kind %q", c.Cache.Kind)
	}
	for _, d := range []string{c.JWT.AccessTTL, c.JWT.RefreshTTL, c.Cache.Memory.DefaultTTL, c.Rate.Window} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}
	if c.Providers.Apple.Enabled {
		a := c.Providers.Apple
		if a.ClientID == "" || a.TeamID == "" || a.KeyID == "" || a.PrivateKey == "" {
			return fmt.Errorf("config: providers.apple needs client_id, team_id, key_id and private_key")
		}
	}
	for name, p := range map[string]ProviderConfig{
		"google":    c.Providers.Google,
		"microsoft": c.Providers.Microsoft,
	} {
		if p.Enabled && (p.ClientID == "" || p.ClientSecret == "") {
			return fmt.Errorf("config: providers.%s needs client_id and client_secret", name)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_BASE_URL"); ok {
		c.Server.PublicBaseURL = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("CACHE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvBool("OAUTH_REQUIRE_STATE"); ok {
		c.OAuth.RequireState = &v
	}

	overrideProvider := func(prefix string, p *ProviderConfig) {
		if v, ok := getEnvBool(prefix + "_ENABLED"); ok {
			p.Enabled = v
		}
		if v, ok := getEnvStr(prefix + "_CLIENT_ID"); ok {
			p.ClientID = v
		}
		if v, ok := getEnvStr(prefix + "_CLIENT_SECRET"); ok {
			p.ClientSecret = v
		}
		if v, ok := getEnvStr(prefix + "_REDIRECT_URL"); ok {
			p.RedirectURL = v
		}
	}
	overrideProvider("PROVIDERS_GOOGLE", &c.Providers.Google)
	overrideProvider("PROVIDERS_MICROSOFT", &c.Providers.Microsoft)

	if v, ok := getEnvBool("PROVIDERS_APPLE_ENABLED"); ok {
		c.Providers.Apple.Enabled = v
	}
	if v, ok := getEnvStr("PROVIDERS_APPLE_CLIENT_ID"); ok {
		c.Providers.Apple.ClientID = v
	}
	if v, ok := getEnvStr("PROVIDERS_APPLE_TEAM_ID"); ok {
		c.Providers.Apple.TeamID = v
	}
	if v, ok := getEnvStr("PROVIDERS_APPLE_KEY_ID"); ok {
		c.Providers.Apple.KeyID = v
	}
	if v, ok := getEnvStr("PROVIDERS_APPLE_PRIVATE_KEY"); ok {
		c.Providers.Apple.PrivateKey = v
	}
	if v, ok := getEnvStr("PROVIDERS_APPLE_REDIRECT_URL"); ok {
		c.Providers.Apple.RedirectURL = v
	}
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		// Validate runs before the accessors; this is unreachable after Load.
		panic(err)
	}
	return d
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out, true
	}
	return nil, false
}
