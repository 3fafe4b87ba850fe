package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v2"

	"github.com/manabi-dev/manabi/internal/token"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Port           int      `yaml:"port"`
	ClientURL      string   `yaml:"client_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`

	// Token lifetimes as suffix strings (s/m/h/d), e.g. "15m", "7d".
	AccessTokenTTL      string `yaml:"access_token_ttl"`
	RefreshTokenTTL     string `yaml:"refresh_token_ttl"`
	ResetTokenTTL       string `yaml:"reset_token_ttl"`
	VerificationCodeTTL string `yaml:"verification_code_ttl"`

	RegistryTimeoutSeconds int `yaml:"registry_timeout_seconds"`

	// Requests per minute a single client IP may spend on the credential
	// endpoints. 0 disables rate limiting.
	AuthRatePerMinute int `yaml:"auth_rate_per_minute"`
	AuthRateBurst     int `yaml:"auth_rate_burst"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

type Private struct {
	Pg    Pg    `yaml:"pg"`
	Redis Redis `yaml:"redis"`
	Email Email `yaml:"email"`

	AccessTokenSecret  string `yaml:"access_token_secret"`
	RefreshTokenSecret string `yaml:"refresh_token_secret"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Db       int    `yaml:"db"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"`
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder and rejects
// values the rest of the process assumes are valid. Token lifetimes with an
// unknown suffix parse to 0 (immediate expiry), which must never reach the
// token service.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	if err := cfg.validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}

func (c *Config) validate() error {
	ttls := map[string]string{
		"access_token_ttl":      c.Public.AccessTokenTTL,
		"refresh_token_ttl":     c.Public.RefreshTokenTTL,
		"reset_token_ttl":       c.Public.ResetTokenTTL,
		"verification_code_ttl": c.Public.VerificationCodeTTL,
	}
	for name, value := range ttls {
		if token.ParseExpiry(value) <= 0 {
			return fmt.Errorf("config: %s %q does not parse to a positive duration", name, value)
		}
	}
	if c.Private.AccessTokenSecret == "" || c.Private.RefreshTokenSecret == "" {
		return fmt.Errorf("config: token secrets must be set")
	}
	if c.Private.AccessTokenSecret == c.Private.RefreshTokenSecret {
		return fmt.Errorf("config: access and refresh token secrets must differ")
	}
	return nil
}
