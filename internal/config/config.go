package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "PORTAL"

// EnvironmentProduction enables the strict startup checks and the production CSP.
const EnvironmentProduction = "production"

// Config holds the application configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Deployment environment ("production" enables strict checks)
	Environment string `mapstructure:"environment"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	// Path prefix for the API routes (e.g. "/api")
	APIPrefix string `mapstructure:"api_prefix"`

	// Directory service configuration
	LDAP LDAPConfig `mapstructure:"ldap"`

	// Session token signing configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// CORS policy for browser clients
	CORS CORSConfig `mapstructure:"cors"`

	// Per-client request limits for sensitive routes
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Ceiling for the declared request body size
	BodyLimitBytes int64 `mapstructure:"body_limit_bytes"`

	// Header carrying the request correlation id
	RequestIDHeader string `mapstructure:"request_id_header"`

	// OpenTelemetry export configuration
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// LDAPConfig describes how to reach and search the member directory.
type LDAPConfig struct {
	URL           string        `mapstructure:"url"`
	BaseDN        string        `mapstructure:"base_dn"`
	PeopleOU      string        `mapstructure:"people_ou"`
	AdminDN       string        `mapstructure:"admin_dn"`
	AdminPassword string        `mapstructure:"admin_password"`
	LeaderGroupDN string        `mapstructure:"leader_group_dn"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
}

// PeopleDN returns the search base for user entries.
func (c LDAPConfig) PeopleDN() string {
	if c.PeopleOU == "" {
		return c.BaseDN
	}
	return c.PeopleOU + "," + c.BaseDN
}

// JWTConfig holds the HMAC secret used to sign session tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window"`
	Max           int           `mapstructure:"max"`
	Routes        []string      `mapstructure:"routes"`
	MaxEntries    int           `mapstructure:"max_entries"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ObservabilityConfig controls OpenTelemetry export. An empty endpoint disables it.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// IsProduction reports whether strict production behaviour is enabled.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// setDefaults registers every key so that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("environment", "development")
	v.SetDefault("debug", false)
	v.SetDefault("api_prefix", "/api")

	v.SetDefault("ldap.url", "")
	v.SetDefault("ldap.base_dn", "")
	v.SetDefault("ldap.people_ou", "ou=people")
	v.SetDefault("ldap.admin_dn", "")
	v.SetDefault("ldap.admin_password", "")
	v.SetDefault("ldap.leader_group_dn", "")
	v.SetDefault("ldap.op_timeout", 5*time.Second)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.max", 10)
	v.SetDefault("rate_limit.routes", []string{})
	v.SetDefault("rate_limit.max_entries", 100000)
	v.SetDefault("rate_limit.sweep_interval", time.Minute)

	v.SetDefault("body_limit_bytes", 100*1024)
	v.SetDefault("request_id_header", "X-Request-Id")

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http/protobuf")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.service_name", "applica-gateway")
	v.SetDefault("observability.service_version", "dev")
}

// Load reads configuration from the global viper instance (config file, if one
// was read by the caller) and PORTAL_ prefixed environment variables. A .env
// file in the working directory is loaded first when present; variables that
// are already set are not overridden.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	v := viper.GetViper()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.LDAP.AdminDN == "" && c.LDAP.BaseDN != "" {
		c.LDAP.AdminDN = "cn=admin," + c.LDAP.BaseDN
	}
	if c.LDAP.OpTimeout <= 0 {
		c.LDAP.OpTimeout = 5 * time.Second
	}
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	if c.APIPrefix == "/" {
		c.APIPrefix = ""
	}
	c.CORS.AllowedOrigins = trimAll(c.CORS.AllowedOrigins)
	c.RateLimit.Routes = trimAll(c.RateLimit.Routes)
	if len(c.RateLimit.Routes) == 0 {
		c.RateLimit.Routes = DefaultRateLimitRoutes(c.APIPrefix)
	}
}

// DefaultRateLimitRoutes returns the form and login routes counted when
// rate_limit.routes is not configured, mounted under prefix.
func DefaultRateLimitRoutes(prefix string) []string {
	return []string{
		"POST " + prefix + "/applications",
		"POST " + prefix + "/membership-applications",
		"POST " + prefix + "/auth/login",
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// Validate checks the settings the gateway cannot serve protected traffic
// without. Directory settings are always required. A missing signing secret is
// fatal in production; elsewhere it is reported through warnings and the
// gateway fails closed at first use.
func (c *Config) Validate() (warnings []string, err error) {
	var missing []string
	if c.LDAP.URL == "" {
		missing = append(missing, "ldap.url")
	}
	if c.LDAP.BaseDN == "" {
		missing = append(missing, "ldap.base_dn")
	}
	if c.LDAP.AdminPassword == "" {
		missing = append(missing, "ldap.admin_password")
	}
	if c.LDAP.LeaderGroupDN == "" {
		missing = append(missing, "ldap.leader_group_dn")
	}
	if c.JWT.Secret == "" {
		if c.IsProduction() {
			missing = append(missing, "jwt.secret")
		} else {
			warnings = append(warnings, "jwt.secret is not set; protected routes will reject requests")
		}
	}
	if len(missing) > 0 {
		return warnings, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.RateLimit.Window <= 0 {
		return warnings, fmt.Errorf("rate_limit.window must be positive")
	}
	if c.RateLimit.Max <= 0 {
		return warnings, fmt.Errorf("rate_limit.max must be positive")
	}
	if c.BodyLimitBytes <= 0 {
		return warnings, fmt.Errorf("body_limit_bytes must be positive")
	}
	return warnings, nil
}
