// Package config defines the recognized configuration surface of the
// security pipeline, with documented defaults for every option.
package config

import (
	"fmt"
	"time"
)

// Config is the full pipeline configuration. The zero value is not usable;
// start from Default() and adjust, or load from file/map.
type Config struct {
	RateLimit       RateLimitConfig       `mapstructure:"rate_limit"`
	Validation      ValidationConfig      `mapstructure:"validation"`
	Auth            AuthConfig            `mapstructure:"auth"`
	CORS            CORSConfig            `mapstructure:"cors"`
	HTTPS           HTTPSConfig           `mapstructure:"https"`
	CSRF            CSRFConfig            `mapstructure:"csrf"`
	ContentType     ContentTypeConfig     `mapstructure:"content_type"`
	IPReputation    IPReputationConfig    `mapstructure:"ip_reputation"`
	Replay          ReplayConfig          `mapstructure:"replay"`
	Constraints     ConstraintsConfig     `mapstructure:"constraints"`
	ThreatDetection ThreatDetectionConfig `mapstructure:"threat_detection"`
	Monitoring      MonitoringConfig      `mapstructure:"monitoring"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerWindow uint32        `mapstructure:"requests_per_window"`
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	BurstSize         uint32        `mapstructure:"burst_size"`
	PerIP             bool          `mapstructure:"per_ip"`
	PerUser           bool          `mapstructure:"per_user"`
	// Adaptive is recognized but reserved; the limiter ignores it today.
	Adaptive bool `mapstructure:"adaptive"`
}

type ValidationConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	SQLInjectionCheck     bool `mapstructure:"sql_injection_check"`
	XSSCheck              bool `mapstructure:"xss_check"`
	CommandInjectionCheck bool `mapstructure:"command_injection_check"`
	PathTraversalCheck    bool `mapstructure:"path_traversal_check"`
	// AdvancedChecks enables the second pattern pass: XXE, NoSQL, LDAP,
	// header and template injection.
	AdvancedChecks bool `mapstructure:"advanced_checks"`
	SanitizeInput  bool `mapstructure:"sanitize_input"`
	MaxPayloadSize int  `mapstructure:"max_payload_size"`
	MaxHeaderSize  int  `mapstructure:"max_header_size"`
}

type AuthConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RequireAuth bool          `mapstructure:"require_auth"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	APIKeys     []string      `mapstructure:"api_keys"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowAllOrigins  bool     `mapstructure:"allow_all_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           uint32   `mapstructure:"max_age"`
}

type HTTPSConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	RequireHTTPS          bool   `mapstructure:"require_https"`
	HSTSMaxAge            uint32 `mapstructure:"hsts_max_age"`
	HSTSIncludeSubdomains bool   `mapstructure:"hsts_include_subdomains"`
}

type CSRFConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TokenLength int    `mapstructure:"token_length"`
	HeaderName  string `mapstructure:"header_name"`
	ParamName   string `mapstructure:"param_name"`
}

type ContentTypeConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	StrictMode   bool     `mapstructure:"strict_mode"`
}

type IPReputationConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	BlacklistedIPs []string `mapstructure:"blacklisted_ips"`
	WhitelistedIPs []string `mapstructure:"whitelisted_ips"`
	AllowVPN       bool     `mapstructure:"allow_vpn"`
	AllowProxy     bool     `mapstructure:"allow_proxy"`
}

type ReplayConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TimestampWindow time.Duration `mapstructure:"timestamp_window"`
	MaxNonces       int           `mapstructure:"max_nonces"`
}

type ConstraintsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxURILength      int           `mapstructure:"max_uri_length"`
	MaxRequestTime    time.Duration `mapstructure:"max_request_time"`
	MaxConnectionTime time.Duration `mapstructure:"max_connection_time"`
}

type ThreatDetectionConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	AnomalyDetection bool `mapstructure:"anomaly_detection"`
	BotDetection     bool `mapstructure:"bot_detection"`
	BlockSuspicious  bool `mapstructure:"block_suspicious"`
}

type MonitoringConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	LogRequests       bool `mapstructure:"log_requests"`
	LogSecurityEvents bool `mapstructure:"log_security_events"`
	MetricsEnabled    bool `mapstructure:"metrics_enabled"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 100000,
			WindowDuration:    time.Minute,
			BurstSize:         10000,
			PerIP:             true,
			PerUser:           true,
			Adaptive:          true,
		},
		Validation: ValidationConfig{
			Enabled:               true,
			SQLInjectionCheck:     true,
			XSSCheck:              true,
			CommandInjectionCheck: true,
			PathTraversalCheck:    true,
			SanitizeInput:         true,
			MaxPayloadSize:        10 * 1024 * 1024,
			MaxHeaderSize:         8 * 1024,
		},
		Auth: AuthConfig{
			Enabled:     true,
			RequireAuth: false,
			TokenExpiry: time.Hour,
		},
		CORS: CORSConfig{
			Enabled:          true,
			AllowOrigins:     []string{"https://localhost:3000"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Total-Count", "X-Page-Number"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		HTTPS: HTTPSConfig{
			Enabled:               true,
			RequireHTTPS:          true,
			HSTSMaxAge:            31536000,
			HSTSIncludeSubdomains: true,
		},
		CSRF: CSRFConfig{
			Enabled:     true,
			TokenLength: 32,
			HeaderName:  "X-CSRF-Token",
			ParamName:   "_csrf",
		},
		ContentType: ContentTypeConfig{
			Enabled: true,
			AllowedTypes: []string{
				"application/json",
				"application/x-www-form-urlencoded",
				"multipart/form-data",
				"text/plain",
				"text/xml",
				"application/xml",
			},
		},
		IPReputation: IPReputationConfig{
			Enabled: true,
		},
		Replay: ReplayConfig{
			Enabled:         true,
			TimestampWindow: 5 * time.Minute,
			MaxNonces:       10000,
		},
		Constraints: ConstraintsConfig{
			Enabled:           true,
			MaxURILength:      8192,
			MaxRequestTime:    30 * time.Second,
			MaxConnectionTime: 10 * time.Minute,
		},
		ThreatDetection: ThreatDetectionConfig{
			Enabled:          true,
			AnomalyDetection: true,
			BotDetection:     true,
			BlockSuspicious:  true,
		},
		Monitoring: MonitoringConfig{
			Enabled:           true,
			LogRequests:       true,
			LogSecurityEvents: true,
			MetricsEnabled:    true,
		},
	}
}

// WithRateLimit configures the steady-state rate; burst defaults to the same
// value so a full window can be absorbed at once.
func (c Config) WithRateLimit(requests uint32, window time.Duration) Config {
	c.RateLimit.Enabled = true
	c.RateLimit.RequestsPerWindow = requests
	c.RateLimit.WindowDuration = window
	c.RateLimit.BurstSize = requests
	return c
}

// WithBurstSize overrides the burst capacity independently of the
// steady-state rate.
func (c Config) WithBurstSize(burst uint32) Config {
	c.RateLimit.BurstSize = burst
	return c
}

// WithJWTValidation enables mandatory JWT authentication with the given
// shared secret.
func (c Config) WithJWTValidation(secret string) Config {
	c.Auth.JWTSecret = secret
	c.Auth.RequireAuth = true
	return c
}

// WithAPIKeys registers accepted API keys alongside (or instead of) JWT.
func (c Config) WithAPIKeys(keys ...string) Config {
	c.Auth.APIKeys = append(c.Auth.APIKeys, keys...)
	return c
}

// WithInputSanitization toggles sanitize-on-output behavior.
func (c Config) WithInputSanitization(enabled bool) Config {
	c.Validation.SanitizeInput = enabled
	return c
}

// StrictMode forces every validation and threat-detection sub-flag on
// simultaneously.
func (c Config) StrictMode() Config {
	c.Validation.Enabled = true
	c.Validation.SQLInjectionCheck = true
	c.Validation.XSSCheck = true
	c.Validation.CommandInjectionCheck = true
	c.Validation.PathTraversalCheck = true
	c.Validation.AdvancedChecks = true
	c.Validation.SanitizeInput = true
	c.ThreatDetection.Enabled = true
	c.ThreatDetection.AnomalyDetection = true
	c.ThreatDetection.BotDetection = true
	c.ThreatDetection.BlockSuspicious = true
	return c
}

// Validate checks cross-field consistency. It is called once at pipeline
// construction; a failure there is fatal to startup.
func (c Config) Validate() error {
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow == 0 {
			return configError("rate_limit.requests_per_window must be positive")
		}
		if c.RateLimit.WindowDuration <= 0 {
			return configError("rate_limit.window_duration must be positive")
		}
		if c.RateLimit.BurstSize == 0 {
			return configError("rate_limit.burst_size must be positive")
		}
	}
	if c.Validation.Enabled {
		if c.Validation.MaxPayloadSize <= 0 {
			return configError("validation.max_payload_size must be positive")
		}
		if c.Validation.MaxHeaderSize <= 0 {
			return configError("validation.max_header_size must be positive")
		}
	}
	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		return configError("auth.require_auth needs a jwt_secret or at least one api key")
	}
	if c.CSRF.Enabled && c.CSRF.TokenLength < 16 {
		return configError(fmt.Sprintf("csrf.token_length %d is below the minimum of 16", c.CSRF.TokenLength))
	}
	if c.CORS.AllowCredentials && c.CORS.AllowAllOrigins {
		return configError("cors.allow_credentials cannot be combined with allow_all_origins")
	}
	if c.Replay.Enabled && c.Replay.TimestampWindow <= 0 {
		return configError("replay.timestamp_window must be positive")
	}
	return nil
}
