// Package config provides configuration loading and validation.
package config

// Config holds the gateway configuration.
type Config struct {
	// Mode is the operating mode: prod or dev.
	Mode string `json:"mode"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `json:"listen_addr"`

	// ExternalOrigin is the public origin (scheme + host + port) this
	// gateway is reachable at. Example: "https://www.silversurfers.example"
	ExternalOrigin string `json:"external_origin"`

	// APIOrigin is the base URL of the SilverSurfers API.
	// Example: "https://api.silversurfers.example"
	APIOrigin string `json:"api_origin"`

	// GoogleClientID is the OAuth client identifier for the Google
	// sign-in exchange.
	GoogleClientID string `json:"google_client_id"`

	// ScopeSealKey is the hex-encoded 32-byte key sealing the browser
	// scope cookie. Secret.
	ScopeSealKey string `json:"scope_seal_key"`

	Server       ServerConfig       `json:"server"`
	TLS          TLSConfig          `json:"tls"`
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
	Store        StoreConfig        `json:"store"`
	Cache        CacheConfig        `json:"cache"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// TrustedProxies are CIDR ranges whose X-Forwarded-For is honored.
	TrustedProxies []string `json:"trusted_proxies" toml:"trusted_proxies"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode" toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file" toml:"cert_file"`
	KeyFile  string `json:"key_file" toml:"key_file"`

	// HTTPPort for HTTP listener (used for ACME challenges and redirects)
	HTTPPort int `json:"http_port" toml:"http_port"`

	// HTTPSPort for HTTPS listener
	HTTPSPort int `json:"https_port" toml:"https_port"`

	// SelfSignedDir stores generated certificates for selfsigned mode
	SelfSignedDir string `json:"self_signed_dir" toml:"self_signed_dir"`

	ACME ACMEConfig `json:"acme" toml:"acme"`
}

// ACMEConfig holds ACME certificate settings.
type ACMEConfig struct {
	Email      string `json:"email" toml:"email"`
	Domain     string `json:"domain" toml:"domain"`
	Directory  string `json:"directory" toml:"directory"`
	StorageDir string `json:"storage_dir" toml:"storage_dir"`
	UseStaging bool   `json:"use_staging" toml:"use_staging"`
}

// OutboundHTTPConfig holds settings for calls to the API origin.
type OutboundHTTPConfig struct {
	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `json:"timeout_ms" toml:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `json:"connect_timeout_ms" toml:"connect_timeout_ms"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `json:"max_response_bytes" toml:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `json:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// StoreConfig holds browser-state persistence settings.
type StoreConfig struct {
	// Driver is one of: memory, json, sqlite
	Driver string `json:"driver" toml:"driver"`

	// DataDir is where durable drivers keep their files.
	DataDir string `json:"data_dir" toml:"data_dir"`
}

// CacheConfig holds cache subsystem settings.
type CacheConfig struct {
	// Driver is one of: memory, valkey
	Driver string `json:"driver" toml:"driver"`

	// Drivers holds per-driver option sections keyed by driver name.
	Drivers map[string]map[string]any `json:"drivers" toml:"drivers"`
}

// RateLimitConfig bounds the authentication endpoints.
type RateLimitConfig struct {
	RequestsPerWindow int64 `json:"requests_per_window" toml:"requests_per_window"`
	WindowSeconds     int   `json:"window_seconds" toml:"window_seconds"`
}

// Redacted returns a copy safe for startup logging: secrets are masked,
// everything else is verbatim.
func (c *Config) Redacted() *Config {
	out := *c
	if out.ScopeSealKey != "" {
		out.ScopeSealKey = "[redacted]"
	}
	return &out
}
