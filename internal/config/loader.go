// Package config provides configuration loading and validation.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Mode represents the gateway operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override everything else.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr     *string
	ExternalOrigin *string
	APIOrigin      *string
	TLSMode        *string
	StoreDriver    *string
	CacheDriver    *string
}

// envOverrides are the deployment-environment settings, highest in precedence
// below flags. Secrets arrive this way so they stay out of config files.
type envOverrides struct {
	ListenAddr     string `env:"SILVERGATE_LISTEN_ADDR"`
	ExternalOrigin string `env:"SILVERGATE_EXTERNAL_ORIGIN"`
	APIOrigin      string `env:"SILVERGATE_API_ORIGIN"`
	GoogleClientID string `env:"SILVERGATE_GOOGLE_CLIENT_ID"`
	ScopeSealKey   string `env:"SILVERGATE_SCOPE_SEAL_KEY"`
}

// fileConfig mirrors Config with pointer sections to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	ListenAddr     string `toml:"listen_addr"`
	ExternalOrigin string `toml:"external_origin"`
	APIOrigin      string `toml:"api_origin"`
	GoogleClientID string `toml:"google_client_id"`

	Server       *serverFileConfig   `toml:"server"`
	TLS          *TLSConfig          `toml:"tls"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
	Store        *StoreConfig        `toml:"store"`
	Cache        *cacheFileConfig    `toml:"cache"`
	RateLimit    *RateLimitConfig    `toml:"rate_limit"`
}

type serverFileConfig struct {
	TrustedProxies []string `toml:"trusted_proxies"`
}

type cacheFileConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay environment variables
//  5. Overlay CLI flags
//  6. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid
// TOML, Load returns an error (fail fast). Unknown TOML keys produce a
// warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "prod"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	var envCfg envOverrides
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	overlayEnv(cfg, envCfg)

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return ProdConfig()
}

// ProdConfig returns production-safe defaults.
func ProdConfig() *Config {
	return &Config{
		Mode:           string(ModeProd),
		ListenAddr:     ":8443",
		ExternalOrigin: "https://www.silversurfers.example",
		APIOrigin:      "https://api.silversurfers.example",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{
			Mode:          "acme",
			HTTPPort:      8080,
			HTTPSPort:     8443,
			SelfSignedDir: ".silvergate/certs",
			ACME: ACMEConfig{
				Directory:  "https://acme-v02.api.letsencrypt.org/directory",
				StorageDir: ".silvergate/acme",
				UseStaging: false,
			},
		},
		OutboundHTTP: OutboundHTTPConfig{
			TimeoutMS:          10000,
			ConnectTimeoutMS:   2000,
			MaxResponseBytes:   1048576,
			InsecureSkipVerify: false,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".silvergate/state",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 30,
			WindowSeconds:     60,
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := ProdConfig()
	cfg.Mode = string(ModeDev)
	cfg.ListenAddr = ":8080"
	cfg.ExternalOrigin = "http://localhost:8080"
	cfg.APIOrigin = "http://localhost:3000"
	cfg.TLS.Mode = "off"
	cfg.OutboundHTTP.InsecureSkipVerify = true
	cfg.Store.Driver = "json"
	// A fixed dev key so local restarts keep their scope cookies. Never
	// valid in prod; validate rejects it there.
	cfg.ScopeSealKey = strings.Repeat("0", 64)
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.ExternalOrigin != "" {
		cfg.ExternalOrigin = fc.ExternalOrigin
	}
	if fc.APIOrigin != "" {
		cfg.APIOrigin = fc.APIOrigin
	}
	if fc.GoogleClientID != "" {
		cfg.GoogleClientID = fc.GoogleClientID
	}

	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.HTTPPort != 0 {
			cfg.TLS.HTTPPort = fc.TLS.HTTPPort
		}
		if fc.TLS.HTTPSPort != 0 {
			cfg.TLS.HTTPSPort = fc.TLS.HTTPSPort
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.ACME.Email != "" {
			cfg.TLS.ACME.Email = fc.TLS.ACME.Email
		}
		if fc.TLS.ACME.Domain != "" {
			cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
		}
		if fc.TLS.ACME.Directory != "" {
			cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
		}
		if fc.TLS.ACME.StorageDir != "" {
			cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
		}
		cfg.TLS.ACME.UseStaging = fc.TLS.ACME.UseStaging
	}

	if fc.OutboundHTTP != nil {
		if fc.OutboundHTTP.TimeoutMS != 0 {
			cfg.OutboundHTTP.TimeoutMS = fc.OutboundHTTP.TimeoutMS
		}
		if fc.OutboundHTTP.ConnectTimeoutMS != 0 {
			cfg.OutboundHTTP.ConnectTimeoutMS = fc.OutboundHTTP.ConnectTimeoutMS
		}
		if fc.OutboundHTTP.MaxResponseBytes != 0 {
			cfg.OutboundHTTP.MaxResponseBytes = fc.OutboundHTTP.MaxResponseBytes
		}
		cfg.OutboundHTTP.InsecureSkipVerify = fc.OutboundHTTP.InsecureSkipVerify
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.RateLimit != nil {
		if fc.RateLimit.RequestsPerWindow != 0 {
			cfg.RateLimit.RequestsPerWindow = fc.RateLimit.RequestsPerWindow
		}
		if fc.RateLimit.WindowSeconds != 0 {
			cfg.RateLimit.WindowSeconds = fc.RateLimit.WindowSeconds
		}
	}
}

// overlayEnv applies environment values onto cfg.
func overlayEnv(cfg *Config, e envOverrides) {
	if e.ListenAddr != "" {
		cfg.ListenAddr = e.ListenAddr
	}
	if e.ExternalOrigin != "" {
		cfg.ExternalOrigin = e.ExternalOrigin
	}
	if e.APIOrigin != "" {
		cfg.APIOrigin = e.APIOrigin
	}
	if e.GoogleClientID != "" {
		cfg.GoogleClientID = e.GoogleClientID
	}
	if e.ScopeSealKey != "" {
		cfg.ScopeSealKey = e.ScopeSealKey
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.ExternalOrigin != nil && *f.ExternalOrigin != "" {
		cfg.ExternalOrigin = *f.ExternalOrigin
	}
	if f.APIOrigin != nil && *f.APIOrigin != "" {
		cfg.APIOrigin = *f.APIOrigin
	}
	if f.TLSMode != nil && *f.TLSMode != "" {
		cfg.TLS.Mode = *f.TLSMode
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.CacheDriver != nil && *f.CacheDriver != "" {
		cfg.Cache.Driver = *f.CacheDriver
	}
}

// SealKeyBytes decodes the hex-encoded scope seal key.
func (c *Config) SealKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.ScopeSealKey)
	if err != nil {
		return nil, fmt.Errorf("scope_seal_key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("scope_seal_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// validate checks enum fields and cross-field constraints.
func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "memory", "json", "sqlite":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, json, sqlite", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "valkey":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, valkey", cfg.Cache.Driver)
	}

	if cfg.APIOrigin == "" {
		return fmt.Errorf("api_origin must be set")
	}

	if cfg.ScopeSealKey == "" {
		return fmt.Errorf("scope_seal_key must be set (SILVERGATE_SCOPE_SEAL_KEY)")
	}
	if _, err := cfg.SealKeyBytes(); err != nil {
		return err
	}
	if cfg.Mode == string(ModeProd) && cfg.ScopeSealKey == strings.Repeat("0", 64) {
		return fmt.Errorf("scope_seal_key must not use the dev default in prod mode")
	}

	return nil
}
