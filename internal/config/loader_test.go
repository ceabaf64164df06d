package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// a valid non-default seal key for tests
var testSealKey = strings.Repeat("ab", 32)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silvergate.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SILVERGATE_LISTEN_ADDR",
		"SILVERGATE_EXTERNAL_ORIGIN",
		"SILVERGATE_API_ORIGIN",
		"SILVERGATE_GOOGLE_CLIENT_ID",
		"SILVERGATE_SCOPE_SEAL_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"prod", ModeProd, false},
		{"", ModeProd, false},
		{"dev", ModeDev, false},
		{" Dev ", ModeDev, false},
		{"staging", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_DevDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.TLS.Mode != "off" {
		t.Errorf("TLS.Mode = %q, want off in dev", cfg.TLS.Mode)
	}
	if cfg.Store.Driver != "json" {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if _, err := cfg.SealKeyBytes(); err != nil {
		t.Errorf("dev seal key invalid: %v", err)
	}
}

func TestLoad_ProdRequiresRealSealKey(t *testing.T) {
	clearEnv(t)

	if _, err := Load(LoaderOptions{}); err == nil {
		t.Error("prod load without seal key should fail")
	}

	t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", strings.Repeat("0", 64))
	if _, err := Load(LoaderOptions{}); err == nil {
		t.Error("prod load with the dev default key should fail")
	}

	t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", testSealKey)
	if _, err := Load(LoaderOptions{}); err != nil {
		t.Errorf("prod load with a real key: %v", err)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", testSealKey)

	path := writeConfig(t, `
listen_addr = ":9000"
api_origin = "https://api.internal.example"
google_client_id = "client-123"

[tls]
mode = "static"
cert_file = "/etc/ssl/sg.crt"
key_file = "/etc/ssl/sg.key"

[tls.acme]
email = "ops@silversurfers.example"
domain = "www.silversurfers.example"
storage_dir = "/var/lib/silvergate/acme"
use_staging = true

[outbound_http]
timeout_ms = 7000
connect_timeout_ms = 1500
max_response_bytes = 524288
insecure_skip_verify = true

[store]
driver = "sqlite"
data_dir = "/var/lib/silvergate"

[cache]
driver = "valkey"

[cache.drivers.valkey]
addr = "valkey:6379"

[rate_limit]
requests_per_window = 10
window_seconds = 30
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.APIOrigin != "https://api.internal.example" {
		t.Errorf("APIOrigin = %q", cfg.APIOrigin)
	}
	if cfg.GoogleClientID != "client-123" {
		t.Errorf("GoogleClientID = %q", cfg.GoogleClientID)
	}
	if cfg.TLS.Mode != "static" || cfg.TLS.CertFile != "/etc/ssl/sg.crt" || cfg.TLS.KeyFile != "/etc/ssl/sg.key" {
		t.Errorf("TLS = %+v", cfg.TLS)
	}
	if cfg.TLS.ACME.Email != "ops@silversurfers.example" ||
		cfg.TLS.ACME.StorageDir != "/var/lib/silvergate/acme" ||
		!cfg.TLS.ACME.UseStaging {
		t.Errorf("TLS.ACME = %+v", cfg.TLS.ACME)
	}
	if cfg.OutboundHTTP.TimeoutMS != 7000 ||
		cfg.OutboundHTTP.ConnectTimeoutMS != 1500 ||
		cfg.OutboundHTTP.MaxResponseBytes != 524288 ||
		!cfg.OutboundHTTP.InsecureSkipVerify {
		t.Errorf("OutboundHTTP = %+v", cfg.OutboundHTTP)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DataDir != "/var/lib/silvergate" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Cache.Driver != "valkey" {
		t.Errorf("Cache.Driver = %q", cfg.Cache.Driver)
	}
	if cfg.Cache.Drivers["valkey"]["addr"] != "valkey:6379" {
		t.Errorf("Cache.Drivers = %+v", cfg.Cache.Drivers)
	}
	if cfg.RateLimit.RequestsPerWindow != 10 || cfg.RateLimit.WindowSeconds != 30 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", testSealKey)

	path := writeConfig(t, `
listen_addr = ":9000"
api_origin = "https://from-file.example"
`)

	// Env beats file.
	t.Setenv("SILVERGATE_API_ORIGIN", "https://from-env.example")

	// Flag beats env.
	listen := ":9999"
	cfg, err := Load(LoaderOptions{
		ConfigPath:    path,
		FlagOverrides: FlagOverrides{ListenAddr: &listen},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIOrigin != "https://from-env.example" {
		t.Errorf("APIOrigin = %q, env should override file", cfg.APIOrigin)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, flag should override file", cfg.ListenAddr)
	}
}

func TestLoad_ModeFlagOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `mode = "prod"`)
	cfg, err := Load(LoaderOptions{ConfigPath: path, ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("Mode = %q, want flag to win", cfg.Mode)
	}
}

func TestLoad_Failures(t *testing.T) {
	clearEnv(t)
	t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", testSealKey)

	tests := []struct {
		name string
		toml string
	}{
		{"invalid tls mode", `[tls]` + "\n" + `mode = "magic"`},
		{"invalid store driver", `[store]` + "\n" + `driver = "postgres"`},
		{"invalid cache driver", `[cache]` + "\n" + `driver = "redis2"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.toml)
			if _, err := Load(LoaderOptions{ConfigPath: path}); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(LoaderOptions{ConfigPath: "/nonexistent/sg.toml"}); err == nil {
			t.Error("expected read error")
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, `listen_addr = [broken`)
		if _, err := Load(LoaderOptions{ConfigPath: path}); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("bad seal key", func(t *testing.T) {
		t.Setenv("SILVERGATE_SCOPE_SEAL_KEY", "not-hex")
		if _, err := Load(LoaderOptions{}); err == nil {
			t.Error("expected seal key error")
		}
	})
}

func TestRedacted(t *testing.T) {
	cfg := ProdConfig()
	cfg.ScopeSealKey = testSealKey

	red := cfg.Redacted()
	if red.ScopeSealKey != "[redacted]" {
		t.Errorf("ScopeSealKey = %q", red.ScopeSealKey)
	}
	if cfg.ScopeSealKey != testSealKey {
		t.Error("Redacted mutated the original")
	}
	if red.ListenAddr != cfg.ListenAddr {
		t.Error("non-secret field altered")
	}
}
