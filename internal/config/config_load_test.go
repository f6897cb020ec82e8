package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bridge.Port != 18791 {
		t.Errorf("Port = %d, want default 18791", cfg.Bridge.Port)
	}
	if cfg.Channels.WeChat.DMPolicy != "pairing" || cfg.Channels.WeChat.GroupPolicy != "allowlist" {
		t.Errorf("policies = %q/%q, want pairing/allowlist defaults",
			cfg.Channels.WeChat.DMPolicy, cfg.Channels.WeChat.GroupPolicy)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// wechat gateway
		channels: {
			wechat: {
				enabled: true,
				server_url: "http://gw.local:9000",
				auth_token: "tok",
				wxid: "bot",
				allow_from: ["alice", 12345],
			},
		},
		bridge: { host: "127.0.0.1", port: 9999 },
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	wc := cfg.Channels.WeChat
	if !wc.Enabled || wc.ServerURL != "http://gw.local:9000" {
		t.Errorf("wechat config = %+v", wc)
	}
	if len(wc.AllowFrom) != 2 || wc.AllowFrom[1] != "12345" {
		t.Errorf("AllowFrom = %v, want numeric entries coerced to strings", wc.AllowFrom)
	}
	if cfg.Bridge.Port != 9999 {
		t.Errorf("Port = %d, want file value to override default", cfg.Bridge.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WXBRIDGE_SERVER_URL", "http://envgw:8080")
	t.Setenv("WXBRIDGE_AUTH_TOKEN", "envtok")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	wc := cfg.Channels.WeChat
	if wc.ServerURL != "http://envgw:8080" || wc.AuthToken != "envtok" {
		t.Errorf("env overrides not applied: %+v", wc)
	}
	if !wc.Enabled {
		t.Error("credentials via env should auto-enable the channel")
	}
}

func TestPairingDBPathExpansion(t *testing.T) {
	cfg := Default()
	path := cfg.PairingDBPath()
	if path == "" || path[0] == '~' {
		t.Errorf("PairingDBPath() = %q, want tilde expanded", path)
	}

	cfg.Pairing.DBPath = "/var/lib/wxbridge/pairing.db"
	if got := cfg.PairingDBPath(); got != "/var/lib/wxbridge/pairing.db" {
		t.Errorf("PairingDBPath() = %q, want configured path kept", got)
	}
}
