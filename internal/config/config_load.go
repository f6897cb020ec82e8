package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Host:        "0.0.0.0",
			Port:        18791,
			WebhookPath: "/wechat/callback",
		},
		Channels: ChannelsConfig{
			WeChat: WeChatConfig{
				DMPolicy:     "pairing",
				GroupPolicy:  "allowlist",
				CooldownMs:   2000,
				MaxPerWindow: 30,
			},
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("WXBRIDGE_SERVER_URL", &c.Channels.WeChat.ServerURL)
	envStr("WXBRIDGE_AUTH_TOKEN", &c.Channels.WeChat.AuthToken)
	envStr("WXBRIDGE_WXID", &c.Channels.WeChat.Wxid)
	envStr("WXBRIDGE_PUBLIC_URL", &c.Bridge.PublicURL)
	envStr("WXBRIDGE_PAIRING_DB", &c.Pairing.DBPath)

	// Auto-enable when credentials arrive via env.
	if c.Channels.WeChat.ServerURL != "" && os.Getenv("WXBRIDGE_SERVER_URL") != "" {
		c.Channels.WeChat.Enabled = true
	}
}

// PairingDBPath resolves the pairing store path, expanding "~".
func (c *Config) PairingDBPath() string {
	path := c.Pairing.DBPath
	if path == "" {
		path = "~/.wxbridge/pairing.db"
	}
	if len(path) > 1 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
