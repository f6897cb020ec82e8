package config

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the bridge.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Bridge   BridgeConfig   `json:"bridge"`
	Pairing  PairingConfig  `json:"pairing,omitempty"`
}

// BridgeConfig controls the local HTTP surface the gateway calls back into.
type BridgeConfig struct {
	Host        string `json:"host"`                   // bind address (default "0.0.0.0")
	Port        int    `json:"port"`                   // webhook listen port (default 18791)
	PublicURL   string `json:"public_url,omitempty"`   // externally reachable base URL for callback registration
	WebhookPath string `json:"webhook_path,omitempty"` // default "/wechat/callback"
}

// PairingConfig controls the pairing allow-store.
type PairingConfig struct {
	DBPath  string `json:"db_path,omitempty"`  // default "~/.wxbridge/pairing.db"
	TTLDays int    `json:"ttl_days,omitempty"` // pairing approval lifetime (default 0 = no expiry)
}

// ChannelsConfig contains per-channel configuration.
type ChannelsConfig struct {
	WeChat WeChatConfig `json:"wechat"`
}

// WeChatConfig is the base WeChat gateway configuration. Fields also present
// in WeChatAccountConfig act as defaults for every account.
type WeChatConfig struct {
	Enabled         bool                `json:"enabled"`
	ServerURL       string              `json:"server_url,omitempty"`        // gateway base URL
	AuthToken       string              `json:"auth_token,omitempty"`        // gateway authcode
	Wxid            string              `json:"wxid,omitempty"`              // bot's own wxid
	DefaultAccount  string              `json:"default_account,omitempty"`   // explicit default account id
	DMPolicy        string              `json:"dm_policy,omitempty"`         // "pairing" (default), "allowlist", "open"
	GroupPolicy     string              `json:"group_policy,omitempty"`      // "allowlist" (default), "open", "disabled"
	AllowFrom       FlexibleStringSlice `json:"allow_from,omitempty"`
	GroupAllowFrom  FlexibleStringSlice `json:"group_allow_from,omitempty"`
	BlockFrom       FlexibleStringSlice `json:"block_from,omitempty"`
	Nicknames       FlexibleStringSlice `json:"nicknames,omitempty"`         // group @mention aliases
	TriggerKeywords FlexibleStringSlice `json:"trigger_keywords,omitempty"`  // keyword gate for self/open-group messages
	OpenGroups      FlexibleStringSlice `json:"open_groups,omitempty"`       // group ids where trigger keywords work without @mention
	AISuffix        string              `json:"ai_suffix,omitempty"`         // suffix appended to bot replies, used for echo-loop detection
	CooldownMs      int                 `json:"cooldown_ms,omitempty"`       // per-chat rate cooldown (default 2000)
	MaxPerWindow    int                 `json:"max_per_window,omitempty"`    // per-account cap within the rate window (default 30)

	Accounts map[string]WeChatAccountConfig `json:"accounts,omitempty"`
}

// WeChatAccountConfig overrides base WeChat settings for one account.
// Zero-valued fields fall through to the base configuration.
type WeChatAccountConfig struct {
	Enabled         *bool               `json:"enabled,omitempty"`
	ServerURL       string              `json:"server_url,omitempty"`
	AuthToken       string              `json:"auth_token,omitempty"`
	Wxid            string              `json:"wxid,omitempty"`
	DMPolicy        string              `json:"dm_policy,omitempty"`
	GroupPolicy     string              `json:"group_policy,omitempty"`
	AllowFrom       FlexibleStringSlice `json:"allow_from,omitempty"`
	GroupAllowFrom  FlexibleStringSlice `json:"group_allow_from,omitempty"`
	BlockFrom       FlexibleStringSlice `json:"block_from,omitempty"`
	Nicknames       FlexibleStringSlice `json:"nicknames,omitempty"`
	TriggerKeywords FlexibleStringSlice `json:"trigger_keywords,omitempty"`
	OpenGroups      FlexibleStringSlice `json:"open_groups,omitempty"`
	AISuffix        string              `json:"ai_suffix,omitempty"`
	CooldownMs      int                 `json:"cooldown_ms,omitempty"`
	MaxPerWindow    int                 `json:"max_per_window,omitempty"`
}
