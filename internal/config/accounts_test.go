package config

import (
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveAccount_MergePrecedence(t *testing.T) {
	w := WeChatConfig{
		Enabled:     true,
		ServerURL:   "http://base:9000",
		AuthToken:   "base-token",
		DMPolicy:    "pairing",
		AllowFrom:   FlexibleStringSlice{"base_user"},
		CooldownMs:  2000,
		Accounts: map[string]WeChatAccountConfig{
			"work": {
				ServerURL: "http://work:9000",
				DMPolicy:  "open",
				AllowFrom: FlexibleStringSlice{"work_user"},
			},
		},
	}

	acc := w.ResolveAccount("work")

	if acc.ServerURL != "http://work:9000" {
		t.Errorf("ServerURL = %q, want account override", acc.ServerURL)
	}
	if acc.AuthToken != "base-token" {
		t.Errorf("AuthToken = %q, want base fallthrough", acc.AuthToken)
	}
	if acc.DMPolicy != "open" {
		t.Errorf("DMPolicy = %q, want 'open'", acc.DMPolicy)
	}
	if !reflect.DeepEqual(acc.AllowFrom, []string{"work_user"}) {
		t.Errorf("AllowFrom = %v, want account override", acc.AllowFrom)
	}
	if acc.CooldownMs != 2000 {
		t.Errorf("CooldownMs = %d, want base fallthrough", acc.CooldownMs)
	}
}

func TestResolveAccount_EnabledIsLogicalAnd(t *testing.T) {
	tests := []struct {
		name    string
		base    bool
		account *bool
		want    bool
	}{
		{"both enabled", true, boolPtr(true), true},
		{"account disabled", true, boolPtr(false), false},
		{"base disabled", false, boolPtr(true), false},
		{"no account override", true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeChatConfig{
				Enabled: tt.base,
				Accounts: map[string]WeChatAccountConfig{
					"a": {Enabled: tt.account},
				},
			}
			if got := w.ResolveAccount("a").Enabled; got != tt.want {
				t.Errorf("Enabled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveAccount_DefaultSelection(t *testing.T) {
	t.Run("explicit default alias", func(t *testing.T) {
		w := WeChatConfig{
			DefaultAccount: "beta",
			Accounts: map[string]WeChatAccountConfig{
				"alpha": {ServerURL: "http://alpha"},
				"beta":  {ServerURL: "http://beta"},
			},
		}
		if got := w.ResolveAccount("").AccountID; got != "beta" {
			t.Errorf("AccountID = %q, want 'beta'", got)
		}
	})

	t.Run("lexicographically first", func(t *testing.T) {
		w := WeChatConfig{
			Accounts: map[string]WeChatAccountConfig{
				"zulu":  {ServerURL: "http://zulu"},
				"alpha": {ServerURL: "http://alpha"},
			},
		}
		if got := w.ResolveAccount("").AccountID; got != "alpha" {
			t.Errorf("AccountID = %q, want 'alpha'", got)
		}
	})

	t.Run("sentinel when no accounts", func(t *testing.T) {
		w := WeChatConfig{ServerURL: "http://base"}
		acc := w.ResolveAccount("")
		if acc.AccountID != DefaultAccountID {
			t.Errorf("AccountID = %q, want %q", acc.AccountID, DefaultAccountID)
		}
		if acc.ServerURL != "http://base" {
			t.Errorf("ServerURL = %q, want base", acc.ServerURL)
		}
	})
}

func TestResolveAccount_FallbackToSentinel(t *testing.T) {
	w := WeChatConfig{
		ServerURL: "http://base",
		Accounts: map[string]WeChatAccountConfig{
			// "alpha" sorts first but overrides nothing usable; it still
			// inherits the base server URL, so no fallback happens.
			"alpha":   {AuthToken: "t"},
			"default": {ServerURL: "http://sentinel"},
		},
	}
	acc := w.ResolveAccount("")
	if acc.AccountID != "alpha" || acc.ServerURL != "http://base" {
		t.Errorf("got (%q, %q), want alpha with inherited base URL", acc.AccountID, acc.ServerURL)
	}

	// With no base URL, the default resolution is empty and the sentinel
	// account wins.
	w.ServerURL = ""
	acc = w.ResolveAccount("")
	if acc.AccountID != "default" || acc.ServerURL != "http://sentinel" {
		t.Errorf("got (%q, %q), want sentinel fallback", acc.AccountID, acc.ServerURL)
	}

	// Explicitly requested ids never fall back.
	acc = w.ResolveAccount("alpha")
	if acc.AccountID != "alpha" || acc.ServerURL != "" {
		t.Errorf("got (%q, %q), want alpha with empty URL", acc.AccountID, acc.ServerURL)
	}
}

func TestResolveAccount_NeverFails(t *testing.T) {
	w := WeChatConfig{}
	acc := w.ResolveAccount("ghost")
	if acc.AccountID != "ghost" {
		t.Errorf("AccountID = %q, want 'ghost'", acc.AccountID)
	}
	if acc.ServerURL != "" || acc.AuthToken != "" {
		t.Error("unknown account should resolve to empty credentials, not fail")
	}
}
