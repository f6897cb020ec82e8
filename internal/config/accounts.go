package config

import "sort"

// DefaultAccountID is the sentinel account id used when no account is configured.
const DefaultAccountID = "default"

// ResolvedAccount is an immutable snapshot of one account's merged
// credentials and policy. Produced fresh on every resolution; callers must
// not cache it across operations.
type ResolvedAccount struct {
	AccountID string
	Enabled   bool
	ServerURL string
	AuthToken string
	Wxid      string

	DMPolicy        string
	GroupPolicy     string
	AllowFrom       []string
	GroupAllowFrom  []string
	BlockFrom       []string
	Nicknames       []string
	TriggerKeywords []string
	OpenGroups      []string
	AISuffix        string
	CooldownMs      int
	MaxPerWindow    int
}

// ResolveAccount merges the base WeChat config with the per-account override
// for accountID. An empty accountID resolves the default account. Resolution
// never fails: missing credentials surface as empty fields, checked only at
// the call sites that need them.
func (w *WeChatConfig) ResolveAccount(accountID string) ResolvedAccount {
	explicit := accountID != ""
	if !explicit {
		accountID = w.defaultAccountID()
	}

	acc := w.mergeAccount(accountID)

	// When the default resolution has no server URL, the sentinel account
	// may still carry one (base-level credentials). Prefer whichever
	// resolution is actually usable; ties keep the original.
	if !explicit && acc.ServerURL == "" && accountID != DefaultAccountID {
		if alt := w.mergeAccount(DefaultAccountID); alt.ServerURL != "" {
			return alt
		}
	}
	return acc
}

// AccountIDs returns every configured account id, sorted. Falls back to the
// sentinel default when no accounts sub-map is configured.
func (w *WeChatConfig) AccountIDs() []string {
	if len(w.Accounts) == 0 {
		return []string{DefaultAccountID}
	}
	ids := make([]string, 0, len(w.Accounts))
	for id := range w.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *WeChatConfig) defaultAccountID() string {
	if w.DefaultAccount != "" {
		return w.DefaultAccount
	}
	ids := w.AccountIDs()
	return ids[0]
}

// mergeAccount overlays the account's override fields on the base config.
// The accounts sub-map itself never participates in the merge.
func (w *WeChatConfig) mergeAccount(accountID string) ResolvedAccount {
	acc := ResolvedAccount{
		AccountID:       accountID,
		Enabled:         w.Enabled,
		ServerURL:       w.ServerURL,
		AuthToken:       w.AuthToken,
		Wxid:            w.Wxid,
		DMPolicy:        w.DMPolicy,
		GroupPolicy:     w.GroupPolicy,
		AllowFrom:       w.AllowFrom,
		GroupAllowFrom:  w.GroupAllowFrom,
		BlockFrom:       w.BlockFrom,
		Nicknames:       w.Nicknames,
		TriggerKeywords: w.TriggerKeywords,
		OpenGroups:      w.OpenGroups,
		AISuffix:        w.AISuffix,
		CooldownMs:      w.CooldownMs,
		MaxPerWindow:    w.MaxPerWindow,
	}

	over, ok := w.Accounts[accountID]
	if !ok {
		return acc
	}

	if over.Enabled != nil {
		acc.Enabled = acc.Enabled && *over.Enabled
	}
	if over.ServerURL != "" {
		acc.ServerURL = over.ServerURL
	}
	if over.AuthToken != "" {
		acc.AuthToken = over.AuthToken
	}
	if over.Wxid != "" {
		acc.Wxid = over.Wxid
	}
	if over.DMPolicy != "" {
		acc.DMPolicy = over.DMPolicy
	}
	if over.GroupPolicy != "" {
		acc.GroupPolicy = over.GroupPolicy
	}
	if len(over.AllowFrom) > 0 {
		acc.AllowFrom = over.AllowFrom
	}
	if len(over.GroupAllowFrom) > 0 {
		acc.GroupAllowFrom = over.GroupAllowFrom
	}
	if len(over.BlockFrom) > 0 {
		acc.BlockFrom = over.BlockFrom
	}
	if len(over.Nicknames) > 0 {
		acc.Nicknames = over.Nicknames
	}
	if len(over.TriggerKeywords) > 0 {
		acc.TriggerKeywords = over.TriggerKeywords
	}
	if len(over.OpenGroups) > 0 {
		acc.OpenGroups = over.OpenGroups
	}
	if over.AISuffix != "" {
		acc.AISuffix = over.AISuffix
	}
	if over.CooldownMs != 0 {
		acc.CooldownMs = over.CooldownMs
	}
	if over.MaxPerWindow != 0 {
		acc.MaxPerWindow = over.MaxPerWindow
	}
	return acc
}
