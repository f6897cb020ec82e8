// Package store defines the storage interfaces consumed by the bridge.
package store

import "time"

// PairedSender is one approved sender entry in the pairing allow-store.
type PairedSender struct {
	SenderID  string
	Channel   string
	ChatID    string
	PairedAt  time.Time
	ExpiresAt *time.Time
}

// PendingPairing is an unapproved pairing request awaiting an owner decision.
type PendingPairing struct {
	Code        string
	SenderID    string
	Channel     string
	ChatID      string
	RequestedAt time.Time
}

// PairingStore is the externally maintained allow-store consulted by the
// access-policy gate for "pairing" and "allowlist" modes.
type PairingStore interface {
	// IsPaired reports whether senderID has an unexpired approval for channel.
	IsPaired(senderID, channel string) bool

	// RequestPairing records a pending request and returns its one-time code.
	// Repeated requests from the same sender return the existing code.
	RequestPairing(senderID, channel, chatID string) (string, error)

	// Approve promotes the pending request with the given code into the
	// allow-store.
	Approve(code string) (*PairedSender, error)

	// Revoke removes a sender's approval.
	Revoke(senderID, channel string) error

	// ListPaired returns all approved senders, optionally filtered by channel
	// (empty channel = all).
	ListPaired(channel string) ([]PairedSender, error)

	// ListPending returns all pending pairing requests.
	ListPending() ([]PendingPairing, error)

	Close() error
}
