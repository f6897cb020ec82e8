// Package sqlite provides the SQLite-backed pairing allow-store.
package sqlite

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/wxbridge/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS paired_senders (
	sender_id  TEXT NOT NULL,
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL DEFAULT '',
	paired_at  TIMESTAMP NOT NULL,
	expires_at TIMESTAMP,
	PRIMARY KEY (sender_id, channel)
);
`

// PairingStore implements store.PairingStore on a local SQLite database.
// Pending (unapproved) requests live in memory only; approvals persist.
type PairingStore struct {
	db      *sql.DB
	ttlDays int

	mu      sync.Mutex
	pending map[string]store.PendingPairing // code → request
}

// Open creates or opens the pairing database at path.
// ttlDays <= 0 means approvals never expire.
func Open(path string, ttlDays int) (*PairingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pairing db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open pairing db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init pairing schema: %w", err)
	}

	return &PairingStore{
		db:      db,
		ttlDays: ttlDays,
		pending: make(map[string]store.PendingPairing),
	}, nil
}

func (s *PairingStore) Close() error { return s.db.Close() }

// IsPaired reports whether senderID has an unexpired approval for channel.
// Sender ids are matched case-insensitively.
func (s *PairingStore) IsPaired(senderID, channel string) bool {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM paired_senders
		 WHERE sender_id = ? COLLATE NOCASE AND channel = ?
		   AND (expires_at IS NULL OR expires_at > ?)`,
		strings.ToLower(senderID), channel, time.Now(),
	).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// RequestPairing records a pending request and returns its one-time code.
func (s *PairingStore) RequestPairing(senderID, channel, chatID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, p := range s.pending {
		if p.SenderID == senderID && p.Channel == channel {
			return code, nil
		}
	}

	code, err := generateCode(6)
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}

	s.pending[code] = store.PendingPairing{
		Code:        code,
		SenderID:    senderID,
		Channel:     channel,
		ChatID:      chatID,
		RequestedAt: time.Now(),
	}
	return code, nil
}

// Approve promotes the pending request with the given code into the allow-store.
func (s *PairingStore) Approve(code string) (*store.PairedSender, error) {
	s.mu.Lock()
	p, ok := s.pending[code]
	if ok {
		delete(s.pending, code)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown pairing code %q", code)
	}

	now := time.Now()
	entry := store.PairedSender{
		SenderID: p.SenderID,
		Channel:  p.Channel,
		ChatID:   p.ChatID,
		PairedAt: now,
	}
	if s.ttlDays > 0 {
		exp := now.AddDate(0, 0, s.ttlDays)
		entry.ExpiresAt = &exp
	}

	_, err := s.db.Exec(
		`INSERT INTO paired_senders (sender_id, channel, chat_id, paired_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (sender_id, channel) DO UPDATE SET
		   chat_id = excluded.chat_id,
		   paired_at = excluded.paired_at,
		   expires_at = excluded.expires_at`,
		strings.ToLower(entry.SenderID), entry.Channel, entry.ChatID, entry.PairedAt, entry.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("persist pairing: %w", err)
	}
	return &entry, nil
}

// Revoke removes a sender's approval.
func (s *PairingStore) Revoke(senderID, channel string) error {
	_, err := s.db.Exec(
		`DELETE FROM paired_senders WHERE sender_id = ? COLLATE NOCASE AND channel = ?`,
		strings.ToLower(senderID), channel,
	)
	if err != nil {
		return fmt.Errorf("revoke pairing: %w", err)
	}
	return nil
}

// ListPaired returns all approved senders, optionally filtered by channel.
func (s *PairingStore) ListPaired(channel string) ([]store.PairedSender, error) {
	query := `SELECT sender_id, channel, chat_id, paired_at, expires_at FROM paired_senders`
	args := []any{}
	if channel != "" {
		query += ` WHERE channel = ?`
		args = append(args, channel)
	}
	query += ` ORDER BY paired_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list paired: %w", err)
	}
	defer rows.Close()

	var out []store.PairedSender
	for rows.Next() {
		var p store.PairedSender
		if err := rows.Scan(&p.SenderID, &p.Channel, &p.ChatID, &p.PairedAt, &p.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan paired: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPending returns all pending pairing requests.
func (s *PairingStore) ListPending() ([]store.PendingPairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.PendingPairing, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	return out, nil
}

// generateCode returns a numeric code of n digits.
func generateCode(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", d.Int64())
	}
	return b.String(), nil
}

var _ store.PairingStore = (*PairingStore)(nil)
