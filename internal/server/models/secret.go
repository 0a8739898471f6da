// Package models defines server-side data models persisted in the database.
package models

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusAvailable Status = "available"
	StatusRetrieved Status = "retrieved"
	StatusExpired   Status = "expired"
	StatusNotFound  Status = "not_found"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRetrieved || s == StatusExpired
}

// Secret is a stored time-locked ciphertext. Only Status values pending,
// retrieved and expired are persisted; available is derived from the clock.
//
// Ciphertext, IV and AuthTag are nil once the content has been cleared. A
// ciphertext kept in object storage has StorageKey set and Ciphertext nil.
type Secret struct {
	ID             string
	Ciphertext     []byte
	IV             []byte
	AuthTag        []byte
	StorageKey     string
	CiphertextSize int

	UnlockAt  time.Time
	ExpiresAt time.Time
	CreatedAt time.Time

	RetrievedAt *time.Time
	ClearedAt   *time.Time

	// 16-char lookup prefixes and Argon2id hashes; raw tokens are never stored.
	EditTokenPrefix    string
	EditTokenHash      string
	DecryptTokenPrefix string
	DecryptTokenHash   string

	Status Status
}

// StatusAt derives the lifecycle state at now.
func (s *Secret) StatusAt(now time.Time) Status {
	switch {
	case s.Status == StatusRetrieved:
		return StatusRetrieved
	case s.Status == StatusExpired, !now.Before(s.ExpiresAt):
		return StatusExpired
	case now.Before(s.UnlockAt):
		return StatusPending
	default:
		return StatusAvailable
	}
}

// Cleared reports whether the content has been removed.
func (s *Secret) Cleared() bool {
	return s.ClearedAt != nil
}

// ClaimedSecret is the content handed to the single successful retriever.
type ClaimedSecret struct {
	ID          string
	Ciphertext  []byte
	IV          []byte
	AuthTag     []byte
	StorageKey  string
	UnlockAt    time.Time
	ExpiresAt   time.Time
	RetrievedAt time.Time
}

// ClearedSecret identifies a secret whose content a sweep removed.
type ClearedSecret struct {
	ID         string
	StorageKey string
}
