package models

import "time"

// Challenge is an issued PoW puzzle bound to one payload hash.
type Challenge struct {
	ID             string
	Nonce          string
	Difficulty     int
	PayloadHash    string
	CiphertextSize int
	ExpiresAt      time.Time
	CreatedAt      time.Time
	Used           bool
}
