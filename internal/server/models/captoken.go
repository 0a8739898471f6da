package models

import "time"

// CapabilityToken is a single-use admission token that bypasses PoW and
// raises the size and horizon limits to those of its tier.
type CapabilityToken struct {
	ID                 string
	TokenPrefix        string
	TokenHash          string
	Tier               string
	MaxCiphertextBytes int64
	MaxExpiry          time.Duration
	Note               string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	ConsumedAt         *time.Time
	ConsumedBySecretID string
}

func (t *CapabilityToken) Consumed() bool {
	return t.ConsumedAt != nil
}
