package api

import (
	"time"

	"github.com/dmitrijs2005/timevault/internal/pow"
)

type CreateSecretRequest struct {
	Ciphertext      string     `json:"ciphertext"`
	IV              string     `json:"iv"`
	AuthTag         string     `json:"auth_tag"`
	UnlockAt        *time.Time `json:"unlock_at,omitempty"`
	UnlockPreset    string     `json:"unlock_preset,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ExpiryPreset    string     `json:"expiry_preset,omitempty"`
	EditToken       string     `json:"edit_token"`
	DecryptToken    string     `json:"decrypt_token"`
	PowProof        *pow.Proof `json:"pow_proof,omitempty"`
	CapabilityToken string     `json:"capability_token,omitempty"`
}

type CreateSecretResponse struct {
	SecretID  string    `json:"secret_id"`
	UnlockAt  time.Time `json:"unlock_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type StatusResponse struct {
	Exists    bool       `json:"exists"`
	Status    string     `json:"status"`
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type RetrieveResponse struct {
	Status      string    `json:"status"`
	Ciphertext  string    `json:"ciphertext"`
	IV          string    `json:"iv"`
	AuthTag     string    `json:"auth_tag"`
	UnlockAt    time.Time `json:"unlock_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

type EditRequest struct {
	UnlockAt     *time.Time `json:"unlock_at,omitempty"`
	UnlockPreset string     `json:"unlock_preset,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ExpiryPreset string     `json:"expiry_preset,omitempty"`
}

type EditResponse struct {
	SecretID  string    `json:"secret_id"`
	UnlockAt  time.Time `json:"unlock_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CapabilityTokenInfo struct {
	Valid              bool       `json:"valid"`
	Tier               string     `json:"tier,omitempty"`
	MaxCiphertextBytes int64      `json:"max_ciphertext_bytes,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Consumed           bool       `json:"consumed"`
	Error              string     `json:"error,omitempty"`
}

type challengeRequest struct {
	PayloadHash    string `json:"payload_hash"`
	CiphertextSize int    `json:"ciphertext_size"`
}

type healthResponse struct {
	Status string `json:"status"`
}
