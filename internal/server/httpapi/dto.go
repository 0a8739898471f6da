package httpapi

import (
	"time"

	"github.com/dmitrijs2005/timevault/internal/pow"
)

type challengeRequest struct {
	PayloadHash    string `json:"payload_hash"`
	CiphertextSize int    `json:"ciphertext_size"`
}

type createSecretRequest struct {
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

type createSecretResponse struct {
	SecretID  string    `json:"secret_id"`
	UnlockAt  time.Time `json:"unlock_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type statusResponse struct {
	Exists    bool       `json:"exists"`
	Status    string     `json:"status"`
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type retrieveResponse struct {
	Status      string    `json:"status"`
	Ciphertext  string    `json:"ciphertext"`
	IV          string    `json:"iv"`
	AuthTag     string    `json:"auth_tag"`
	UnlockAt    time.Time `json:"unlock_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

type editRequest struct {
	UnlockAt     *time.Time `json:"unlock_at,omitempty"`
	UnlockPreset string     `json:"unlock_preset,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ExpiryPreset string     `json:"expiry_preset,omitempty"`
}

type editResponse struct {
	SecretID  string    `json:"secret_id"`
	UnlockAt  time.Time `json:"unlock_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type validateResponse struct {
	Valid              bool       `json:"valid"`
	Tier               string     `json:"tier,omitempty"`
	MaxCiphertextBytes int64      `json:"max_ciphertext_bytes,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Consumed           bool       `json:"consumed"`
	Error              string     `json:"error,omitempty"`
}

type errorResponse struct {
	Error      string     `json:"error"`
	Message    string     `json:"message"`
	Constraint string     `json:"constraint,omitempty"`
	Status     string     `json:"status,omitempty"`
	UnlockAt   *time.Time `json:"unlock_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type feedbackRequest struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

type feedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}
