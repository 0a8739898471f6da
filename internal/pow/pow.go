// Package pow implements the hashcash-style admission puzzle: the issuer
// hands out a nonce and a difficulty bound to a payload hash, and the solver
// searches for a counter whose preimage hash has enough leading zero bits.
//
// The preimage is the string nonce + %016x(counter) + payloadHash. Field
// widths are part of the wire contract; proofs from any client must verify
// bit for bit.
package pow

import (
	"crypto/sha256"
	"fmt"
	"math/bits"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
)

const (
	Algorithm = "sha256"

	// NonceBytes gives a 64 hex char nonce.
	NonceBytes = 32

	// SizeStep and MaxSizeBonus scale difficulty with the ciphertext size.
	SizeStep     = 100_000
	MaxSizeBonus = 4
)

// Challenge is an issued puzzle. PayloadHash and Used are tracked by the
// issuer only.
type Challenge struct {
	ID          string    `json:"challenge_id"`
	Nonce       string    `json:"nonce"`
	Difficulty  int       `json:"difficulty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Algorithm   string    `json:"algorithm"`
	PayloadHash string    `json:"-"`
	Used        bool      `json:"-"`
}

// Proof is a solved challenge as submitted with a create request.
type Proof struct {
	ChallengeID string `json:"challenge_id"`
	Nonce       string `json:"nonce"`
	Counter     uint64 `json:"counter"`
	PayloadHash string `json:"payload_hash"`
}

// Preimage builds the hashed string for counter.
func Preimage(nonce string, counter uint64, payloadHash string) string {
	return fmt.Sprintf("%s%016x%s", nonce, counter, payloadHash)
}

// Hash returns SHA-256 of the preimage for counter.
func Hash(nonce string, counter uint64, payloadHash string) [sha256.Size]byte {
	return sha256.Sum256([]byte(Preimage(nonce, counter, payloadHash)))
}

// LeadingZeroBits counts zero bits from the most significant end of b.
func LeadingZeroBits(b []byte) int {
	n := 0
	for _, c := range b {
		if c != 0 {
			return n + bits.LeadingZeros8(c)
		}
		n += 8
	}
	return n
}

// Meets reports whether hash satisfies difficulty.
func Meets(hash []byte, difficulty int) bool {
	return LeadingZeroBits(hash) >= difficulty
}

// Difficulty returns the work required for a ciphertext of size bytes. It
// never decreases as size grows.
func Difficulty(base, size int) int {
	if size < 0 {
		size = 0
	}
	return base + min(size/SizeStep, MaxSizeBonus)
}

// NewChallenge issues a puzzle for payloadHash with a fresh random nonce.
func NewChallenge(id, payloadHash string, difficulty int, now time.Time, ttl time.Duration) (*Challenge, error) {
	nonce, err := common.MakeRandHexString(NonceBytes)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return &Challenge{
		ID:          id,
		Nonce:       nonce,
		Difficulty:  difficulty,
		ExpiresAt:   now.Add(ttl),
		Algorithm:   Algorithm,
		PayloadHash: payloadHash,
	}, nil
}

// Expired reports whether c can no longer be redeemed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Verify checks proof against the stored challenge and the hash of the
// payload actually submitted for storage. All failures wrap
// common.ErrAdmissionDenied.
func Verify(proof Proof, c *Challenge, submittedPayloadHash string, now time.Time) error {
	switch {
	case c.Used:
		return common.ErrChallengeConsumed
	case c.Expired(now):
		return common.ErrChallengeExpired
	case proof.ChallengeID != c.ID:
		return fmt.Errorf("%w: challenge id mismatch", common.ErrAdmissionDenied)
	case proof.Nonce != c.Nonce:
		return fmt.Errorf("%w: nonce mismatch", common.ErrAdmissionDenied)
	case proof.PayloadHash != c.PayloadHash:
		return fmt.Errorf("%w: payload hash mismatch", common.ErrAdmissionDenied)
	case proof.PayloadHash != submittedPayloadHash:
		return fmt.Errorf("%w: proof is not bound to the submitted payload", common.ErrAdmissionDenied)
	}

	h := Hash(proof.Nonce, proof.Counter, proof.PayloadHash)
	if !Meets(h[:], c.Difficulty) {
		return fmt.Errorf("%w: insufficient proof of work", common.ErrAdmissionDenied)
	}
	return nil
}
