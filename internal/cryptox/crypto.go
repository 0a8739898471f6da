// Package cryptox holds the client-side AEAD engine and the server-side
// token hashing helpers.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/timevault/internal/codec"
	"github.com/dmitrijs2005/timevault/internal/common"
)

const (
	KeySize   = 32
	IVSize    = 12
	TagSize   = 16
	TokenSize = 32
)

// EncryptedData is the AEAD output in its transport form. All three fields
// are standard base64.
type EncryptedData struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
}

// GeneratedSecret exists only on the creating client. EncryptionKey never
// leaves it except through the share link fragment.
type GeneratedSecret struct {
	EncryptionKey string // hex, 32 bytes
	EditToken     string // hex, 32 bytes
	DecryptToken  string // hex, 32 bytes
	Encrypted     EncryptedData
	PayloadHash   string // hex SHA-256 of ciphertext||iv||tag
}

// Wipe drops the key material references held by s.
func (s *GeneratedSecret) Wipe() {
	s.EncryptionKey = ""
	s.EditToken = ""
	s.DecryptToken = ""
}

// GenerateSecret encrypts plaintext under a freshly drawn key and IV and
// draws the two bearer tokens. Every call draws its own randomness, so
// concurrent calls never share an IV.
func GenerateSecret(plaintext []byte) (*GeneratedSecret, error) {
	key := common.GenerateRandByteArray(KeySize)
	defer common.WipeByteArray(key)
	iv := common.GenerateRandByteArray(IVSize)

	ct, tag, err := Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	sum := PayloadHash(ct, iv, tag)

	return &GeneratedSecret{
		EncryptionKey: codec.EncodeHex(key),
		EditToken:     codec.EncodeHex(common.GenerateRandByteArray(TokenSize)),
		DecryptToken:  codec.EncodeHex(common.GenerateRandByteArray(TokenSize)),
		Encrypted: EncryptedData{
			Ciphertext: codec.EncodeBase64(ct),
			IV:         codec.EncodeBase64(iv),
			AuthTag:    codec.EncodeBase64(tag),
		},
		PayloadHash: codec.EncodeHex(sum[:]),
	}, nil
}

// Encrypt seals plaintext with AES-256-GCM and returns the ciphertext and
// the 16-byte tag separately.
func Encrypt(plaintext, key, iv []byte) (ciphertext, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, nil, fmt.Errorf("iv must be %d bytes, got %d", aead.NonceSize(), len(iv))
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	n := len(sealed) - aead.Overhead()
	return sealed[:n], sealed[n:], nil
}

// Decrypt authenticates and decrypts enc with the hex key. Every failure,
// including malformed input, is reported as common.ErrAuthenticationFailure
// and no plaintext is returned.
func Decrypt(enc EncryptedData, keyHex string) ([]byte, error) {
	key, err := codec.DecodeHex(keyHex)
	if err != nil || len(key) != KeySize {
		return nil, common.ErrAuthenticationFailure
	}
	defer common.WipeByteArray(key)

	ct, err := codec.DecodeBase64(enc.Ciphertext)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	iv, err := codec.DecodeBase64Len(enc.IV, IVSize)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	tag, err := codec.DecodeBase64Len(enc.AuthTag, TagSize)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}

	return Open(ct, iv, tag, key)
}

// Open is the raw-bytes form of Decrypt.
func Open(ciphertext, iv, tag, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil || len(iv) != IVSize || len(tag) != TagSize {
		return nil, common.ErrAuthenticationFailure
	}

	buf := make([]byte, 0, len(ciphertext)+len(tag))
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)

	plaintext, err := aead.Open(nil, iv, buf, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return plaintext, nil
}

// PayloadHash is SHA-256 over ciphertext, iv and tag in that order. The
// order is part of the wire contract between client, PoW and server.
func PayloadHash(ciphertext, iv, tag []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write(ciphertext)
	h.Write(iv)
	h.Write(tag)

	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PayloadHashFromEncoded decodes enc and returns its payload hash as hex.
// The server uses it to bind a PoW proof to the bytes it is about to store.
func PayloadHashFromEncoded(enc EncryptedData) (string, error) {
	ct, err := codec.DecodeBase64(enc.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext: %w", err)
	}
	iv, err := codec.DecodeBase64Len(enc.IV, IVSize)
	if err != nil {
		return "", fmt.Errorf("iv: %w", err)
	}
	tag, err := codec.DecodeBase64Len(enc.AuthTag, TagSize)
	if err != nil {
		return "", fmt.Errorf("auth_tag: %w", err)
	}
	sum := PayloadHash(ct, iv, tag)
	return codec.EncodeHex(sum[:]), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
