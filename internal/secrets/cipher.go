// Package secrets encrypts and decrypts provider API keys at rest.
//
// The format is "base64(iv):base64(ciphertext)" with AES-256-GCM and a
// PBKDF2-SHA256 derived key. Decrypt tolerates values that were stored
// before encryption was introduced: anything that does not decrypt
// cleanly is treated as an already-plaintext legacy value.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySalt       = "ai-gateway-salt"
	keyIterations = 100000
	keyLength     = 32
	ivLength      = 12
)

// Cipher encrypts and decrypts strings with a key derived from the
// configured master key.
type Cipher struct {
	key []byte
}

func NewCipher(masterKey string) *Cipher {
	return &Cipher{
		key: pbkdf2.Key([]byte(masterKey), []byte(keySalt), keyIterations, keyLength, sha256.New),
	}
}

// Encrypt seals plaintext and returns the storage form "iv:ciphertext".
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. If the value is not in the
// expected encrypted form, it is returned unchanged: a one-time
// migration shim for keys stored as plaintext before encryption existed,
// not a general security posture.
func (c *Cipher) Decrypt(value string) string {
	plaintext, err := c.decrypt(value)
	if err != nil {
		return value
	}
	return plaintext
}

func (c *Cipher) decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("expected iv:ciphertext, got %d parts", len(parts))
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(iv) != ivLength {
		return "", fmt.Errorf("unexpected iv length %d", len(iv))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}
