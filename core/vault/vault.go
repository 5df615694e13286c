// Package vault owns the agent's at-rest cryptography: the 256-bit master
// key, its OS-assisted sealing on disk, and the per-value AES-GCM cipher used
// by the storage layer for sensitive finding fields.
//
// The master key is generated once on first init and must survive for the
// lifetime of the install — regenerating it would orphan every ciphertext in
// the store, so an unsealable key file is a fatal error, never a reset.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// KeyFileName is the master key file under the app-data directory.
const KeyFileName = "master.key"

// keySize is the AES-256 key length in bytes.
const keySize = 32

// nonceSize is the AES-GCM nonce length in bytes. Stored values are laid out
// as nonce || ciphertext || tag.
const nonceSize = 12

// DecryptFailed is returned by Cipher.Decrypt in place of a value whose
// authentication failed, so one corrupted row never aborts a list query.
const DecryptFailed = "[DECRYPTION FAILED]"

// ErrUnsealFailed wraps a sealer failure on an existing key file. Callers
// must treat it as fatal: silently regenerating the key would orphan all
// existing ciphertext.
var ErrUnsealFailed = errors.New("master key cannot be unsealed")

// LoadMasterKey loads the sealed master key from <appData>/master.key,
// unsealing it with sealer. When no key file exists yet, a fresh 32-byte key
// is drawn from the OS CSPRNG, sealed, and written with owner-only
// permissions.
func LoadMasterKey(appData string, sealer Sealer) ([]byte, error) {
	path := filepath.Join(appData, KeyFileName)

	sealed, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, uerr := sealer.Unseal(sealed)
		if uerr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsealFailed, path, uerr)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("%w: %s: unsealed key is %d bytes, want %d",
				ErrUnsealFailed, path, len(key), keySize)
		}
		return key, nil

	case errors.Is(err, os.ErrNotExist):
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating master key: %w", err)
		}
		sealed, err := sealer.Seal(key)
		if err != nil {
			return nil, fmt.Errorf("sealing master key: %w", err)
		}
		if err := os.WriteFile(path, sealed, 0o600); err != nil {
			return nil, fmt.Errorf("writing master key: %w", err)
		}
		return key, nil

	default:
		return nil, fmt.Errorf("reading master key %s: %w", path, err)
	}
}

// Cipher encrypts and decrypts individual values under the master key.
// It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte master key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("master key is %d bytes, want %d", len(key), keySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initialising AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initialising GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// nonce || ciphertext || tag. Empty input yields empty output.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("drawing nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// EncryptString is Encrypt over a string value.
func (c *Cipher) EncryptString(plaintext string) ([]byte, error) {
	return c.Encrypt([]byte(plaintext))
}

// Decrypt opens a nonce || ciphertext || tag blob. Empty input yields the
// empty string; authentication failure yields the DecryptFailed sentinel
// rather than an error so callers can keep iterating rows.
func (c *Cipher) Decrypt(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}
	if len(blob) < nonceSize {
		return DecryptFailed
	}
	plaintext, err := c.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return DecryptFailed
	}
	return string(plaintext)
}
