package vault

import (
	"bytes"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

// ---------------------------------------------------------------------------
// Cipher tests
// ---------------------------------------------------------------------------

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		value string
	}{
		{name: "short", value: "hi"},
		{name: "typical preview", value: "hu***r2"},
		{name: "unicode", value: "pässwörd-日本"},
		{name: "long", value: string(bytes.Repeat([]byte("x"), 4096))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.EncryptString(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if got := c.Decrypt(blob); got != tt.value {
				t.Fatalf("Decrypt(Encrypt(%q)) = %q", tt.value, got)
			}
		})
	}
}

func TestCipher_EmptyValues(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	blob, err := c.EncryptString("")
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) != 0 {
		t.Fatalf("Encrypt(\"\") produced %d bytes, want 0", len(blob))
	}
	if got := c.Decrypt(nil); got != "" {
		t.Fatalf("Decrypt(nil) = %q, want empty string", got)
	}
}

func TestCipher_FreshNonces(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	a, _ := c.EncryptString("same value")
	b, _ := c.EncryptString("same value")
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same value produced identical ciphertext")
	}
}

func TestCipher_TamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	blob, _ := c.EncryptString("original")
	blob[len(blob)-1] ^= 0xff

	if got := c.Decrypt(blob); got != DecryptFailed {
		t.Fatalf("tampered blob decrypted to %q, want the sentinel", got)
	}
}

func TestCipher_TruncatedBlob(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Decrypt([]byte{0x01, 0x02}); got != DecryptFailed {
		t.Fatalf("truncated blob decrypted to %q, want the sentinel", got)
	}
}

func TestNewCipher_RejectsBadKeySize(t *testing.T) {
	if _, err := NewCipher(make([]byte, 16)); err == nil {
		t.Fatal("expected an error for a 16-byte key")
	}
}

// ---------------------------------------------------------------------------
// Master key lifecycle
// ---------------------------------------------------------------------------

func TestLoadMasterKey_GenerateAndReload(t *testing.T) {
	dir := t.TempDir()

	key1, err := LoadMasterKey(dir, InsecureSealer{})
	if err != nil {
		t.Fatal(err)
	}
	if len(key1) != 32 {
		t.Fatalf("generated key is %d bytes", len(key1))
	}

	key2, err := LoadMasterKey(dir, InsecureSealer{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key1, key2) {
		t.Fatal("reload returned a different key")
	}
}

// failingSealer refuses to unseal, simulating a DPAPI failure (different
// user, corrupted blob).
type failingSealer struct{}

func (failingSealer) Seal(key []byte) ([]byte, error) { return key, nil }
func (failingSealer) Unseal([]byte) ([]byte, error) {
	return nil, errors.New("access denied")
}

func TestLoadMasterKey_UnsealFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, KeyFileName)
	if err := os.WriteFile(keyPath, []byte("sealed-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadMasterKey(dir, failingSealer{})
	if !errors.Is(err, ErrUnsealFailed) {
		t.Fatalf("err = %v, want ErrUnsealFailed", err)
	}

	// The existing key file must not have been overwritten: regenerating
	// would orphan all existing ciphertext.
	data, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "sealed-bytes" {
		t.Fatal("key file was rewritten after an unseal failure")
	}
}

func TestLoadMasterKey_RejectsWrongLength(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, KeyFileName), []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMasterKey(dir, InsecureSealer{}); !errors.Is(err, ErrUnsealFailed) {
		t.Fatalf("err = %v, want ErrUnsealFailed for a wrong-length key", err)
	}
}
