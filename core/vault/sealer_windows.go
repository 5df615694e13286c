//go:build windows

package vault

import (
	"fmt"

	"github.com/billgraziano/dpapi"
)

// dpapiSealer protects the master key with the Windows Data Protection API,
// scoped to the current user.
type dpapiSealer struct{}

func (dpapiSealer) Seal(key []byte) ([]byte, error) {
	sealed, err := dpapi.EncryptBytes(key)
	if err != nil {
		return nil, fmt.Errorf("dpapi encrypt: %w", err)
	}
	return sealed, nil
}

func (dpapiSealer) Unseal(sealed []byte) ([]byte, error) {
	key, err := dpapi.DecryptBytes(sealed)
	if err != nil {
		return nil, fmt.Errorf("dpapi decrypt: %w", err)
	}
	return key, nil
}

// NewSealer returns the DPAPI sealer. The allowInsecure flag is ignored on
// Windows, where the platform primitive is always available.
func NewSealer(allowInsecure bool) (Sealer, error) {
	return dpapiSealer{}, nil
}

// UnprotectBrowserValue unseals a DPAPI-protected browser credential blob.
// Chromium used raw DPAPI for password_value before the v10 per-profile key
// scheme; those rows unseal with the same primitive as the master key.
func UnprotectBrowserValue(blob []byte) ([]byte, error) {
	return dpapi.DecryptBytes(blob)
}
