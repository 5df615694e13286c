//go:build !windows

package vault

import "errors"

// NewSealer returns the key sealer for platforms without a user-scoped
// data-protection primitive. The only option here is the insecure
// store-in-the-clear fallback, which callers must opt into explicitly;
// without the opt-in the agent refuses to run rather than silently
// downgrading.
func NewSealer(allowInsecure bool) (Sealer, error) {
	if !allowInsecure {
		return nil, ErrNoPlatformSealer
	}
	return InsecureSealer{}, nil
}

// UnprotectBrowserValue cannot unseal DPAPI blobs off-Windows.
func UnprotectBrowserValue(blob []byte) ([]byte, error) {
	return nil, errors.New("browser credential unseal requires Windows DPAPI")
}
