package vault

import "errors"

// Sealer protects the master key at rest using a user-scoped OS primitive.
// Seal and Unseal must round-trip: Unseal(Seal(k)) == k for the same OS user.
type Sealer interface {
	Seal(key []byte) ([]byte, error)
	Unseal(sealed []byte) ([]byte, error)
}

// ErrNoPlatformSealer is returned by NewSealer when the platform has no
// user-scoped data-protection primitive and the insecure fallback was not
// explicitly opted into.
var ErrNoPlatformSealer = errors.New(
	"no platform key-protection primitive; set allow_insecure_keystore to store the key unsealed (test environments only)")

// InsecureSealer stores the key bytes verbatim. It exists for platforms
// without a data-protection primitive and for tests; NewSealer only hands it
// out behind an explicit opt-in.
type InsecureSealer struct{}

// Seal returns the key unchanged.
func (InsecureSealer) Seal(key []byte) ([]byte, error) {
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// Unseal returns the sealed bytes unchanged.
func (InsecureSealer) Unseal(sealed []byte) ([]byte, error) {
	out := make([]byte, len(sealed))
	copy(out, sealed)
	return out, nil
}
