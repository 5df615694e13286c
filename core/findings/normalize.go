package findings

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize converts a RawHit into a canonical Finding plus the transient
// plaintext handle. It computes the secret hash and preview, lowercase-trims
// the domain, and copies producer metadata through verbatim; this is the only
// place producer fields enter the canonical record.
//
// A hit with no source type or no location is malformed and rejected; the
// caller logs and drops it without aborting the scan.
func Normalize(raw RawHit) (Finding, *Plaintext, error) {
	if raw.Source == "" {
		return Finding{}, nil, fmt.Errorf("raw hit has no source type")
	}
	if raw.Location.IsZero() {
		return Finding{}, nil, fmt.Errorf("raw hit has no location")
	}

	domain := raw.Domain
	if domain != "" {
		domain = strings.ToLower(strings.TrimSpace(domain))
	}

	meta := raw.Metadata
	if meta == nil {
		meta = make(map[string]any)
	}

	f := Finding{
		Source:     raw.Source,
		Location:   raw.Location,
		Domain:     domain,
		Username:   raw.Username,
		SecretHash: HashSecret(raw.Secret),
		Preview:    MaskSecret(raw.Secret),
		Metadata:   meta,
		IssueFlags: []string{},
	}
	return f, NewPlaintext(raw.Secret), nil
}

// HashSecret returns the hex SHA-256 of the plaintext's UTF-8 bytes. Equal
// byte sequences always hash equal; this is the upsert and reuse identity.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", sum)
}

// MaskSecret returns the deterministic preview of a plaintext: values of four
// characters or fewer are fully masked, longer values keep the first and last
// two characters around a run of asterisks.
func MaskSecret(secret string) string {
	r := []rune(secret)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}
