// Package detect is the post-normalization detection battery: password
// strength, exposure flags, in-scan reuse counting, and the additive risk
// score. Strength is the only stage that needs the transient plaintext; the
// rest operate on the canonical finding alone.
package detect

import (
	"strings"

	zxcvbn "github.com/ccojocar/zxcvbn-go"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// shortPasswordLen is the length below which a secret is flagged short.
const shortPasswordLen = 8

// weakScoreMax is the highest zxcvbn score still flagged weak.
const weakScoreMax = 1

// Strength holds the result of analysing one plaintext.
type Strength struct {
	// Score is the zxcvbn 0–4 estimate.
	Score int
	// Entropy is the estimated guess entropy in bits.
	Entropy float64
	Flags   []string
}

// AnalyzeStrength estimates the strength of a raw secret. Empty input yields
// a zero Strength with no flags. The caller is responsible for only invoking
// this while the plaintext handle is still live.
func AnalyzeStrength(secret string) Strength {
	if secret == "" {
		return Strength{}
	}
	res := zxcvbn.PasswordStrength(secret, nil)

	s := Strength{Score: res.Score, Entropy: res.Entropy}
	if res.Score <= weakScoreMax {
		s.Flags = append(s.Flags, findings.FlagWeakPassword)
	}
	if len(secret) < shortPasswordLen {
		s.Flags = append(s.Flags, findings.FlagShortPassword)
	}
	return s
}

// Exposure derives exposure flags from the finding alone: how the secret was
// found and where it lives on disk.
func Exposure(f *findings.Finding) []string {
	var flags []string

	switch f.Source {
	case findings.SourceGitHistory:
		flags = append(flags, findings.FlagGitHistory)
	case findings.SourceGitSecret:
		flags = append(flags, findings.FlagCommittedToGit)
	case findings.SourceFileSecret:
		flags = append(flags, findings.FlagPlaintextFile)
	}

	path := strings.ToLower(f.Location.Path)
	if strings.Contains(path, "desktop") || strings.Contains(path, "downloads") {
		flags = append(flags, findings.FlagInsecureLocation)
	}
	return flags
}

// ReuseCounts counts secret-hash occurrences within the current scan. The
// historical groups from storage are consulted but never added to the count:
// the upsert collapses identical hashes to one row, so adding stored
// occurrences would double-count the very findings being persisted.
func ReuseCounts(ff []findings.Finding, historical map[string][]int64) map[string]int {
	counts := make(map[string]int, len(ff))
	for i := range ff {
		counts[ff[i].SecretHash]++
	}
	_ = historical
	return counts
}
