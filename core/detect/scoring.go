package detect

import (
	"strings"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// sensitiveDomains are substrings that mark a domain as high-value.
var sensitiveDomains = []string{
	"google", "facebook", "twitter", "github", "aws", "azure",
	"bank", "chase", "paypal",
}

// Score contributions. Independent and cumulative; the sum is clamped to
// [0, 100].
const (
	pointsSensitiveDomain = 40
	pointsAnyDomain       = 10
	pointsWeakPassword    = 20
	pointsShortPassword   = 10
	pointsReused          = 15
	pointsHeavilyReused   = 15
	pointsGitHistory      = 20
	pointsCommittedToGit  = 30
	pointsPlaintextFile   = 15
	pointsInsecureLoc     = 10
)

// heavyReuseThreshold is the reuse count at which the extra contribution
// applies.
const heavyReuseThreshold = 5

// RiskScore computes the additive risk score for a finding given its reuse
// count, clamped to [0, 100].
func RiskScore(f *findings.Finding, reuseCount int) int {
	score := 0

	switch {
	case isSensitiveDomain(f.Domain):
		score += pointsSensitiveDomain
	case f.Domain != "":
		score += pointsAnyDomain
	}

	if f.HasFlag(findings.FlagWeakPassword) {
		score += pointsWeakPassword
	}
	if f.HasFlag(findings.FlagShortPassword) {
		score += pointsShortPassword
	}

	if reuseCount > 1 {
		score += pointsReused
	}
	if reuseCount >= heavyReuseThreshold {
		score += pointsHeavilyReused
	}

	if f.HasFlag(findings.FlagGitHistory) {
		score += pointsGitHistory
	}
	if f.HasFlag(findings.FlagCommittedToGit) {
		score += pointsCommittedToGit
	}
	if f.HasFlag(findings.FlagPlaintextFile) {
		score += pointsPlaintextFile
	}
	if f.HasFlag(findings.FlagInsecureLocation) {
		score += pointsInsecureLoc
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func isSensitiveDomain(domain string) bool {
	if domain == "" {
		return false
	}
	for _, d := range sensitiveDomains {
		if strings.Contains(domain, d) {
			return true
		}
	}
	return false
}
