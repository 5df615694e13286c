package patterns

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// entropyThreshold is the minimum Shannon entropy (bits per character) for a
// candidate string to be flagged as a probable secret.
const entropyThreshold = 4.5

// contextBoostReduction is subtracted from the threshold when the line
// containing a candidate includes a secret-suggestive variable name.
const contextBoostReduction = 0.5

// minCandidateLen is the minimum candidate length; shorter tokens are noise.
const minCandidateLen = 16

// entropyPatternName labels hits produced by the entropy matcher.
const entropyPatternName = "High Entropy String"

// entropyScore is the baseline score recorded for entropy hits.
const entropyScore = 5

// secretHints lower the threshold when present on the candidate's line.
var secretHints = []string{
	"password", "secret", "key", "token", "credential", "api_key", "private",
}

var (
	base64Re = regexp.MustCompile(`[A-Za-z0-9+/=]{20,}`)
	hexRe    = regexp.MustCompile(`[0-9a-fA-F]{16,}`)
)

// scanEntropy extracts candidate strings line by line (quoted values, base64
// blobs, hex runs), measures their Shannon entropy, and emits hits for
// candidates above the effective threshold.
func scanEntropy(path string, content []byte) []findings.RawHit {
	var hits []findings.RawHit
	lines := strings.Split(string(content), "\n")

	for idx, line := range lines {
		lineLower := strings.ToLower(line)
		effective := entropyThreshold
		if hasSecretContext(lineLower) {
			effective -= contextBoostReduction
		}

		seen := make(map[string]struct{})
		emit := func(candidate string) {
			if len(candidate) < minCandidateLen || isLikelyNotSecret(candidate) {
				return
			}
			if _, dup := seen[candidate]; dup {
				return
			}
			seen[candidate] = struct{}{}
			if ShannonEntropy(candidate) < effective {
				return
			}
			hits = append(hits, findings.RawHit{
				Source:   findings.SourceFileSecret,
				Location: findings.FileLocation(path, idx+1),
				Secret:   candidate,
				Metadata: map[string]any{
					"pattern_name": entropyPatternName,
					"context":      truncate(strings.TrimSpace(line), maxContextLen),
					"score":        entropyScore,
				},
			})
		}

		extractQuoted(line, emit)
		for _, m := range base64Re.FindAllString(line, -1) {
			emit(m)
		}
		for _, m := range hexRe.FindAllString(line, -1) {
			emit(m)
		}
	}
	return hits
}

// ShannonEntropy calculates the Shannon entropy of a string in bits per
// character. Higher values indicate more randomness. Exported for testing.
func ShannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0.0
	}
	freq := make(map[rune]float64)
	for _, c := range s {
		freq[c]++
	}
	length := float64(len([]rune(s)))
	var entropy float64
	for _, count := range freq {
		p := count / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// hasSecretContext reports whether the (lowercased) line contains any
// secret-suggestive variable names.
func hasSecretContext(lineLower string) bool {
	for _, hint := range secretHints {
		if strings.Contains(lineLower, hint) {
			return true
		}
	}
	return false
}

// extractQuoted finds single- and double-quoted strings of candidate length
// and passes them to emit.
func extractQuoted(line string, emit func(string)) {
	for _, quote := range []byte{'"', '\''} {
		i := 0
		for i < len(line) {
			start := strings.IndexByte(line[i:], quote)
			if start == -1 {
				break
			}
			start += i
			end := strings.IndexByte(line[start+1:], quote)
			if end == -1 {
				break
			}
			end += start + 1
			if value := line[start+1 : end]; len(value) >= minCandidateLen {
				emit(value)
			}
			i = end + 1
		}
	}
}

// isLikelyNotSecret filters common false positives: URLs and all-lowercase
// dictionary-like words.
func isLikelyNotSecret(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	for _, r := range s {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
