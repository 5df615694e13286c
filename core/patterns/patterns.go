// Package patterns implements regex-based secret detection over file content.
// It carries the fixed built-in pattern table, the text-eligibility gate, the
// directory walker with its ignore set, and an optional Shannon-entropy
// matcher for high-entropy strings. All detection output is expressed as
// findings.RawHit values of kind file_secret; collectors relabel them.
package patterns

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// maxFileSize is the largest file the detector will open (5 MiB).
const maxFileSize = 5 * 1024 * 1024

// maxContextLen caps the stored match-context line length.
const maxContextLen = 100

// Pattern is one secret-detection rule: a name, a compiled expression, and a
// baseline score recorded in hit metadata.
type Pattern struct {
	Name  string
	Re    *regexp.Regexp
	Score int
}

// Builtin returns the fixed built-in pattern table.
//
// The secret value of a match is the last capturing group when the pattern
// has groups, and the full match otherwise — so any pattern added here must
// either keep its secret in the last group or use only non-capturing groups.
func Builtin() []Pattern {
	return []Pattern{
		{
			Name:  "AWS Access Key",
			Re:    regexp.MustCompile(`(?:AKIA|ASIA)[0-9A-Z]{16}`),
			Score: 10,
		},
		{
			Name:  "Private Key",
			Re:    regexp.MustCompile(`-----BEGIN (?:RSA|DSA|EC|OPENSSH|PRIVATE) KEY-----`),
			Score: 10,
		},
		{
			Name:  "Generic Secret",
			Re:    regexp.MustCompile(`(?i)(api_key|apikey|secret|token|password)\s*[=:]+\s*['"]?([A-Za-z0-9_-]{16,})['"]?`),
			Score: 5,
		},
		{
			Name:  "Slack Token",
			Re:    regexp.MustCompile(`xox[baprs]-([0-9a-zA-Z]{10,48})`),
			Score: 10,
		},
	}
}

// ignoreDirs are directory names never descended into during walks.
var ignoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
}

// IgnoredDir reports whether a directory name is in the walk ignore set.
func IgnoredDir(name string) bool { return ignoreDirs[name] }

// Detector runs a pattern set (and optionally the entropy matcher) against
// files and raw content.
type Detector struct {
	patterns []Pattern
	entropy  bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithEntropy enables the supplemental Shannon-entropy matcher. It is off by
// default so the fixed pattern table alone determines output.
func WithEntropy(on bool) Option {
	return func(d *Detector) { d.entropy = on }
}

// WithExtraPatterns appends custom patterns (e.g. from a rules file) after
// the built-in table.
func WithExtraPatterns(ps []Pattern) Option {
	return func(d *Detector) { d.patterns = append(d.patterns, ps...) }
}

// NewDetector creates a Detector loaded with the built-in pattern table.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{patterns: Builtin()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Patterns returns the detector's pattern table in evaluation order.
func (d *Detector) Patterns() []Pattern { return d.patterns }

// ScanDir walks root and pattern-scans every text-eligible file, returning
// file_secret hits. Directories in the ignore set are never descended; errors
// opening or reading individual files are swallowed and the walk continues.
func (d *Detector) ScanDir(root string) []findings.RawHit {
	var hits []findings.RawHit
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path != root && IgnoredDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		hits = append(hits, d.ScanFile(path)...)
		return nil
	})
	return hits
}

// ScanFile applies the size and text gates to path, then scans its content.
// All per-file errors yield an empty result.
func (d *Detector) ScanFile(path string) []findings.RawHit {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > maxFileSize {
		return nil
	}
	if !IsTextFile(path) {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return d.ScanContent(path, content)
}

// ScanContent runs every pattern against content and returns file_secret hits
// with 1-based line attribution and a trimmed, truncated context line.
func (d *Detector) ScanContent(path string, content []byte) []findings.RawHit {
	var hits []findings.RawHit
	lines := strings.Split(string(content), "\n")

	for _, p := range d.patterns {
		locs := p.Re.FindAllSubmatchIndex(content, -1)
		for _, loc := range locs {
			secret := extractSecret(p.Re, content, loc)
			lineNum := lineNumber(content, loc[0])

			context := ""
			if lineNum-1 < len(lines) {
				context = truncate(strings.TrimSpace(lines[lineNum-1]), maxContextLen)
			}

			hits = append(hits, findings.RawHit{
				Source:   findings.SourceFileSecret,
				Location: findings.FileLocation(path, lineNum),
				Secret:   secret,
				Metadata: map[string]any{
					"pattern_name": p.Name,
					"context":      context,
					"score":        p.Score,
				},
			})
		}
	}

	if d.entropy {
		hits = append(hits, scanEntropy(path, content)...)
	}
	return hits
}

// MatchLine tests a single line against every pattern and returns the first
// match per pattern as (pattern, secret) pairs. Used by the git history
// scanner, which evaluates added diff lines one at a time.
func (d *Detector) MatchLine(line string) []LineMatch {
	var out []LineMatch
	content := []byte(line)
	for _, p := range d.patterns {
		loc := p.Re.FindSubmatchIndex(content)
		if loc == nil {
			continue
		}
		out = append(out, LineMatch{
			Pattern: p,
			Secret:  extractSecret(p.Re, content, loc),
		})
	}
	return out
}

// LineMatch is one pattern match on a single line.
type LineMatch struct {
	Pattern Pattern
	Secret  string
}

// extractSecret applies the extraction rule to a submatch index slice: the
// last capturing group if the pattern has groups, else the full match.
func extractSecret(re *regexp.Regexp, content []byte, loc []int) string {
	n := re.NumSubexp()
	if n > 0 {
		start, end := loc[2*n], loc[2*n+1]
		if start >= 0 {
			return string(content[start:end])
		}
	}
	return string(content[loc[0]:loc[1]])
}

// lineNumber returns the 1-based line of a byte offset by counting newline
// bytes strictly before it.
func lineNumber(content []byte, offset int) int {
	return bytes.Count(content[:offset], []byte("\n")) + 1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
