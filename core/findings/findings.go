// Package findings defines the canonical credential finding model used across
// all keyvet collectors and detectors. Collectors produce RawHit values which
// are normalized into Finding values for detection, enrichment, and encrypted
// persistence. The raw secret itself travels on a separate transient
// Plaintext handle owned by the scan, never on the Finding.
package findings

import "time"

// SourceType identifies which collector produced a hit.
type SourceType string

// Source type constants, one per collector output kind.
const (
	SourceBrowserPassword SourceType = "browser_password"
	SourceFileSecret      SourceType = "file_secret"
	SourceGitSecret       SourceType = "git_secret"
	SourceGitHistory      SourceType = "git_history"
	SourceEnvConfig       SourceType = "env_config"
)

// Issue flag vocabulary attached by the detection battery.
const (
	FlagWeakPassword     = "weak_password"
	FlagShortPassword    = "short_password"
	FlagReusedPassword   = "reused_password"
	FlagGitHistory       = "exposed_in_git_history"
	FlagCommittedToGit   = "committed_to_git"
	FlagPlaintextFile    = "plaintext_file"
	FlagInsecureLocation = "insecure_location"
)

// LocationKind discriminates the Location variants.
type LocationKind string

// Location variant kinds.
const (
	LocFile      LocationKind = "file"
	LocGitFile   LocationKind = "git_file"
	LocGitCommit LocationKind = "git_commit"
	LocBrowser   LocationKind = "browser"
)

// Location pinpoints where a credential was discovered. It is a tagged record:
// Kind selects the variant and the unused fields stay empty. The struct is
// JSON-serialized at the storage boundary.
type Location struct {
	Kind    LocationKind `json:"kind"`
	Path    string       `json:"path,omitempty"`
	Line    int          `json:"line,omitempty"`
	Repo    string       `json:"repo,omitempty"`
	Commit  string       `json:"commit,omitempty"`
	Browser string       `json:"browser,omitempty"`
	Profile string       `json:"profile,omitempty"`
}

// FileLocation builds the {path, line} variant used by file-based hits.
func FileLocation(path string, line int) Location {
	return Location{Kind: LocFile, Path: path, Line: line}
}

// GitFileLocation builds the {repo, path, line} variant used by working-tree
// hits.
func GitFileLocation(repo, path string, line int) Location {
	return Location{Kind: LocGitFile, Repo: repo, Path: path, Line: line}
}

// GitCommitLocation builds the {repo, commit, path} variant used by history
// hits.
func GitCommitLocation(repo, commit, path string) Location {
	return Location{Kind: LocGitCommit, Repo: repo, Commit: commit, Path: path}
}

// BrowserLocation builds the {browser, profile, path} variant used by browser
// password hits.
func BrowserLocation(browser, profile, path string) Location {
	return Location{Kind: LocBrowser, Browser: browser, Profile: profile, Path: path}
}

// IsZero reports whether the location carries no information at all.
func (l Location) IsZero() bool {
	return l == Location{}
}

// RawHit is an unnormalized discovery emitted by a collector. It lives only
// until normalization; the Secret field is the one place plaintext crosses a
// package boundary on its way to the transient handle.
type RawHit struct {
	Source   SourceType
	Location Location
	// Secret is the plaintext value. It may be empty, or a sentinel such as
	// "[ENCRYPTED_AES_GCM_TODO]" when the collector could not recover it.
	Secret   string
	Username string
	Domain   string
	Metadata map[string]any
}

// Finding is the canonical, persistable record about one discovered
// credential occurrence. It never carries the plaintext; SecretHash and
// Preview are the only derivatives of it.
type Finding struct {
	ID       int64      `json:"id,omitempty"`
	Source   SourceType `json:"source_type"`
	Location Location   `json:"location"`
	Domain   string     `json:"domain,omitempty"`
	Username string     `json:"username,omitempty"`
	// SecretHash is the hex SHA-256 of the plaintext bytes. Two findings share
	// a hash iff their plaintext bytes were equal.
	SecretHash string `json:"secret_hash"`
	// Preview is the deterministic mask of the plaintext.
	Preview    string         `json:"preview"`
	Metadata   map[string]any `json:"metadata"`
	IssueFlags []string       `json:"issue_flags"`
	RiskScore  int            `json:"risk_score"`

	AIType         string `json:"ai_type,omitempty"`
	AIServiceGuess string `json:"ai_service_guess,omitempty"`
	AIExplanation  string `json:"ai_explanation,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasFlag reports whether the finding carries the given issue flag.
func (f *Finding) HasFlag(flag string) bool {
	for _, fl := range f.IssueFlags {
		if fl == flag {
			return true
		}
	}
	return false
}

// AddFlag appends an issue flag. Flags form an ordered multiset; callers that
// need at-most-once semantics check HasFlag first.
func (f *Finding) AddFlag(flag string) {
	f.IssueFlags = append(f.IssueFlags, flag)
}
