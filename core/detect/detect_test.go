package detect

import (
	"testing"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// ---------------------------------------------------------------------------
// Strength
// ---------------------------------------------------------------------------

func TestAnalyzeStrength_WeakAndShort(t *testing.T) {
	s := AnalyzeStrength("abc123")
	if !hasFlag(s.Flags, findings.FlagWeakPassword) {
		t.Fatalf("trivial password not flagged weak: %+v", s)
	}
	if !hasFlag(s.Flags, findings.FlagShortPassword) {
		t.Fatalf("6-char password not flagged short: %+v", s)
	}
}

func TestAnalyzeStrength_StrongPassphrase(t *testing.T) {
	s := AnalyzeStrength("kQ7#vLp9!mXz2&wRf4$tGb")
	if s.Score < 3 {
		t.Fatalf("random 22-char passphrase scored %d", s.Score)
	}
	if hasFlag(s.Flags, findings.FlagShortPassword) {
		t.Fatal("long passphrase flagged short")
	}
	if s.Entropy <= 0 {
		t.Fatalf("entropy = %f, want > 0", s.Entropy)
	}
}

func TestAnalyzeStrength_Empty(t *testing.T) {
	s := AnalyzeStrength("")
	if s.Score != 0 || s.Entropy != 0 || len(s.Flags) != 0 {
		t.Fatalf("empty input should be a zero result: %+v", s)
	}
}

// ---------------------------------------------------------------------------
// Exposure
// ---------------------------------------------------------------------------

func TestExposure(t *testing.T) {
	tests := []struct {
		name    string
		finding findings.Finding
		want    []string
	}{
		{
			name: "git history",
			finding: findings.Finding{
				Source:   findings.SourceGitHistory,
				Location: findings.GitCommitLocation("/repo", "abc", "cfg.env"),
			},
			want: []string{findings.FlagGitHistory},
		},
		{
			name: "git working tree",
			finding: findings.Finding{
				Source:   findings.SourceGitSecret,
				Location: findings.GitFileLocation("/repo", "cfg.env", 1),
			},
			want: []string{findings.FlagCommittedToGit},
		},
		{
			name: "plaintext file in Downloads",
			finding: findings.Finding{
				Source:   findings.SourceFileSecret,
				Location: findings.FileLocation("/home/u/Downloads/keys.txt", 1),
			},
			want: []string{findings.FlagPlaintextFile, findings.FlagInsecureLocation},
		},
		{
			name: "desktop is case-insensitive",
			finding: findings.Finding{
				Source:   findings.SourceFileSecret,
				Location: findings.FileLocation(`C:\Users\u\DESKTOP\pw.txt`, 1),
			},
			want: []string{findings.FlagPlaintextFile, findings.FlagInsecureLocation},
		},
		{
			name: "browser password has no exposure flags",
			finding: findings.Finding{
				Source:   findings.SourceBrowserPassword,
				Location: findings.BrowserLocation("Chrome", "Default", "/x"),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exposure(&tt.finding)
			if len(got) != len(tt.want) {
				t.Fatalf("flags = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("flags = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Reuse
// ---------------------------------------------------------------------------

func TestReuseCounts(t *testing.T) {
	ff := []findings.Finding{
		{SecretHash: "h1"},
		{SecretHash: "h1"},
		{SecretHash: "h2"},
	}
	historical := map[string][]int64{
		"h1": {1, 2, 3}, // consulted but never added to the in-scan count
	}

	counts := ReuseCounts(ff, historical)
	if counts["h1"] != 2 {
		t.Fatalf("h1 count = %d, want the in-scan count 2", counts["h1"])
	}
	if counts["h2"] != 1 {
		t.Fatalf("h2 count = %d, want 1", counts["h2"])
	}
}

// ---------------------------------------------------------------------------
// Scoring
// ---------------------------------------------------------------------------

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		flags  []string
		reuse  int
		want   int
	}{
		{
			name: "nothing", want: 0,
		},
		{
			name:   "sensitive domain weak committed",
			domain: "github.com",
			flags:  []string{findings.FlagWeakPassword, findings.FlagCommittedToGit},
			want:   90,
		},
		{
			name:   "other domain only",
			domain: "example.org",
			want:   10,
		},
		{
			name:  "reused",
			flags: []string{},
			reuse: 2,
			want:  15,
		},
		{
			name:  "heavily reused is cumulative",
			reuse: 5,
			want:  30,
		},
		{
			name:   "clamped at 100",
			domain: "paypal.com",
			flags: []string{
				findings.FlagWeakPassword, findings.FlagShortPassword,
				findings.FlagGitHistory, findings.FlagCommittedToGit,
				findings.FlagPlaintextFile, findings.FlagInsecureLocation,
			},
			reuse: 9,
			want:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := findings.Finding{Domain: tt.domain, IssueFlags: tt.flags}
			got := RiskScore(&f, tt.reuse)
			if got != tt.want {
				t.Fatalf("RiskScore = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Fatalf("score %d outside [0,100]", got)
			}
		})
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
