package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// ---------------------------------------------------------------------------
// RuleClassifier
// ---------------------------------------------------------------------------

func TestRuleClassifier(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		wantType string
		wantSvc  string
	}{
		{
			name:     "aws pattern",
			metadata: map[string]any{"pattern_name": "AWS Access Key"},
			wantType: TypeAPIKey, wantSvc: "AWS",
		},
		{
			name:     "slack pattern",
			metadata: map[string]any{"pattern_name": "Slack Token"},
			wantType: TypeAPIKey, wantSvc: "Slack",
		},
		{
			name:     "private key pattern",
			metadata: map[string]any{"pattern_name": "Private Key"},
			wantType: TypeSSHKey, wantSvc: "SSH",
		},
		{
			name:     "github origin",
			metadata: map[string]any{"origin": "https://github.com/login"},
			wantType: TypePassword, wantSvc: "GitHub",
		},
		{
			name:     "google origin",
			metadata: map[string]any{"origin": "https://accounts.google.com"},
			wantType: TypePassword, wantSvc: "Google",
		},
		{
			name:     "unknown origin is still a password",
			metadata: map[string]any{"origin": "https://intranet.corp"},
			wantType: TypePassword, wantSvc: "Unknown",
		},
		{
			name:     "no signals",
			metadata: map[string]any{},
			wantType: TypeUnknown, wantSvc: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RuleClassifier{}.Classify(tt.metadata)
			if got.Type != tt.wantType || got.ServiceGuess != tt.wantSvc {
				t.Fatalf("Classify = %+v, want {%s %s}", got, tt.wantType, tt.wantSvc)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RuleExplainer
// ---------------------------------------------------------------------------

func TestRuleExplainer_Tiers(t *testing.T) {
	tests := []struct {
		score      int
		wantPrefix string
	}{
		{score: 95, wantPrefix: "CRITICAL"},
		{score: 60, wantPrefix: "HIGH"},
		{score: 20, wantPrefix: "INFO"},
	}
	for _, tt := range tests {
		f := findings.Finding{RiskScore: tt.score, IssueFlags: []string{findings.FlagWeakPassword}}
		got := RuleExplainer{}.Explain(context.Background(), f)
		if !strings.HasPrefix(got, tt.wantPrefix) {
			t.Fatalf("score %d: explanation %q, want prefix %s", tt.score, got, tt.wantPrefix)
		}
		if !strings.Contains(got, findings.FlagWeakPassword) {
			t.Fatalf("explanation should name the issue flags: %q", got)
		}
	}
}

// ---------------------------------------------------------------------------
// LLMExplainer
// ---------------------------------------------------------------------------

type fakeProvider struct {
	content string
	err     error
	lastMsg []Message
}

func (p *fakeProvider) Complete(_ context.Context, messages []Message) (*Response, error) {
	p.lastMsg = messages
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Content: p.content}, nil
}

func TestLLMExplainer_UsesProviderOutput(t *testing.T) {
	p := &fakeProvider{content: "Rotate this token now."}
	e := NewLLMExplainer(p, 600)

	f := findings.Finding{
		Source:    findings.SourceFileSecret,
		Preview:   "xo***ef",
		RiskScore: 70,
		Metadata:  map[string]any{"pattern_name": "Slack Token"},
	}
	got := e.Explain(context.Background(), f)
	if got != "Rotate this token now." {
		t.Fatalf("explanation = %q", got)
	}

	// The prompt must never carry anything but the masked preview.
	for _, m := range p.lastMsg {
		if strings.Contains(m.Content, "xoxb-") {
			t.Fatalf("prompt leaks raw secret material: %q", m.Content)
		}
	}
}

func TestLLMExplainer_FallsBackOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited upstream")}
	e := NewLLMExplainer(p, 600)

	f := findings.Finding{RiskScore: 85, IssueFlags: []string{findings.FlagCommittedToGit}}
	got := e.Explain(context.Background(), f)
	if !strings.HasPrefix(got, "CRITICAL") {
		t.Fatalf("fallback text = %q, want the rule-based explanation", got)
	}
}

func TestLLMExplainer_FallsBackOnEmptyContent(t *testing.T) {
	p := &fakeProvider{content: "   "}
	e := NewLLMExplainer(p, 600)

	f := findings.Finding{RiskScore: 50}
	if got := e.Explain(context.Background(), f); !strings.HasPrefix(got, "HIGH") {
		t.Fatalf("fallback text = %q", got)
	}
}
