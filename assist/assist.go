// Package assist provides the pluggable enrichment hooks applied to
// high-risk findings: classification of the credential kind and a
// human-readable explanation with remediation guidance. The reference
// classifier is rule-based; the explainer can be backed by an LLM provider
// and degrades to rule-based text when the provider is absent or failing.
//
// Enrichment never sees the raw secret. Classification reads producer
// metadata; explanation reads the canonical finding.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// Credential type vocabulary returned by classifiers.
const (
	TypePassword      = "password"
	TypeAPIKey        = "api_key"
	TypeSessionCookie = "session_cookie"
	TypeSSHKey        = "ssh_key"
	TypeDBConnection  = "db_connection"
	TypeUnknown       = "unknown"
)

// Classification is the result of classifying one finding's metadata.
type Classification struct {
	Type         string
	ServiceGuess string
}

// Classifier decides the credential type and likely service from producer
// metadata. Any implementation satisfying the signature is compliant.
type Classifier interface {
	Classify(metadata map[string]any) Classification
}

// Explainer produces a free-form explanation for a finding. Output is never
// trusted to be bit-stable.
type Explainer interface {
	Explain(ctx context.Context, f findings.Finding) string
}

// RuleClassifier is the reference rule-based classifier over pattern_name and
// origin substrings.
type RuleClassifier struct{}

// Classify applies the built-in heuristics.
func (RuleClassifier) Classify(metadata map[string]any) Classification {
	patternName, _ := metadata["pattern_name"].(string)
	origin, _ := metadata["origin"].(string)

	switch {
	case strings.Contains(patternName, "AWS"):
		return Classification{Type: TypeAPIKey, ServiceGuess: "AWS"}
	case strings.Contains(patternName, "Slack"):
		return Classification{Type: TypeAPIKey, ServiceGuess: "Slack"}
	case strings.Contains(patternName, "Private Key"):
		return Classification{Type: TypeSSHKey, ServiceGuess: "SSH"}
	}

	if origin != "" {
		switch {
		case strings.Contains(origin, "github.com"):
			return Classification{Type: TypePassword, ServiceGuess: "GitHub"}
		case strings.Contains(origin, "google.com"):
			return Classification{Type: TypePassword, ServiceGuess: "Google"}
		default:
			return Classification{Type: TypePassword, ServiceGuess: "Unknown"}
		}
	}

	return Classification{Type: TypeUnknown, ServiceGuess: "Unknown"}
}

// RuleExplainer is the reference explainer: severity-tiered text built from
// the risk score and issue flags.
type RuleExplainer struct{}

// Explain renders the rule-based explanation.
func (RuleExplainer) Explain(_ context.Context, f findings.Finding) string {
	flags := strings.Join(f.IssueFlags, ", ")
	switch {
	case f.RiskScore > 80:
		return fmt.Sprintf("CRITICAL: This credential has a risk score of %d. Issues: %s. Rotate immediately.", f.RiskScore, flags)
	case f.RiskScore > 40:
		return fmt.Sprintf("HIGH: Risk score %d. Issues: %s. Consider rotating.", f.RiskScore, flags)
	default:
		return fmt.Sprintf("INFO: Risk score %d. Issues: %s.", f.RiskScore, flags)
	}
}
