package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// defaultRequestsPerMinute bounds LLM traffic so a large scan cannot flood
// the provider.
const defaultRequestsPerMinute = 30

// LLMExplainer generates explanations through an LLM Provider, rate-limited,
// with graceful degradation to the rule-based text when a call fails. It
// never includes the raw secret in a prompt; the masked preview and the
// finding's flags are the only secret-adjacent material sent, and only to the
// configured endpoint.
type LLMExplainer struct {
	provider Provider
	fallback RuleExplainer
	limiter  *rate.Limiter
}

// NewLLMExplainer wraps a provider. requestsPerMinute <= 0 uses the default.
func NewLLMExplainer(provider Provider, requestsPerMinute int) *LLMExplainer {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &LLMExplainer{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

// Explain asks the provider for a short remediation-focused explanation of
// the finding. Provider or limiter failures fall back to the rule-based
// explainer so enrichment never blocks a scan.
func (e *LLMExplainer) Explain(ctx context.Context, f findings.Finding) string {
	if err := e.limiter.Wait(ctx); err != nil {
		return e.fallback.Explain(ctx, f)
	}

	resp, err := e.provider.Complete(ctx, []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: findingPrompt(f)},
	})
	if err != nil {
		slog.Warn("llm explanation failed, using rule-based text", "error", err)
		return e.fallback.Explain(ctx, f)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return e.fallback.Explain(ctx, f)
	}
	return text
}

const systemPrompt = "You are a security assistant explaining credential " +
	"hygiene findings to a non-expert user. Answer in at most three " +
	"sentences: what was found, why it is risky, and the single most " +
	"important remediation step."

// findingPrompt renders the finding for the LLM. The raw secret never
// appears here; the preview is already masked.
func findingPrompt(f findings.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", f.Source)
	if f.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", f.Domain)
	}
	if name, ok := f.Metadata["pattern_name"].(string); ok && name != "" {
		fmt.Fprintf(&b, "Pattern: %s\n", name)
	}
	fmt.Fprintf(&b, "Masked preview: %s\n", f.Preview)
	fmt.Fprintf(&b, "Risk score: %d\n", f.RiskScore)
	if len(f.IssueFlags) > 0 {
		fmt.Fprintf(&b, "Issues: %s\n", strings.Join(f.IssueFlags, ", "))
	}
	return b.String()
}
