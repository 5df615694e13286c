package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keyvet-hq/keyvet/assist"
	"github.com/keyvet-hq/keyvet/cloudsync"
	"github.com/keyvet-hq/keyvet/core/collectors/browser"
	"github.com/keyvet-hq/keyvet/core/collectors/envconfig"
	"github.com/keyvet-hq/keyvet/core/collectors/gitscan"
	"github.com/keyvet-hq/keyvet/core/detect"
	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/patterns"
	"github.com/keyvet-hq/keyvet/core/storage"
)

// enrichmentThreshold is the risk score above which AI enrichment runs.
const enrichmentThreshold = 40

// ScanSummary is the result of one full scan.
type ScanSummary struct {
	Status          string  `json:"status"`
	FindingsCount   int     `json:"findings_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Scanner owns the scan pipeline and, during a scan, the transient plaintext
// handles. Storage writes happen only from the goroutine running RunFullScan;
// callers wanting concurrent scans must serialize them.
type Scanner struct {
	cfg        *Config
	store      *storage.Store
	detector   *patterns.Detector
	classifier assist.Classifier
	explainer  assist.Explainer
	cloud      *cloudsync.Client
}

// NewScanner wires a Scanner from configuration: the pattern detector (with
// custom rules and the entropy matcher when configured), the rule-based
// classifier, an LLM or rule-based explainer, and the optional cloud client.
func NewScanner(cfg *Config, store *storage.Store) (*Scanner, error) {
	opts := []patterns.Option{patterns.WithEntropy(cfg.IncludeEntropyScan)}
	if cfg.PatternsFile != "" {
		extra, err := patterns.LoadRules(cfg.PatternsFile)
		if err != nil {
			return nil, fmt.Errorf("loading custom patterns: %w", err)
		}
		opts = append(opts, patterns.WithExtraPatterns(extra))
	}

	s := &Scanner{
		cfg:        cfg,
		store:      store,
		detector:   patterns.NewDetector(opts...),
		classifier: assist.RuleClassifier{},
		explainer:  assist.RuleExplainer{},
	}

	keyEnv := cfg.OpenAI.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	if key := os.Getenv(keyEnv); key != "" {
		provider := assist.NewOpenAIProvider(
			assist.WithAPIKey(key),
			assist.WithModel(cfg.OpenAI.Model),
			assist.WithBaseURL(cfg.OpenAI.BaseURL),
		)
		s.explainer = assist.NewLLMExplainer(provider, cfg.OpenAI.RequestsPerMinute)
	}

	if cfg.CloudURL != "" {
		s.cloud = cloudsync.New(cfg.CloudURL)
	}
	return s, nil
}

// scanItem pairs a finding with its transient plaintext for the detection
// phase. The plaintext never travels further than this slice.
type scanItem struct {
	finding   findings.Finding
	plaintext *findings.Plaintext
}

// RunFullScan executes the whole pipeline: collect, normalize, detect,
// enrich, persist, sync. Collector and per-item failures are logged and
// skipped; only storage-level failures are fatal. Every plaintext handle is
// zeroed before the method returns, on all exit paths.
func (s *Scanner) RunFullScan(ctx context.Context) (*ScanSummary, error) {
	start := time.Now()

	scanID, err := s.store.BeginScan(ctx)
	if err != nil {
		return nil, err
	}

	raw := s.collect(ctx)

	items := make([]scanItem, 0, len(raw))
	defer func() {
		for i := range items {
			items[i].plaintext.Zero()
		}
	}()

	for i := range raw {
		f, pt, err := findings.Normalize(raw[i])
		if err != nil {
			slog.Warn("dropping malformed raw hit", "error", err)
			continue
		}
		items = append(items, scanItem{finding: f, plaintext: pt})
	}

	s.runDetection(ctx, items)

	ff := make([]findings.Finding, len(items))
	for i := range items {
		ff[i] = items[i].finding
	}

	s.runEnrichment(ctx, ff)

	for i := range ff {
		if err := s.store.Upsert(ctx, &ff[i]); err != nil {
			slog.Warn("persisting finding failed", "hash", ff[i].SecretHash, "error", err)
		}
	}

	if s.cloud != nil {
		if err := s.cloud.Heartbeat(ctx); err != nil {
			slog.Warn("cloud heartbeat failed", "error", err)
		}
		if err := s.cloud.SyncFindings(ctx, ff); err != nil {
			slog.Warn("cloud findings sync failed", "error", err)
		}
	}

	if err := s.store.FinishScan(ctx, scanID, "success", len(ff)); err != nil {
		slog.Warn("recording scan completion failed", "error", err)
	}

	return &ScanSummary{
		Status:          "success",
		FindingsCount:   len(ff),
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}

// collect runs the enabled collectors concurrently. Each collector owns its
// result slot, so no locking is needed; collectors log their own partial
// failures and never return an error.
func (s *Scanner) collect(ctx context.Context) []findings.RawHit {
	var browserHits, fsHits, gitHits, envHits []findings.RawHit

	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.IncludeBrowserScans {
		g.Go(func() error {
			browserHits = browser.Collect(gctx)
			return nil
		})
	}

	g.Go(func() error {
		for _, path := range s.cfg.ScanPaths {
			if gctx.Err() != nil {
				return nil
			}
			fsHits = append(fsHits, s.detector.ScanDir(path)...)
		}
		return nil
	})

	if s.cfg.IncludeGitScans {
		g.Go(func() error {
			for _, repo := range gitscan.FindRepos(s.cfg.ScanPaths) {
				if gctx.Err() != nil {
					return nil
				}
				gitHits = append(gitHits, gitscan.ScanWorkingTree(gctx, repo, s.detector)...)
				gitHits = append(gitHits, gitscan.ScanHistory(gctx, repo, s.cfg.MaxCommits, s.detector)...)
			}
			return nil
		})
	}

	if s.cfg.IncludeEnvScans {
		g.Go(func() error {
			envHits = envconfig.Collect(gctx, s.detector)
			return nil
		})
	}

	_ = g.Wait()

	out := make([]findings.RawHit, 0, len(browserHits)+len(fsHits)+len(gitHits)+len(envHits))
	out = append(out, browserHits...)
	out = append(out, fsHits...)
	out = append(out, gitHits...)
	out = append(out, envHits...)
	return out
}

// runDetection runs strength and exposure while the plaintext handles are
// live, then reuse counting, then scoring.
func (s *Scanner) runDetection(ctx context.Context, items []scanItem) {
	for i := range items {
		f := &items[i].finding

		if secret := items[i].plaintext.Value(); secret != "" {
			strength := detect.AnalyzeStrength(secret)
			for _, flag := range strength.Flags {
				f.AddFlag(flag)
			}
			f.Metadata["strength_score"] = strength.Score
			f.Metadata["entropy"] = strength.Entropy
		}

		for _, flag := range detect.Exposure(f) {
			f.AddFlag(flag)
		}
	}

	ff := make([]findings.Finding, len(items))
	for i := range items {
		ff[i] = items[i].finding
	}

	historical, err := s.store.ReuseGroups(ctx)
	if err != nil {
		slog.Warn("loading historical reuse groups failed", "error", err)
	}
	counts := detect.ReuseCounts(ff, historical)

	for i := range items {
		f := &items[i].finding
		count := counts[f.SecretHash]
		f.Metadata["reuse_count"] = count
		if count > 1 {
			f.AddFlag(findings.FlagReusedPassword)
		}
		f.RiskScore = detect.RiskScore(f, count)
	}
}

// runEnrichment classifies and explains findings above the risk threshold.
func (s *Scanner) runEnrichment(ctx context.Context, ff []findings.Finding) {
	for i := range ff {
		if ff[i].RiskScore <= enrichmentThreshold {
			continue
		}
		cls := s.classifier.Classify(ff[i].Metadata)
		ff[i].AIType = cls.Type
		ff[i].AIServiceGuess = cls.ServiceGuess
		ff[i].AIExplanation = s.explainer.Explain(ctx, ff[i])
	}
}
