// Package envconfig probes the well-known credential-bearing configuration
// files of cloud tooling (AWS, kubectl, Azure, gcloud) and pattern-scans any
// that exist as text, relabelling the hits as env_config.
package envconfig

import (
	"context"
	"os"
	"path/filepath"

	"github.com/keyvet-hq/keyvet/core/appdir"
	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/patterns"
)

// WellKnownPaths returns the credential file paths probed under the given
// home directory.
func WellKnownPaths(home string) []string {
	if home == "" {
		return nil
	}
	return []string{
		filepath.Join(home, ".aws", "credentials"),
		filepath.Join(home, ".kube", "config"),
		filepath.Join(home, ".azure", "accessTokens.json"),
		// gcloud's credentials.db is usually binary; the text gate skips it.
		filepath.Join(home, ".config", "gcloud", "credentials.db"),
	}
}

// Collect scans every present, regular, text-eligible well-known credential
// file and returns env_config hits.
func Collect(ctx context.Context, det *patterns.Detector) []findings.RawHit {
	var hits []findings.RawHit
	for _, path := range WellKnownPaths(appdir.Home()) {
		if ctx.Err() != nil {
			return hits
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		for _, h := range det.ScanFile(path) {
			h.Source = findings.SourceEnvConfig
			hits = append(hits, h)
		}
	}
	return hits
}
