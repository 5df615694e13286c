package envconfig

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestWellKnownPaths(t *testing.T) {
	paths := WellKnownPaths("/home/u")
	if len(paths) != 4 {
		t.Fatalf("paths = %v", paths)
	}

	wantSuffixes := []string{
		filepath.Join(".aws", "credentials"),
		filepath.Join(".kube", "config"),
		filepath.Join(".azure", "accessTokens.json"),
		filepath.Join(".config", "gcloud", "credentials.db"),
	}
	for i, suffix := range wantSuffixes {
		if !strings.HasSuffix(paths[i], suffix) {
			t.Fatalf("paths[%d] = %s, want suffix %s", i, paths[i], suffix)
		}
	}
}

func TestWellKnownPaths_NoHome(t *testing.T) {
	if paths := WellKnownPaths(""); paths != nil {
		t.Fatalf("paths = %v, want nil without a home dir", paths)
	}
}
