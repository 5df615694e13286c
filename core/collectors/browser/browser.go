// Package browser collects saved passwords from chromium-family profiles
// (Chrome, Edge, Brave). The profile's Login Data store is copied to a
// scratch location because the browser keeps the original locked; the copy is
// removed on every exit path. Values protected by the modern v10/v11
// per-profile AES key are recorded as an opaque sentinel — unwrapping that
// key is explicitly out of scope — while legacy DPAPI values are unsealed
// with the platform primitive.
package browser

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/keyvet-hq/keyvet/core/appdir"
	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/vault"
)

// Sentinels recorded in place of a password value that could not be
// recovered.
const (
	SentinelAESGCM        = "[ENCRYPTED_AES_GCM_TODO]"
	SentinelDecryptFailed = "[DECRYPTION_FAILED]"
)

// loginDataName is the SQLite store holding saved logins inside a profile.
const loginDataName = "Login Data"

// Profile is one discovered browser profile with a Login Data store.
type Profile struct {
	Browser string
	Name    string
	Path    string
}

// FindProfiles returns every chromium-family profile on this host that has a
// Login Data store: the Default profile plus any "Profile *" directory.
func FindProfiles() []Profile {
	var out []Profile
	for _, ud := range appdir.BrowserUserDataDirs() {
		entries, err := os.ReadDir(ud.Dir)
		if err != nil {
			continue
		}
		var names []string
		names = append(names, "Default")
		for _, e := range entries {
			if e.IsDir() && strings.HasPrefix(e.Name(), "Profile ") {
				names = append(names, e.Name())
			}
		}
		for _, name := range names {
			profilePath := filepath.Join(ud.Dir, name)
			if _, err := os.Stat(filepath.Join(profilePath, loginDataName)); err == nil {
				out = append(out, Profile{Browser: ud.Browser, Name: name, Path: profilePath})
			}
		}
	}
	return out
}

// Collect extracts saved logins from every discovered profile and emits
// browser_password hits. Per-profile failures are logged and skipped.
func Collect(ctx context.Context) []findings.RawHit {
	var hits []findings.RawHit
	for _, p := range FindProfiles() {
		if ctx.Err() != nil {
			return hits
		}
		creds, err := extractLogins(ctx, p)
		if err != nil {
			slog.Warn("browser profile extraction failed",
				"browser", p.Browser, "profile", p.Name, "error", err)
			continue
		}
		hits = append(hits, creds...)
	}
	return hits
}

// extractLogins copies the profile's Login Data store aside, queries its
// logins table, and decrypts each password value. The scratch copy is removed
// on all exit paths.
func extractLogins(ctx context.Context, p Profile) (_ []findings.RawHit, err error) {
	scratch, err := os.MkdirTemp("", "keyvet-logins-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	dbCopy := filepath.Join(scratch, loginDataName)
	if err := copyFile(filepath.Join(p.Path, loginDataName), dbCopy); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbCopy)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT origin_url, username_value, password_value, date_created FROM logins`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []findings.RawHit
	for rows.Next() {
		var (
			origin, username string
			encrypted        []byte
			created          int64
		)
		if err := rows.Scan(&origin, &username, &encrypted, &created); err != nil {
			return nil, err
		}
		if username == "" || len(encrypted) == 0 {
			continue
		}

		hits = append(hits, findings.RawHit{
			Source:   findings.SourceBrowserPassword,
			Location: findings.BrowserLocation(p.Browser, p.Name, p.Path),
			Secret:   decryptPassword(encrypted),
			Username: username,
			Domain:   origin,
			Metadata: map[string]any{
				"origin":  origin,
				"created": created,
			},
		})
	}
	return hits, rows.Err()
}

// decryptPassword recovers the plaintext of a stored password_value. Values
// carrying the v10/v11 magic use the modern per-profile AES-GCM key, which is
// out of scope; they are recorded as an opaque sentinel. Everything else is
// treated as a legacy DPAPI blob.
func decryptPassword(encrypted []byte) string {
	if len(encrypted) >= 3 {
		magic := string(encrypted[:3])
		if magic == "v10" || magic == "v11" {
			return SentinelAESGCM
		}
	}
	plain, err := vault.UnprotectBrowserValue(encrypted)
	if err != nil {
		return SentinelDecryptFailed
	}
	return string(plain)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
