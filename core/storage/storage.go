// Package storage persists credential findings in a local SQLite database.
// Sensitive fields (preview, username, AI explanation) are stored as AES-GCM
// ciphertext under the vault master key; the secret hash and domain stay in
// the clear because correlation and filtering depend on them.
//
// The store is a single-writer design: all writes happen from the
// orchestrator goroutine, reads may come from any goroutine that performs its
// own serialization. SetMaxOpenConns(1) plus WAL keeps the handle consistent
// for concurrent readers of the same process.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/vault"
)

// Store wraps the SQLite handle and the value cipher.
type Store struct {
	db     *sql.DB
	cipher *vault.Cipher
}

// ScanRecord is one row of the scans table.
type ScanRecord struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Status      string    `json:"status"`
	NumFindings int       `json:"num_findings"`
}

// Open creates or opens the findings database at path and runs the schema
// migration. A failure here is fatal to the scan — there is nowhere to
// persist results.
func Open(path string, cipher *vault.Cipher) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, cipher: cipher}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_type TEXT NOT NULL,
			location_json TEXT NOT NULL,
			secret_hash TEXT NOT NULL,
			secret_preview_enc BLOB,
			username_enc BLOB,
			domain TEXT,
			metadata_json TEXT,
			issue_flags_json TEXT,
			risk_score INTEGER DEFAULT 0,
			ai_type TEXT,
			ai_service_guess TEXT,
			ai_explanation_enc BLOB,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_secret_hash ON findings(secret_hash);`,
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT,
			num_findings INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts a finding or, when a row with the same secret_hash already
// exists, updates that row in place with the latest scan's values and bumps
// updated_at. This is the reuse-collapsing rule: identical plaintext across
// any two sources yields a single row and the later scan's location wins.
func (s *Store) Upsert(ctx context.Context, f *findings.Finding) error {
	locJSON, err := json.Marshal(f.Location)
	if err != nil {
		return fmt.Errorf("encoding location: %w", err)
	}
	metaJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	flagsJSON, err := json.Marshal(f.IssueFlags)
	if err != nil {
		return fmt.Errorf("encoding issue flags: %w", err)
	}

	previewEnc, err := s.cipher.EncryptString(f.Preview)
	if err != nil {
		return fmt.Errorf("encrypting preview: %w", err)
	}
	usernameEnc, err := s.cipher.EncryptString(f.Username)
	if err != nil {
		return fmt.Errorf("encrypting username: %w", err)
	}
	explanationEnc, err := s.cipher.EncryptString(f.AIExplanation)
	if err != nil {
		return fmt.Errorf("encrypting explanation: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM findings WHERE secret_hash = ?`, f.SecretHash).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO findings (
				source_type, location_json, secret_hash, secret_preview_enc,
				username_enc, domain, metadata_json, issue_flags_json, risk_score,
				ai_type, ai_service_guess, ai_explanation_enc, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Source, string(locJSON), f.SecretHash, previewEnc,
			usernameEnc, f.Domain, string(metaJSON), string(flagsJSON), f.RiskScore,
			f.AIType, f.AIServiceGuess, explanationEnc, now, now)
		if err != nil {
			return fmt.Errorf("inserting finding: %w", err)
		}
		f.ID, _ = res.LastInsertId()
		return nil

	case err != nil:
		return fmt.Errorf("looking up finding by hash: %w", err)

	default:
		_, err = s.db.ExecContext(ctx, `
			UPDATE findings SET
				source_type = ?,
				location_json = ?,
				secret_preview_enc = ?,
				username_enc = ?,
				domain = ?,
				metadata_json = ?,
				issue_flags_json = ?,
				risk_score = ?,
				ai_type = ?,
				ai_service_guess = ?,
				ai_explanation_enc = ?,
				updated_at = ?
			WHERE id = ?`,
			f.Source, string(locJSON), previewEnc, usernameEnc, f.Domain,
			string(metaJSON), string(flagsJSON), f.RiskScore,
			f.AIType, f.AIServiceGuess, explanationEnc, now, id)
		if err != nil {
			return fmt.Errorf("updating finding: %w", err)
		}
		f.ID = id
		return nil
	}
}

// ListAll returns every finding ordered by risk score descending, with
// sensitive fields decrypted. A decryption failure on one row surfaces as
// the sentinel string in that field; it never aborts the query.
func (s *Store) ListAll(ctx context.Context) ([]findings.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_type, location_json, secret_hash, secret_preview_enc,
			username_enc, domain, metadata_json, issue_flags_json, risk_score,
			ai_type, ai_service_guess, ai_explanation_enc, created_at, updated_at
		FROM findings ORDER BY risk_score DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var out []findings.Finding
	for rows.Next() {
		var (
			f                                findings.Finding
			locJSON, metaJSON, flagsJSON     string
			previewEnc, usernameEnc, explEnc []byte
			aiType, aiServiceGuess, domain   sql.NullString
			createdAt, updatedAt             string
		)
		if err := rows.Scan(&f.ID, &f.Source, &locJSON, &f.SecretHash, &previewEnc,
			&usernameEnc, &domain, &metaJSON, &flagsJSON, &f.RiskScore,
			&aiType, &aiServiceGuess, &explEnc, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning finding row: %w", err)
		}

		_ = json.Unmarshal([]byte(locJSON), &f.Location)
		_ = json.Unmarshal([]byte(metaJSON), &f.Metadata)
		if flagsJSON != "" {
			_ = json.Unmarshal([]byte(flagsJSON), &f.IssueFlags)
		}
		f.Domain = domain.String
		f.AIType = aiType.String
		f.AIServiceGuess = aiServiceGuess.String
		f.Preview = s.cipher.Decrypt(previewEnc)
		f.Username = s.cipher.Decrypt(usernameEnc)
		f.AIExplanation = s.cipher.Decrypt(explEnc)
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		out = append(out, f)
	}
	return out, rows.Err()
}

// ReuseGroups returns secret_hash → row IDs for hashes carried by two or
// more rows. The detector consults these as historical reuse context.
func (s *Store) ReuseGroups(ctx context.Context) (map[string][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT secret_hash, id FROM findings`)
	if err != nil {
		return nil, fmt.Errorf("querying reuse groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]int64)
	for rows.Next() {
		var hash string
		var id int64
		if err := rows.Scan(&hash, &id); err != nil {
			return nil, fmt.Errorf("scanning reuse row: %w", err)
		}
		groups[hash] = append(groups[hash], id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for hash, ids := range groups {
		if len(ids) < 2 {
			delete(groups, hash)
		}
	}
	return groups, nil
}

// BeginScan records a new scan row and returns its ID.
func (s *Store) BeginScan(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, started_at, status) VALUES (?, ?, 'running')`, id, now)
	if err != nil {
		return "", fmt.Errorf("recording scan start: %w", err)
	}
	return id, nil
}

// FinishScan closes out a scan row with its final status and finding count.
func (s *Store) FinishScan(ctx context.Context, id, status string, numFindings int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE scans SET finished_at = ?, status = ?, num_findings = ? WHERE id = ?`,
		now, status, numFindings, id)
	if err != nil {
		return fmt.Errorf("recording scan finish: %w", err)
	}
	return nil
}

// LatestScan returns the most recently started scan, or nil when none exist.
func (s *Store) LatestScan(ctx context.Context) (*ScanRecord, error) {
	var (
		rec      ScanRecord
		started  string
		finished sql.NullString
		status   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, num_findings
		FROM scans ORDER BY started_at DESC LIMIT 1`).
		Scan(&rec.ID, &started, &finished, &status, &rec.NumFindings)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest scan: %w", err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	rec.Status = status.String
	return &rec, nil
}

// SetSetting stores a key/value pair in the settings table.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value for key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}
