/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package sqlite implements storage.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phinehas2020/ai-website-editor/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL,
    name               TEXT NOT NULL,
    repo_name          TEXT NOT NULL,
    vercel_project_id  TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pending_changes (
    id             TEXT PRIMARY KEY,
    site_id        TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    branch_name    TEXT NOT NULL,
    preview_url    TEXT NOT NULL DEFAULT '',
    user_message   TEXT NOT NULL,
    ai_summary     TEXT NOT NULL,
    files_changed  TEXT NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS change_history (
    id             TEXT PRIMARY KEY,
    site_id        TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    user_message   TEXT NOT NULL,
    ai_summary     TEXT NOT NULL,
    files_changed  TEXT NOT NULL DEFAULT '[]',
    committed_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sites_user ON sites(user_id);
CREATE INDEX IF NOT EXISTS idx_pending_changes_site ON pending_changes(site_id);
CREATE INDEX IF NOT EXISTS idx_pending_changes_status ON pending_changes(site_id, status);
CREATE INDEX IF NOT EXISTS idx_change_history_site ON change_history(site_id);
`

// Store implements storage.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSite(ctx context.Context, site *model.Site) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (id, user_id, name, repo_name, vercel_project_id) VALUES (?, ?, ?, ?, ?)`,
		site.ID, site.UserID, site.Name, site.RepoName, site.VercelProjectID,
	)
	if err != nil {
		return fmt.Errorf("creating site: %w", err)
	}
	created, err := s.getSite(ctx, site.ID)
	if err != nil {
		return err
	}
	*site = *created
	return nil
}

func (s *Store) GetSite(ctx context.Context, id, userID string) (*model.Site, error) {
	site, err := s.getSite(ctx, id)
	if err != nil {
		return nil, err
	}
	// Ownership is enforced here so that a foreign site is indistinguishable
	// from a missing one.
	if site.UserID != userID {
		return nil, model.E(model.KindNotFound, "site %q not found", id)
	}
	return site, nil
}

func (s *Store) getSite(ctx context.Context, id string) (*model.Site, error) {
	site := &model.Site{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, repo_name, vercel_project_id, created_at, updated_at FROM sites WHERE id = ?`, id,
	).Scan(&site.ID, &site.UserID, &site.Name, &site.RepoName, &site.VercelProjectID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.E(model.KindNotFound, "site %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}
	site.CreatedAt = parseTime(createdAt)
	site.UpdatedAt = parseTime(updatedAt)
	return site, nil
}

func (s *Store) ListSites(ctx context.Context, userID string) ([]*model.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, repo_name, vercel_project_id, created_at, updated_at
		 FROM sites WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []*model.Site
	for rows.Next() {
		site := &model.Site{}
		var createdAt, updatedAt string
		if err := rows.Scan(&site.ID, &site.UserID, &site.Name, &site.RepoName, &site.VercelProjectID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		site.CreatedAt = parseTime(createdAt)
		site.UpdatedAt = parseTime(updatedAt)
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) UpdateSite(ctx context.Context, site *model.Site) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sites SET name = ?, vercel_project_id = ?, updated_at = datetime('now') WHERE id = ?`,
		site.Name, site.VercelProjectID, site.ID,
	)
	if err != nil {
		return fmt.Errorf("updating site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.E(model.KindNotFound, "site %q not found", site.ID)
	}
	return nil
}

func (s *Store) DeleteSite(ctx context.Context, id string) error {
	// Foreign keys are on, so pending changes and history cascade.
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.E(model.KindNotFound, "site %q not found", id)
	}
	return nil
}

func (s *Store) CreatePendingChange(ctx context.Context, change *model.PendingChange) error {
	files, err := json.Marshal(change.FilesChanged)
	if err != nil {
		return fmt.Errorf("encoding files changed: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_changes (id, site_id, branch_name, preview_url, user_message, ai_summary, files_changed, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ID, change.SiteID, change.BranchName, change.PreviewURL,
		change.UserMessage, change.AISummary, string(files), string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("creating pending change: %w", err)
	}
	created, err := s.GetPendingChange(ctx, change.ID, change.SiteID)
	if err != nil {
		return err
	}
	*change = *created
	return nil
}

func (s *Store) GetPendingChange(ctx context.Context, id, siteID string) (*model.PendingChange, error) {
	change, err := s.scanPendingChange(s.db.QueryRowContext(ctx,
		`SELECT id, site_id, branch_name, preview_url, user_message, ai_summary, files_changed, status, created_at, updated_at
		 FROM pending_changes WHERE id = ? AND site_id = ?`, id, siteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.E(model.KindNotFound, "pending change %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting pending change: %w", err)
	}
	return change, nil
}

func (s *Store) ListPendingChanges(ctx context.Context, siteID string) ([]*model.PendingChange, error) {
	return s.queryPendingChanges(ctx,
		`SELECT id, site_id, branch_name, preview_url, user_message, ai_summary, files_changed, status, created_at, updated_at
		 FROM pending_changes WHERE site_id = ? ORDER BY created_at DESC, rowid DESC`, siteID)
}

func (s *Store) LatestPendingChange(ctx context.Context, siteID string) (*model.PendingChange, error) {
	changes, err := s.queryPendingChanges(ctx,
		`SELECT id, site_id, branch_name, preview_url, user_message, ai_summary, files_changed, status, created_at, updated_at
		 FROM pending_changes WHERE site_id = ? AND status = 'pending'
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, siteID)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return changes[0], nil
}

func (s *Store) queryPendingChanges(ctx context.Context, query string, args ...any) ([]*model.PendingChange, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending changes: %w", err)
	}
	defer rows.Close()

	var changes []*model.PendingChange
	for rows.Next() {
		change, err := s.scanPendingChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending change: %w", err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPendingChange(row scanner) (*model.PendingChange, error) {
	change := &model.PendingChange{}
	var files, status, createdAt, updatedAt string
	if err := row.Scan(&change.ID, &change.SiteID, &change.BranchName, &change.PreviewURL,
		&change.UserMessage, &change.AISummary, &files, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &change.FilesChanged); err != nil {
		return nil, fmt.Errorf("decoding files changed: %w", err)
	}
	change.Status = model.ChangeStatus(status)
	change.CreatedAt = parseTime(createdAt)
	change.UpdatedAt = parseTime(updatedAt)
	return change, nil
}

func (s *Store) SetPreviewURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_changes SET preview_url = ?, updated_at = datetime('now') WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("setting preview url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.E(model.KindNotFound, "pending change %q not found", id)
	}
	return nil
}

func (s *Store) ResolvePendingChange(ctx context.Context, id string, from, to model.ChangeStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_changes SET status = ?, updated_at = datetime('now') WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("resolving pending change: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolving pending change: %w", err)
	}
	return n == 1, nil
}

func (s *Store) AppendHistory(ctx context.Context, entry *model.ChangeHistoryEntry) error {
	files, err := json.Marshal(entry.FilesChanged)
	if err != nil {
		return fmt.Errorf("encoding files changed: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO change_history (id, site_id, user_message, ai_summary, files_changed) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.SiteID, entry.UserMessage, entry.AISummary, string(files),
	)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, siteID string, limit int) ([]*model.ChangeHistoryEntry, error) {
	// committed_at has second resolution; rowid breaks same-second ties in
	// insertion order, so history never lists out of order.
	query := `SELECT id, site_id, user_message, ai_summary, files_changed, committed_at
	          FROM change_history WHERE site_id = ? ORDER BY committed_at DESC, rowid DESC`
	args := []any{siteID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []*model.ChangeHistoryEntry
	for rows.Next() {
		entry := &model.ChangeHistoryEntry{}
		var files, committedAt string
		if err := rows.Scan(&entry.ID, &entry.SiteID, &entry.UserMessage, &entry.AISummary, &files, &committedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(files), &entry.FilesChanged); err != nil {
			return nil, fmt.Errorf("decoding files changed: %w", err)
		}
		entry.CommittedAt = parseTime(committedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.DateTime, s)
	return t
}
