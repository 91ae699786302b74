/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package storage defines the durable record store the workflow engine reads
// and mutates. The store is the single source of truth and the arbitration
// point for concurrent resolution: ResolvePendingChange has
// update-if-current-status-equals semantics, which is the only guard against
// double-approval.
package storage

import (
	"context"

	"github.com/phinehas2020/ai-website-editor/model"
)

// Store is the durable record store for sites, pending changes, and history.
//
// Implementations return model.Error with KindNotFound for lookups that miss
// or that reference records not owned by the given user.
type Store interface {
	// CreateSite persists a new site. The caller sets the ID.
	CreateSite(ctx context.Context, site *model.Site) error
	// GetSite returns the site only if it is owned by userID.
	GetSite(ctx context.Context, id, userID string) (*model.Site, error)
	// ListSites returns the user's sites, newest first.
	ListSites(ctx context.Context, userID string) ([]*model.Site, error)
	// UpdateSite persists name and deployment-project changes.
	UpdateSite(ctx context.Context, site *model.Site) error
	// DeleteSite removes a site and cascades to its pending changes and history.
	DeleteSite(ctx context.Context, id string) error

	// CreatePendingChange persists a new pending change. The caller sets the ID.
	CreatePendingChange(ctx context.Context, change *model.PendingChange) error
	// GetPendingChange returns the change only if it belongs to siteID.
	GetPendingChange(ctx context.Context, id, siteID string) (*model.PendingChange, error)
	// ListPendingChanges returns all changes for a site, newest first.
	ListPendingChanges(ctx context.Context, siteID string) ([]*model.PendingChange, error)
	// LatestPendingChange returns the newest still-pending change for a site,
	// or nil if there is none.
	LatestPendingChange(ctx context.Context, siteID string) (*model.PendingChange, error)
	// SetPreviewURL records the discovered preview URL. Callable regardless
	// of status: a resolved change may still get its URL refreshed for audit
	// display.
	SetPreviewURL(ctx context.Context, id, url string) error
	// ResolvePendingChange flips status from "from" to "to" if and only if
	// the current status equals "from". Returns false when the record was
	// already resolved by a concurrent caller.
	ResolvePendingChange(ctx context.Context, id string, from, to model.ChangeStatus) (bool, error)

	// AppendHistory writes one immutable audit entry. The caller sets the ID.
	AppendHistory(ctx context.Context, entry *model.ChangeHistoryEntry) error
	// ListHistory returns audit entries for a site, newest first. A limit of
	// 0 means no limit.
	ListHistory(ctx context.Context, siteID string, limit int) ([]*model.ChangeHistoryEntry, error)
}
