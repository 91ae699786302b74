/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workflow orchestrates the change request lifecycle: propose a
// change (snapshot, generate, branch, commit, record), poll its preview
// deployment, and resolve it by approval or rejection.
//
// The engine holds no timers or background tasks. Deployment polling is
// driven entirely by callers invoking RefreshPreview, and the durable store
// is the only shared mutable state: its compare-and-swap status update is
// the sole guard against concurrent resolution.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/phinehas2020/ai-website-editor/codegen"
	"github.com/phinehas2020/ai-website-editor/deploystatus"
	"github.com/phinehas2020/ai-website-editor/model"
	"github.com/phinehas2020/ai-website-editor/storage"
)

// SnapshotFetcher fetches the editable subset of a repository branch.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, repo model.Repo, branch string) ([]model.File, error)
}

// BranchManager performs branch lifecycle operations on the version-control
// host.
type BranchManager interface {
	DefaultBranch(ctx context.Context, repo model.Repo) (string, error)
	CreateBranch(ctx context.Context, repo model.Repo, newName, baseName string) error
	CommitFiles(ctx context.Context, repo model.Repo, branch string, files []model.File, message string) error
	MergeBranch(ctx context.Context, repo model.Repo, head, base string) error
	DeleteBranch(ctx context.Context, repo model.Repo, branch string) error
}

// Generator produces a validated generation result for a snapshot and
// instruction.
type Generator interface {
	// Supports reports whether choice has a configured backend.
	Supports(choice codegen.ModelChoice) bool
	Generate(ctx context.Context, files []model.File, instruction string, choice codegen.ModelChoice) (*codegen.Result, error)
}

// Coordinator composes the snapshot fetcher, generation adapter, branch
// manager, deployment correlator, and record store into the end-to-end
// propose and resolve flows.
type Coordinator struct {
	store        storage.Store
	snapshots    SnapshotFetcher
	generator    Generator
	branches     BranchManager
	deployments  deploystatus.Correlator
	defaultOwner string
	vercelTeamID string

	// now is the clock used for branch naming; overridable in tests.
	now func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the coordinator's clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New returns a Coordinator over the given collaborators. defaultOwner
// resolves bare repository identifiers; vercelTeamID feeds the predictable
// preview URL.
func New(store storage.Store, snapshots SnapshotFetcher, generator Generator, branches BranchManager,
	deployments deploystatus.Correlator, defaultOwner, vercelTeamID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		snapshots:    snapshots,
		generator:    generator,
		branches:     branches,
		deployments:  deployments,
		defaultOwner: defaultOwner,
		vercelTeamID: vercelTeamID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProposeResult is the outcome of Propose. When NoChanges is set the
// generation touched zero files: no branch or pending change was created and
// Summary carries the backend's explanation.
type ProposeResult struct {
	NoChanges bool
	Summary   string
	Change    *model.PendingChange
}

// Propose runs the end-to-end propose flow for a site owned by userID:
// resolve the default branch, snapshot, generate, stage the result on a new
// preview branch, and record a pending change.
func (c *Coordinator) Propose(ctx context.Context, userID, siteID, instruction string, choice codegen.ModelChoice) (*ProposeResult, error) {
	log := clog.FromContext(ctx)

	if instruction == "" {
		return nil, model.E(model.KindInvalidInput, "instruction is required")
	}
	// Validate the model choice up front: a bad choice must not cost any
	// version-control round trips.
	if !c.generator.Supports(choice) {
		return nil, model.E(model.KindInvalidInput, "unsupported model %q", choice)
	}

	site, err := c.store.GetSite(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	repo := model.ParseRepo(site.RepoName, c.defaultOwner)

	// The host is authoritative for the default branch; it can change.
	baseBranch, err := c.branches.DefaultBranch(ctx, repo)
	if err != nil {
		return nil, err
	}

	files, err := c.snapshots.Fetch(ctx, repo, baseBranch)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		// Fail before spending a generation call on nothing to edit.
		return nil, model.E(model.KindNoEditableFiles, "no editable files found in repository %s", repo)
	}

	result, err := c.generator.Generate(ctx, files, instruction, choice)
	if err != nil {
		return nil, err
	}

	changed := result.ChangedPaths()
	if len(changed) == 0 {
		log.With("site", site.ID).Info("Generation produced no changes")
		return &ProposeResult{NoChanges: true, Summary: result.Summary}, nil
	}

	// Millisecond-derived branch names are unique enough per site; the
	// collision risk is accepted rather than checked.
	branchName := fmt.Sprintf("preview-%d", c.now().UnixMilli())

	if err := c.branches.CreateBranch(ctx, repo, branchName, baseBranch); err != nil {
		return nil, err
	}

	toCommit := make([]model.File, 0, len(changed))
	for _, path := range changed {
		toCommit = append(toCommit, model.File{Path: path, Content: result.Files[path]})
	}
	message := "AI changes: " + result.Summary
	if err := c.branches.CommitFiles(ctx, repo, branchName, toCommit, message); err != nil {
		// The branch exists but is not a valid preview source. Clean it up
		// so retried proposals do not accumulate garbage branches.
		c.cleanupBranch(ctx, repo, branchName)
		return nil, err
	}

	change := &model.PendingChange{
		ID:           uuid.NewString(),
		SiteID:       site.ID,
		BranchName:   branchName,
		PreviewURL:   deploystatus.PreviewURL(c.projectID(site, repo), branchName, c.vercelTeamID),
		UserMessage:  instruction,
		AISummary:    result.Summary,
		FilesChanged: changed,
		Status:       model.StatusPending,
	}
	if err := c.store.CreatePendingChange(ctx, change); err != nil {
		c.cleanupBranch(ctx, repo, branchName)
		return nil, err
	}

	log.With("site", site.ID).
		With("change", change.ID).
		With("branch", branchName).
		With("files_changed", len(changed)).
		Info("Recorded pending change")
	return &ProposeResult{Summary: result.Summary, Change: change}, nil
}

// projectID returns the site's deployment-project identifier, falling back
// to the bare repository name.
func (c *Coordinator) projectID(site *model.Site, repo model.Repo) string {
	if site.VercelProjectID != "" {
		return site.VercelProjectID
	}
	return repo.BareName()
}

// cleanupBranch is fire-and-log branch deletion: cleanup failures are never
// allowed to mask or block the outcome already decided.
func (c *Coordinator) cleanupBranch(ctx context.Context, repo model.Repo, branch string) {
	if err := c.branches.DeleteBranch(ctx, repo, branch); err != nil {
		clog.FromContext(ctx).With("repo", repo.String()).
			With("branch", branch).
			With("error", err.Error()).
			Warn("Best-effort branch deletion failed")
	}
}

// PreviewStatus is the result of one deployment-status refresh.
type PreviewStatus struct {
	Change *model.PendingChange
	Status deploystatus.Status
	// URL is the deployment's reported URL when ready, otherwise the URL
	// already stored on the change.
	URL string
}

// RefreshPreview polls the deployment platform for the change's branch and,
// when the deployment is ready, persists the discovered URL. Callable in any
// state; it never changes the change's status.
func (c *Coordinator) RefreshPreview(ctx context.Context, userID, siteID, changeID string) (*PreviewStatus, error) {
	site, err := c.store.GetSite(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	change, err := c.store.GetPendingChange(ctx, changeID, site.ID)
	if err != nil {
		return nil, err
	}

	repo := model.ParseRepo(site.RepoName, c.defaultOwner)
	result := c.deployments.Correlate(ctx, c.projectID(site, repo), change.BranchName)

	url := change.PreviewURL
	if result.Status == deploystatus.StatusReady && result.URL != "" {
		url = result.URL
		if result.URL != change.PreviewURL {
			if err := c.store.SetPreviewURL(ctx, change.ID, result.URL); err != nil {
				return nil, err
			}
			change.PreviewURL = result.URL
		}
	}

	return &PreviewStatus{Change: change, Status: result.Status, URL: url}, nil
}

// Approve merges the change branch into the site's current default branch,
// appends the audit history entry, and flips the change to approved.
//
// Ordering: the history entry is written before the status flip, so a crash
// between the two can never leave an approved record without an audit trail.
// The converse window (history row paired with a still-pending record) is
// accepted as a rare duplicate-audit risk on retry.
func (c *Coordinator) Approve(ctx context.Context, userID, siteID, changeID string) error {
	log := clog.FromContext(ctx)

	site, err := c.store.GetSite(ctx, siteID, userID)
	if err != nil {
		return err
	}
	change, err := c.store.GetPendingChange(ctx, changeID, site.ID)
	if err != nil {
		return err
	}
	if change.Status != model.StatusPending {
		return model.E(model.KindAlreadyResolved, "change %q is already %s", change.ID, change.Status)
	}

	repo := model.ParseRepo(site.RepoName, c.defaultOwner)
	baseBranch, err := c.branches.DefaultBranch(ctx, repo)
	if err != nil {
		return err
	}

	// A merge failure aborts the whole operation with the status unchanged,
	// so the user may retry.
	if err := c.branches.MergeBranch(ctx, repo, change.BranchName, baseBranch); err != nil {
		return err
	}

	c.cleanupBranch(ctx, repo, change.BranchName)

	if err := c.store.AppendHistory(ctx, &model.ChangeHistoryEntry{
		ID:           uuid.NewString(),
		SiteID:       site.ID,
		UserMessage:  change.UserMessage,
		AISummary:    change.AISummary,
		FilesChanged: change.FilesChanged,
	}); err != nil {
		return err
	}

	flipped, err := c.store.ResolvePendingChange(ctx, change.ID, model.StatusPending, model.StatusApproved)
	if err != nil {
		return err
	}
	if !flipped {
		// A concurrent caller resolved the change between our precondition
		// check and the flip; the compare-and-swap is the real arbiter.
		return model.E(model.KindAlreadyResolved, "change %q was resolved concurrently", change.ID)
	}

	log.With("site", site.ID).With("change", change.ID).Info("Change approved and merged")
	return nil
}

// Reject deletes the change branch (best-effort) and flips the change to
// rejected. No history entry is written: only merged changes are historical
// record.
func (c *Coordinator) Reject(ctx context.Context, userID, siteID, changeID string) error {
	log := clog.FromContext(ctx)

	site, err := c.store.GetSite(ctx, siteID, userID)
	if err != nil {
		return err
	}
	change, err := c.store.GetPendingChange(ctx, changeID, site.ID)
	if err != nil {
		return err
	}
	if change.Status != model.StatusPending {
		return model.E(model.KindAlreadyResolved, "change %q is already %s", change.ID, change.Status)
	}

	repo := model.ParseRepo(site.RepoName, c.defaultOwner)
	c.cleanupBranch(ctx, repo, change.BranchName)

	flipped, err := c.store.ResolvePendingChange(ctx, change.ID, model.StatusPending, model.StatusRejected)
	if err != nil {
		return err
	}
	if !flipped {
		return model.E(model.KindAlreadyResolved, "change %q was resolved concurrently", change.ID)
	}

	log.With("site", site.ID).With("change", change.ID).Info("Change rejected")
	return nil
}
