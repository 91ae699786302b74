/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/phinehas2020/ai-website-editor/codegen"
	"github.com/phinehas2020/ai-website-editor/deploystatus"
	"github.com/phinehas2020/ai-website-editor/model"
	"github.com/phinehas2020/ai-website-editor/storage"
	"github.com/phinehas2020/ai-website-editor/storage/sqlite"
	"github.com/phinehas2020/ai-website-editor/workflow"
)

const fixedMillis = 1756712345678

type fakeSnapshots struct {
	files   []model.File
	err     error
	fetches int
}

func (f *fakeSnapshots) Fetch(context.Context, model.Repo, string) ([]model.File, error) {
	f.fetches++
	return f.files, f.err
}

type fakeGenerator struct {
	result      *codegen.Result
	err         error
	unsupported bool
	instruction string
	choice      codegen.ModelChoice
}

func (f *fakeGenerator) Supports(codegen.ModelChoice) bool {
	return !f.unsupported
}

func (f *fakeGenerator) Generate(_ context.Context, _ []model.File, instruction string, choice codegen.ModelChoice) (*codegen.Result, error) {
	f.instruction = instruction
	f.choice = choice
	return f.result, f.err
}

type commit struct {
	Branch  string
	Files   []model.File
	Message string
}

type fakeBranches struct {
	defaultBranch string
	defaultCalls  int
	created       []string
	commits       []commit
	merges        [][2]string // head, base
	deleted       []string

	defaultErr error
	createErr  error
	commitErr  error
	mergeErr   error
	deleteErr  error
}

func (f *fakeBranches) DefaultBranch(context.Context, model.Repo) (string, error) {
	f.defaultCalls++
	return f.defaultBranch, f.defaultErr
}

func (f *fakeBranches) CreateBranch(_ context.Context, _ model.Repo, newName, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, newName)
	return nil
}

func (f *fakeBranches) CommitFiles(_ context.Context, _ model.Repo, branch string, files []model.File, message string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, commit{Branch: branch, Files: files, Message: message})
	return nil
}

func (f *fakeBranches) MergeBranch(_ context.Context, _ model.Repo, head, base string) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges = append(f.merges, [2]string{head, base})
	return nil
}

func (f *fakeBranches) DeleteBranch(_ context.Context, _ model.Repo, branch string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, branch)
	return nil
}

// countingStore counts preview URL writes on top of a real store.
type countingStore struct {
	storage.Store
	setURLCalls int
}

func (c *countingStore) SetPreviewURL(ctx context.Context, id, url string) error {
	c.setURLCalls++
	return c.Store.SetPreviewURL(ctx, id, url)
}

type fakeCorrelator struct {
	result deploystatus.Result
}

func (f *fakeCorrelator) Correlate(context.Context, string, string) deploystatus.Result {
	return f.result
}

type harness struct {
	store       *sqlite.Store
	snapshots   *fakeSnapshots
	generator   *fakeGenerator
	branches    *fakeBranches
	deployments *fakeCorrelator
	coordinator *workflow.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store: store,
		snapshots: &fakeSnapshots{files: []model.File{
			{Path: "index.tsx", Content: "export default Home"},
		}},
		generator: &fakeGenerator{result: &codegen.Result{
			Summary: "Made the heading bigger",
			Files:   map[string]string{"index.tsx": "export default BigHome"},
		}},
		branches:    &fakeBranches{defaultBranch: "main"},
		deployments: &fakeCorrelator{result: deploystatus.Result{Status: deploystatus.StatusPending}},
	}
	h.coordinator = workflow.New(store, h.snapshots, h.generator, h.branches, h.deployments,
		"default-owner", "team_123",
		workflow.WithClock(func() time.Time { return time.UnixMilli(fixedMillis) }))
	return h
}

func (h *harness) createSite(t *testing.T) *model.Site {
	t.Helper()
	site := &model.Site{
		ID:       "s1",
		UserID:   "u1",
		Name:     "My Site",
		RepoName: "octocat/website",
	}
	if err := h.store.CreateSite(context.Background(), site); err != nil {
		t.Fatalf("CreateSite() = %v", err)
	}
	return site
}

func (h *harness) propose(t *testing.T) *model.PendingChange {
	t.Helper()
	result, err := h.coordinator.Propose(context.Background(), "u1", "s1", "make the heading bigger", codegen.ModelGeminiFlash)
	if err != nil {
		t.Fatalf("Propose() = %v", err)
	}
	if result.Change == nil {
		t.Fatal("Propose() returned no change")
	}
	return result.Change
}

func TestPropose(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createSite(t)

	change := h.propose(t)

	wantBranch := "preview-1756712345678"
	if change.BranchName != wantBranch {
		t.Errorf("branch = %q, want %q", change.BranchName, wantBranch)
	}
	if diff := cmp.Diff([]string{wantBranch}, h.branches.created); diff != "" {
		t.Errorf("created branches mismatch (-want +got):\n%s", diff)
	}

	wantCommits := []commit{{
		Branch:  wantBranch,
		Files:   []model.File{{Path: "index.tsx", Content: "export default BigHome"}},
		Message: "AI changes: Made the heading bigger",
	}}
	if diff := cmp.Diff(wantCommits, h.branches.commits); diff != "" {
		t.Errorf("commits mismatch (-want +got):\n%s", diff)
	}

	// The placeholder preview URL uses the bare repo name since the site has
	// no explicit project ID.
	wantURL := "https://website-git-" + wantBranch + "-team_123.vercel.app"
	if change.PreviewURL != wantURL {
		t.Errorf("preview URL = %q, want %q", change.PreviewURL, wantURL)
	}

	stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
	if err != nil {
		t.Fatalf("GetPendingChange() = %v", err)
	}
	if stored.Status != model.StatusPending {
		t.Errorf("status = %q, want %q", stored.Status, model.StatusPending)
	}
	if diff := cmp.Diff([]string{"index.tsx"}, stored.FilesChanged); diff != "" {
		t.Errorf("files changed mismatch (-want +got):\n%s", diff)
	}
	if got, want := h.generator.choice, codegen.ModelGeminiFlash; got != want {
		t.Errorf("model choice = %q, want %q", got, want)
	}
}

func TestProposeNoChanges(t *testing.T) {
	h := newHarness(t)
	h.createSite(t)
	h.generator.result = &codegen.Result{Summary: "Nothing to do", Files: map[string]string{}}

	result, err := h.coordinator.Propose(context.Background(), "u1", "s1", "change nothing", codegen.ModelGeminiFlash)
	if err != nil {
		t.Fatalf("Propose() = %v", err)
	}
	if !result.NoChanges {
		t.Error("expected NoChanges")
	}
	if result.Summary != "Nothing to do" {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(h.branches.created) != 0 {
		t.Errorf("no branch should be created, got %v", h.branches.created)
	}
	changes, err := h.store.ListPendingChanges(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListPendingChanges() = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("no pending change should be recorded, got %d", len(changes))
	}
}

func TestProposeValidation(t *testing.T) {
	for _, tt := range []struct {
		name        string
		setup       func(*harness)
		userID      string
		instruction string
		wantKind    model.ErrorKind
	}{{
		name:        "empty instruction",
		userID:      "u1",
		instruction: "",
		wantKind:    model.KindInvalidInput,
	}, {
		name:        "foreign site",
		userID:      "intruder",
		instruction: "change it",
		wantKind:    model.KindNotFound,
	}, {
		name:        "empty snapshot",
		setup:       func(h *harness) { h.snapshots.files = nil },
		userID:      "u1",
		instruction: "change it",
		wantKind:    model.KindNoEditableFiles,
	}, {
		name:        "generation failure",
		setup:       func(h *harness) { h.generator.err = model.E(model.KindUpstreamUnavailable, "backend down") },
		userID:      "u1",
		instruction: "change it",
		wantKind:    model.KindUpstreamUnavailable,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.createSite(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			_, err := h.coordinator.Propose(context.Background(), tt.userID, "s1", tt.instruction, codegen.ModelGeminiFlash)
			if kind := model.KindOf(err); kind != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", kind, tt.wantKind)
			}
			if len(h.branches.created) != 0 {
				t.Errorf("no branch should be created, got %v", h.branches.created)
			}
		})
	}
}

func TestProposeUnsupportedModel(t *testing.T) {
	h := newHarness(t)
	h.createSite(t)
	h.generator.unsupported = true

	_, err := h.coordinator.Propose(context.Background(), "u1", "s1", "change it", codegen.ModelChoice("gpt-99"))
	if kind := model.KindOf(err); kind != model.KindInvalidInput {
		t.Errorf("KindOf() = %q, want %q", kind, model.KindInvalidInput)
	}

	// The bad choice must be rejected before any host round trip.
	if h.branches.defaultCalls != 0 {
		t.Errorf("DefaultBranch called %d times, want 0", h.branches.defaultCalls)
	}
	if h.snapshots.fetches != 0 {
		t.Errorf("Fetch called %d times, want 0", h.snapshots.fetches)
	}
}

func TestProposeCommitFailureCleansUpBranch(t *testing.T) {
	h := newHarness(t)
	h.createSite(t)
	h.branches.commitErr = errors.New("409 conflict")

	_, err := h.coordinator.Propose(context.Background(), "u1", "s1", "change it", codegen.ModelGeminiFlash)
	if err == nil {
		t.Fatal("expected error")
	}
	// The just-created branch must not be left orphaned.
	if diff := cmp.Diff([]string{"preview-1756712345678"}, h.branches.deleted); diff != "" {
		t.Errorf("deleted branches mismatch (-want +got):\n%s", diff)
	}
	changes, err := h.store.ListPendingChanges(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListPendingChanges() = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("no pending change should be recorded, got %d", len(changes))
	}
}

func TestRefreshPreview(t *testing.T) {
	ctx := context.Background()

	t.Run("still pending", func(t *testing.T) {
		h := newHarness(t)
		h.createSite(t)
		change := h.propose(t)

		status, err := h.coordinator.RefreshPreview(ctx, "u1", "s1", change.ID)
		if err != nil {
			t.Fatalf("RefreshPreview() = %v", err)
		}
		if status.Status != deploystatus.StatusPending {
			t.Errorf("status = %q, want pending", status.Status)
		}
		if status.URL != change.PreviewURL {
			t.Errorf("URL = %q, want placeholder %q", status.URL, change.PreviewURL)
		}
	})

	t.Run("ready persists discovered URL", func(t *testing.T) {
		h := newHarness(t)
		h.createSite(t)
		change := h.propose(t)
		h.deployments.result = deploystatus.Result{
			Status: deploystatus.StatusReady,
			URL:    "https://real-deployment.vercel.app",
		}

		status, err := h.coordinator.RefreshPreview(ctx, "u1", "s1", change.ID)
		if err != nil {
			t.Fatalf("RefreshPreview() = %v", err)
		}
		if status.Status != deploystatus.StatusReady {
			t.Errorf("status = %q, want ready", status.Status)
		}
		if status.URL != "https://real-deployment.vercel.app" {
			t.Errorf("URL = %q", status.URL)
		}

		stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
		if err != nil {
			t.Fatalf("GetPendingChange() = %v", err)
		}
		if stored.PreviewURL != "https://real-deployment.vercel.app" {
			t.Errorf("persisted URL = %q", stored.PreviewURL)
		}
	})

	t.Run("discovered URL persisted exactly once", func(t *testing.T) {
		h := newHarness(t)
		h.createSite(t)
		change := h.propose(t)

		counting := &countingStore{Store: h.store}
		coordinator := workflow.New(counting, h.snapshots, h.generator, h.branches, h.deployments,
			"default-owner", "team_123")

		// First poll: still pending, nothing written.
		if _, err := coordinator.RefreshPreview(ctx, "u1", "s1", change.ID); err != nil {
			t.Fatalf("RefreshPreview() = %v", err)
		}
		if counting.setURLCalls != 0 {
			t.Errorf("SetPreviewURL called %d times while pending, want 0", counting.setURLCalls)
		}

		// Second and third polls: ready with the same URL; only the first
		// transition writes.
		h.deployments.result = deploystatus.Result{Status: deploystatus.StatusReady, URL: "https://x.example.com"}
		for i := 0; i < 2; i++ {
			if _, err := coordinator.RefreshPreview(ctx, "u1", "s1", change.ID); err != nil {
				t.Fatalf("RefreshPreview() = %v", err)
			}
		}
		if counting.setURLCalls != 1 {
			t.Errorf("SetPreviewURL called %d times, want 1", counting.setURLCalls)
		}
		stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
		if err != nil {
			t.Fatalf("GetPendingChange() = %v", err)
		}
		if stored.PreviewURL != "https://x.example.com" {
			t.Errorf("persisted URL = %q", stored.PreviewURL)
		}
	})

	t.Run("build error never touches status", func(t *testing.T) {
		h := newHarness(t)
		h.createSite(t)
		change := h.propose(t)
		h.deployments.result = deploystatus.Result{Status: deploystatus.StatusError}

		status, err := h.coordinator.RefreshPreview(ctx, "u1", "s1", change.ID)
		if err != nil {
			t.Fatalf("RefreshPreview() = %v", err)
		}
		if status.Status != deploystatus.StatusError {
			t.Errorf("status = %q, want error", status.Status)
		}
		stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
		if err != nil {
			t.Fatalf("GetPendingChange() = %v", err)
		}
		if stored.Status != model.StatusPending {
			t.Errorf("change status = %q, want pending", stored.Status)
		}
	})
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createSite(t)
	change := h.propose(t)

	if err := h.coordinator.Approve(ctx, "u1", "s1", change.ID); err != nil {
		t.Fatalf("Approve() = %v", err)
	}

	if diff := cmp.Diff([][2]string{{change.BranchName, "main"}}, h.branches.merges); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{change.BranchName}, h.branches.deleted); diff != "" {
		t.Errorf("deleted branches mismatch (-want +got):\n%s", diff)
	}

	stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
	if err != nil {
		t.Fatalf("GetPendingChange() = %v", err)
	}
	if stored.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", stored.Status)
	}

	history, err := h.store.ListHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListHistory() = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d history entries, want 1", len(history))
	}
	if history[0].UserMessage != change.UserMessage || history[0].AISummary != change.AISummary {
		t.Errorf("history entry = %+v", history[0])
	}

	// A second approval must fail without appending more history.
	err = h.coordinator.Approve(ctx, "u1", "s1", change.ID)
	if kind := model.KindOf(err); kind != model.KindAlreadyResolved {
		t.Errorf("second Approve() kind = %q, want %q", kind, model.KindAlreadyResolved)
	}
	history, err = h.store.ListHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListHistory() = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("got %d history entries after duplicate approve, want 1", len(history))
	}
}

func TestApproveMergeFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createSite(t)
	change := h.propose(t)
	h.branches.mergeErr = errors.New("409 merge conflict")

	if err := h.coordinator.Approve(ctx, "u1", "s1", change.ID); err == nil {
		t.Fatal("expected merge failure")
	}

	stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
	if err != nil {
		t.Fatalf("GetPendingChange() = %v", err)
	}
	if stored.Status != model.StatusPending {
		t.Errorf("status = %q, want pending after failed merge", stored.Status)
	}
	history, err := h.store.ListHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListHistory() = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("got %d history entries after failed merge, want 0", len(history))
	}
}

func TestApproveBranchCleanupFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createSite(t)
	change := h.propose(t)
	h.branches.deleteErr = errors.New("422 ref locked")

	if err := h.coordinator.Approve(ctx, "u1", "s1", change.ID); err != nil {
		t.Fatalf("Approve() = %v, cleanup failures must not block approval", err)
	}
	stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
	if err != nil {
		t.Fatalf("GetPendingChange() = %v", err)
	}
	if stored.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", stored.Status)
	}
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createSite(t)
	change := h.propose(t)

	if err := h.coordinator.Reject(ctx, "u1", "s1", change.ID); err != nil {
		t.Fatalf("Reject() = %v", err)
	}

	if len(h.branches.merges) != 0 {
		t.Errorf("reject must not merge, got %v", h.branches.merges)
	}
	if diff := cmp.Diff([]string{change.BranchName}, h.branches.deleted); diff != "" {
		t.Errorf("deleted branches mismatch (-want +got):\n%s", diff)
	}

	stored, err := h.store.GetPendingChange(ctx, change.ID, "s1")
	if err != nil {
		t.Fatalf("GetPendingChange() = %v", err)
	}
	if stored.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", stored.Status)
	}

	// Only merged changes are historical record.
	history, err := h.store.ListHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListHistory() = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("got %d history entries after reject, want 0", len(history))
	}

	err = h.coordinator.Reject(ctx, "u1", "s1", change.ID)
	if kind := model.KindOf(err); kind != model.KindAlreadyResolved {
		t.Errorf("second Reject() kind = %q, want %q", kind, model.KindAlreadyResolved)
	}
}
