/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package branchmanager manages branch lifecycles on the version-control
// host: create, commit, merge, and delete, each expressed as an idempotent
// intent over the remote API.
package branchmanager

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v71/github"

	"github.com/phinehas2020/ai-website-editor/model"
)

// GitAPI is the slice of the GitHub Git API the manager needs.
// *github.GitService satisfies it.
type GitAPI interface {
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error)
	CreateRef(ctx context.Context, owner, repo string, ref *github.Reference) (*github.Reference, *github.Response, error)
	DeleteRef(ctx context.Context, owner, repo, ref string) (*github.Response, error)
}

// RepoAPI is the slice of the GitHub Repositories API the manager needs.
// *github.RepositoriesService satisfies it.
type RepoAPI interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	CreateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
	UpdateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
	Merge(ctx context.Context, owner, repo string, req *github.RepositoryMergeRequest) (*github.RepositoryCommit, *github.Response, error)
}

// Manager performs branch lifecycle operations against the host.
type Manager struct {
	git   GitAPI
	repos RepoAPI
}

// New returns a Manager backed by the given GitHub client.
func New(client *github.Client) *Manager {
	return &Manager{git: client.Git, repos: client.Repositories}
}

// NewFromAPIs returns a Manager backed by the given API slices. Useful for
// substituting fakes in tests.
func NewFromAPIs(git GitAPI, repos RepoAPI) *Manager {
	return &Manager{git: git, repos: repos}
}

// DefaultBranch asks the host which branch is the repository's mainline. The
// host, not the caller, is authoritative for this: it can change.
func (m *Manager) DefaultBranch(ctx context.Context, repo model.Repo) (string, error) {
	r, _, err := m.repos.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return "", model.Wrap(model.KindUpstreamUnavailable, err, "getting repository %s", repo)
	}
	return r.GetDefaultBranch(), nil
}

// CreateBranch resolves the current commit of baseName and creates newName
// pointing at it. Fails if the base ref does not exist or newName already
// exists.
func (m *Manager) CreateBranch(ctx context.Context, repo model.Repo, newName, baseName string) error {
	base, _, err := m.git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+baseName)
	if err != nil {
		return model.Wrap(model.KindUpstreamUnavailable, err, "resolving base branch %q in %s", baseName, repo)
	}
	_, _, err = m.git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + newName),
		Object: &github.GitObject{SHA: base.GetObject().SHA},
	})
	if err != nil {
		return model.Wrap(model.KindUpstreamUnavailable, err, "creating branch %q in %s", newName, repo)
	}
	return nil
}

// CommitFiles commits each file to branch independently: an existing file is
// updated using its current content hash (required by the host to prevent
// lost updates), a new file is created. A failure partway through leaves a
// partially-committed branch; callers must treat any error as "commit stage
// failed" and not use the branch as a preview source.
func (m *Manager) CommitFiles(ctx context.Context, repo model.Repo, branch string, files []model.File, message string) error {
	for _, file := range files {
		sha, err := m.contentSHA(ctx, repo, file.Path, branch)
		if err != nil {
			return err
		}
		opts := &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(file.Content),
			Branch:  github.Ptr(branch),
		}
		if sha != "" {
			opts.SHA = github.Ptr(sha)
			_, _, err = m.repos.UpdateFile(ctx, repo.Owner, repo.Name, file.Path, opts)
		} else {
			_, _, err = m.repos.CreateFile(ctx, repo.Owner, repo.Name, file.Path, opts)
		}
		if err != nil {
			return model.Wrap(model.KindUpstreamUnavailable, err, "committing %s to %s@%s", file.Path, repo, branch)
		}
	}
	return nil
}

// contentSHA returns the current content hash of path on branch, or "" if the
// file does not exist there.
func (m *Manager) contentSHA(ctx context.Context, repo model.Repo, path, branch string) (string, error) {
	file, _, resp, err := m.repos.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", model.Wrap(model.KindUpstreamUnavailable, err, "looking up %s on %s@%s", path, repo, branch)
	}
	if file == nil {
		// Path resolved to a directory; committing over it is a host-side
		// error we would rather surface now.
		return "", model.E(model.KindUpstreamUnavailable, "%s on %s@%s is a directory", path, repo, branch)
	}
	return file.GetSHA(), nil
}

// MergeBranch performs a host-native merge of head into base. Fails on
// conflict or missing refs.
func (m *Manager) MergeBranch(ctx context.Context, repo model.Repo, head, base string) error {
	_, _, err := m.repos.Merge(ctx, repo.Owner, repo.Name, &github.RepositoryMergeRequest{
		Base:          github.Ptr(base),
		Head:          github.Ptr(head),
		CommitMessage: github.Ptr(fmt.Sprintf("Merge %s into %s", head, base)),
	})
	if err != nil {
		return model.Wrap(model.KindUpstreamUnavailable, err, "merging %q into %q in %s", head, base, repo)
	}
	return nil
}

// DeleteBranch deletes the branch ref. Callers treat this as best-effort
// cleanup: a deletion failure after a successful state transition is logged,
// never escalated.
func (m *Manager) DeleteBranch(ctx context.Context, repo model.Repo, branch string) error {
	if _, err := m.git.DeleteRef(ctx, repo.Owner, repo.Name, "refs/heads/"+branch); err != nil {
		return model.Wrap(model.KindUpstreamUnavailable, err, "deleting branch %q in %s", branch, repo)
	}
	return nil
}
