/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package snapshot walks a repository branch on the version-control host and
// returns the subset of files eligible for AI editing.
package snapshot

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v71/github"

	"github.com/phinehas2020/ai-website-editor/model"
)

// editableExtensions is the allow-list of file extensions eligible for AI
// editing: markup, script, style, template, data, and documentation files.
var editableExtensions = map[string]bool{
	".tsx":  true,
	".ts":   true,
	".jsx":  true,
	".js":   true,
	".json": true,
	".css":  true,
	".scss": true,
	".html": true,
	".md":   true,
}

// excludedPaths are substrings that disqualify a path from the snapshot.
// Matching is deliberately a substring-of-path test rather than a segment
// test: conservative exclusion is preferred, even though it also drops files
// like "api/README.md".
var excludedPaths = []string{
	"node_modules",
	".env",
	".git",
	"package-lock.json",
	"next.config",
	"api/",
	".next",
	"dist",
	"build",
}

// ContentAPI is the slice of the GitHub Repositories API the fetcher needs.
// *github.RepositoriesService satisfies it.
type ContentAPI interface {
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

// Fetcher fetches editable source snapshots.
type Fetcher struct {
	contents ContentAPI
}

// New returns a Fetcher backed by the given contents API.
func New(contents ContentAPI) *Fetcher {
	return &Fetcher{contents: contents}
}

// Fetch walks the given branch from the repository root and returns every
// editable file with its decoded content. An empty result is not an error.
// An unreachable host fails with KindUpstreamUnavailable; failures below the
// root (unreadable subdirectories, undecodable file contents) are logged and
// skipped so one bad entry never aborts the walk.
func (f *Fetcher) Fetch(ctx context.Context, repo model.Repo, branch string) ([]model.File, error) {
	log := clog.FromContext(ctx)
	opts := &github.RepositoryContentGetOptions{Ref: branch}

	var files []model.File
	var walk func(dir string) error
	walk = func(dir string) error {
		_, entries, _, err := f.contents.GetContents(ctx, repo.Owner, repo.Name, dir, opts)
		if err != nil {
			if dir == "" {
				return model.Wrap(model.KindUpstreamUnavailable, err, "listing repository %s@%s", repo, branch)
			}
			log.With("dir", dir).With("error", err.Error()).Warn("Skipping unreadable directory")
			return nil
		}
		for _, entry := range entries {
			switch entry.GetType() {
			case "dir":
				if isExcluded(entry.GetPath()) {
					continue
				}
				if err := walk(entry.GetPath()); err != nil {
					return err
				}
			case "file":
				if !isEditable(entry.GetPath()) {
					continue
				}
				content, err := f.fileContent(ctx, repo, entry.GetPath(), opts)
				if err != nil {
					log.With("path", entry.GetPath()).With("error", err.Error()).Warn("Skipping unreadable file")
					continue
				}
				files = append(files, model.File{Path: entry.GetPath(), Content: content})
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}
	return files, nil
}

// fileContent fetches and decodes a single file from the host's transport
// encoding into text.
func (f *Fetcher) fileContent(ctx context.Context, repo model.Repo, filePath string, opts *github.RepositoryContentGetOptions) (string, error) {
	file, _, _, err := f.contents.GetContents(ctx, repo.Owner, repo.Name, filePath, opts)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", filePath, err)
	}
	if file == nil {
		return "", fmt.Errorf("fetching %s: not a file", filePath)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", filePath, err)
	}
	return content, nil
}

func isExcluded(p string) bool {
	for _, excluded := range excludedPaths {
		if strings.Contains(p, excluded) {
			return true
		}
	}
	return false
}

// isEditable reports whether the path has an allow-listed extension and is
// not excluded.
func isEditable(p string) bool {
	return editableExtensions[strings.ToLower(path.Ext(p))] && !isExcluded(p)
}
