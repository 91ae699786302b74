/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"strings"
	"time"
)

// Site is a managed website backed by a repository on the version-control
// host and, optionally, a project on the deployment platform.
type Site struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`

	// RepoName is either "owner/repo" or a bare repository name that is
	// resolved against the configured default owner.
	RepoName string `json:"repoName"`

	// VercelProjectID identifies the preview-deployment project. When empty,
	// the bare repository name is used instead.
	VercelProjectID string `json:"vercelProjectId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChangeStatus is the lifecycle state of a PendingChange.
type ChangeStatus string

const (
	StatusPending  ChangeStatus = "pending"
	StatusApproved ChangeStatus = "approved"
	StatusRejected ChangeStatus = "rejected"
)

// PendingChange is one in-flight or resolved change proposal, staged on its
// own branch. Once the status leaves "pending" the record is immutable except
// for the preview URL, which may still be refreshed for audit display.
type PendingChange struct {
	ID           string       `json:"id"`
	SiteID       string       `json:"siteId"`
	BranchName   string       `json:"branchName"`
	PreviewURL   string       `json:"previewUrl,omitempty"`
	UserMessage  string       `json:"userMessage"`
	AISummary    string       `json:"aiSummary"`
	FilesChanged []string     `json:"filesChanged"`
	Status       ChangeStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ChangeHistoryEntry is the immutable audit record written when a pending
// change is merged. It copies the fields it needs from the approved change,
// so nothing references the resolved proposal afterwards.
type ChangeHistoryEntry struct {
	ID           string    `json:"id"`
	SiteID       string    `json:"siteId"`
	UserMessage  string    `json:"userMessage"`
	AISummary    string    `json:"aiSummary"`
	FilesChanged []string  `json:"filesChanged"`
	CommittedAt  time.Time `json:"committedAt"`
}

// File is a single file path and its full text content.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Repo is a normalized owner/name pair on the version-control host.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo normalizes a repository identifier. An identifier containing a
// separator is split into owner and name; a bare identifier is paired with
// the configured default owner.
func ParseRepo(ref, defaultOwner string) Repo {
	ref = strings.TrimSpace(ref)
	if owner, name, ok := strings.Cut(ref, "/"); ok {
		return Repo{Owner: strings.TrimSpace(owner), Name: strings.TrimSpace(name)}
	}
	return Repo{Owner: defaultOwner, Name: ref}
}

// BareName returns the repository name without its owner, which is what the
// deployment platform uses as the fallback project identifier.
func (r Repo) BareName() string {
	return r.Name
}
