/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package deploystatus correlates preview deployments on the deployment
// platform with the branch that produced them.
//
// The deployment platform reports readiness asynchronously and out-of-band:
// there is no webhook channel, so the only correlation key is the source
// branch name recorded on each deployment. The correlator is designed to be
// polled repeatedly, and therefore degrades every transport or auth failure
// to "pending" rather than surfacing an error the caller cannot act on.
package deploystatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chainguard-dev/clog"
)

// Status is the readiness state of a preview deployment.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Result is the outcome of one correlation poll. URL is set only when the
// status is ready.
type Result struct {
	Status Status `json:"status"`
	URL    string `json:"url,omitempty"`
}

// Correlator maps a (project, branch) pair to deployment readiness.
type Correlator interface {
	Correlate(ctx context.Context, project, branch string) Result
}

const defaultBaseURL = "https://api.vercel.com"

// recentDeployments bounds the listing query; the deployment we want is
// always among the most recent few for the project.
const recentDeployments = 5

// Vercel implements Correlator against the Vercel deployments API.
type Vercel struct {
	client  *http.Client
	baseURL string
	token   string
	teamID  string
}

// VercelOption configures a Vercel correlator.
type VercelOption func(*Vercel)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) VercelOption {
	return func(v *Vercel) {
		v.client = client
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(baseURL string) VercelOption {
	return func(v *Vercel) {
		v.baseURL = baseURL
	}
}

// NewVercel returns a Correlator for the given API token and team.
func NewVercel(token, teamID string, opts ...VercelOption) *Vercel {
	v := &Vercel{
		client:  http.DefaultClient,
		baseURL: defaultBaseURL,
		token:   token,
		teamID:  teamID,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// deployment is the subset of the Vercel deployment record we consume.
type deployment struct {
	URL   string `json:"url"`
	State string `json:"state"`
	Meta  struct {
		GithubCommitRef string `json:"githubCommitRef"`
	} `json:"meta"`
}

// Correlate lists the most recent preview deployments for project and matches
// the one whose source branch equals branch exactly. No match, a match still
// building, or any upstream failure all map to pending.
func (v *Vercel) Correlate(ctx context.Context, project, branch string) Result {
	log := clog.FromContext(ctx)

	query := url.Values{
		"projectId": {project},
		"teamId":    {v.teamID},
		"target":    {"preview"},
		"limit":     {fmt.Sprint(recentDeployments)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v6/deployments?"+query.Encode(), nil)
	if err != nil {
		log.With("error", err.Error()).Warn("Building deployment listing request failed")
		return Result{Status: StatusPending}
	}
	req.Header.Set("Authorization", "Bearer "+v.token)

	resp, err := v.client.Do(req)
	if err != nil {
		log.With("error", err.Error()).Warn("Deployment listing failed, treating as pending")
		return Result{Status: StatusPending}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.With("status", resp.StatusCode).Warn("Deployment listing returned non-OK, treating as pending")
		return Result{Status: StatusPending}
	}

	var body struct {
		Deployments []deployment `json:"deployments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.With("error", err.Error()).Warn("Decoding deployment listing failed, treating as pending")
		return Result{Status: StatusPending}
	}

	for _, d := range body.Deployments {
		if d.Meta.GithubCommitRef != branch {
			continue
		}
		switch d.State {
		case "READY":
			return Result{Status: StatusReady, URL: "https://" + d.URL}
		case "ERROR":
			return Result{Status: StatusError}
		default:
			// Building, queued, etc.
			return Result{Status: StatusPending}
		}
	}
	// The deployment has not registered yet.
	return Result{Status: StatusPending}
}

// PreviewURL computes the deployment platform's predictable preview URL for a
// project and branch, used as a placeholder until the correlator reports the
// real one.
func PreviewURL(project, branch, teamID string) string {
	return fmt.Sprintf("https://%s-git-%s-%s.vercel.app", project, branch, teamID)
}
