/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package deploystatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeDeployment struct {
	URL   string            `json:"url"`
	State string            `json:"state"`
	Meta  map[string]string `json:"meta"`
}

func newFakeVercel(t *testing.T, status int, deployments []fakeDeployment) (*Vercel, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"deployments": deployments})
		}
	}))
	t.Cleanup(srv.Close)
	return NewVercel("test-token", "team_123", WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), &captured
}

func TestCorrelate(t *testing.T) {
	for _, tt := range []struct {
		name        string
		deployments []fakeDeployment
		want        Result
	}{{
		name: "ready deployment",
		deployments: []fakeDeployment{{
			URL:   "site-git-preview-1-team.vercel.app",
			State: "READY",
			Meta:  map[string]string{"githubCommitRef": "preview-1"},
		}},
		want: Result{Status: StatusReady, URL: "https://site-git-preview-1-team.vercel.app"},
	}, {
		name: "errored deployment",
		deployments: []fakeDeployment{{
			State: "ERROR",
			Meta:  map[string]string{"githubCommitRef": "preview-1"},
		}},
		want: Result{Status: StatusError},
	}, {
		name: "still building",
		deployments: []fakeDeployment{{
			State: "BUILDING",
			Meta:  map[string]string{"githubCommitRef": "preview-1"},
		}},
		want: Result{Status: StatusPending},
	}, {
		name: "no deployment for branch yet",
		deployments: []fakeDeployment{{
			State: "READY",
			Meta:  map[string]string{"githubCommitRef": "preview-other"},
		}},
		want: Result{Status: StatusPending},
	}, {
		name:        "empty listing",
		deployments: nil,
		want:        Result{Status: StatusPending},
	}, {
		name: "first match wins",
		deployments: []fakeDeployment{{
			URL:   "newest.vercel.app",
			State: "READY",
			Meta:  map[string]string{"githubCommitRef": "preview-1"},
		}, {
			State: "ERROR",
			Meta:  map[string]string{"githubCommitRef": "preview-1"},
		}},
		want: Result{Status: StatusReady, URL: "https://newest.vercel.app"},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newFakeVercel(t, http.StatusOK, tt.deployments)
			got := v.Correlate(context.Background(), "site", "preview-1")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Correlate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCorrelateRequestShape(t *testing.T) {
	v, captured := newFakeVercel(t, http.StatusOK, nil)
	v.Correlate(context.Background(), "my-project", "preview-1")

	if got, want := captured.URL.Path, "/v6/deployments"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	query := captured.URL.Query()
	for key, want := range map[string]string{
		"projectId": "my-project",
		"teamId":    "team_123",
		"target":    "preview",
		"limit":     "5",
	} {
		if got := query.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if got, want := captured.Header.Get("Authorization"), "Bearer test-token"; got != want {
		t.Errorf("authorization = %q, want %q", got, want)
	}
}

func TestCorrelateUpstreamFailure(t *testing.T) {
	// Every upstream failure degrades to pending; the correlator is polled,
	// so a transient failure only delays readiness.
	v, _ := newFakeVercel(t, http.StatusInternalServerError, nil)
	got := v.Correlate(context.Background(), "site", "preview-1")
	if got.Status != StatusPending {
		t.Errorf("Correlate() status = %q, want %q", got.Status, StatusPending)
	}
}

func TestCorrelateUnreachableHost(t *testing.T) {
	v := NewVercel("tok", "team", WithBaseURL("http://127.0.0.1:0"))
	got := v.Correlate(context.Background(), "site", "preview-1")
	if got.Status != StatusPending {
		t.Errorf("Correlate() status = %q, want %q", got.Status, StatusPending)
	}
}

func TestPreviewURL(t *testing.T) {
	got := PreviewURL("my-site", "preview-1756712345678", "team_123")
	want := "https://my-site-git-preview-1756712345678-team_123.vercel.app"
	if got != want {
		t.Errorf("PreviewURL() = %q, want %q", got, want)
	}
}
