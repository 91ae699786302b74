/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes the workflow engine's HTTP API to the presentation
// layer. Every route requires an authenticated caller, and every operation
// under a site enforces that the caller owns it before touching pending
// changes or history.
package server

import (
	"net/http"

	"github.com/phinehas2020/ai-website-editor/storage"
	"github.com/phinehas2020/ai-website-editor/workflow"
)

// Server wires the HTTP routes to the coordinator and store.
type Server struct {
	coordinator *workflow.Coordinator
	store       storage.Store
	auth        Authenticator
}

// New returns a Server over the given collaborators.
func New(coordinator *workflow.Coordinator, store storage.Store, auth Authenticator) *Server {
	return &Server{coordinator: coordinator, store: store, auth: auth}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /models", s.authed(s.handleListModels))

	mux.HandleFunc("POST /sites", s.authed(s.handleCreateSite))
	mux.HandleFunc("GET /sites", s.authed(s.handleListSites))
	mux.HandleFunc("GET /sites/{id}", s.authed(s.handleGetSite))
	mux.HandleFunc("PUT /sites/{id}", s.authed(s.handleUpdateSite))
	mux.HandleFunc("DELETE /sites/{id}", s.authed(s.handleDeleteSite))

	mux.HandleFunc("POST /sites/{id}/changes", s.authed(s.handleProposeChange))
	mux.HandleFunc("GET /sites/{id}/changes/{changeID}", s.authed(s.handlePreviewStatus))
	mux.HandleFunc("POST /sites/{id}/changes/{changeID}/approve", s.authed(s.handleApproveChange))
	mux.HandleFunc("POST /sites/{id}/changes/{changeID}/reject", s.authed(s.handleRejectChange))

	mux.HandleFunc("GET /sites/{id}/history", s.authed(s.handleListHistory))

	return mux
}

// authed wraps a handler with caller authentication, passing the resolved
// user ID through.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.Authenticate(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		next(w, r, userID)
	}
}
