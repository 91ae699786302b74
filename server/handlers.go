/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/phinehas2020/ai-website-editor/codegen"
	"github.com/phinehas2020/ai-website-editor/model"
)

// recentHistoryLimit bounds the history included in the site detail view;
// the full history has its own endpoint.
const recentHistoryLimit = 10

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, map[string]any{"models": codegen.Catalog()})
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Name            string `json:"name"`
		RepoName        string `json:"repoName"`
		VercelProjectID string `json:"vercelProjectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, model.E(model.KindInvalidInput, "invalid request body"))
		return
	}
	if body.Name == "" || body.RepoName == "" {
		writeError(w, r, model.E(model.KindInvalidInput, "name and repoName are required"))
		return
	}

	site := &model.Site{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            body.Name,
		RepoName:        body.RepoName,
		VercelProjectID: body.VercelProjectID,
	}
	if err := s.store.CreateSite(r.Context(), site); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"site": site})
}

// siteSummary is a site plus its most recent still-pending change, used by
// the list view.
type siteSummary struct {
	*model.Site
	LatestPendingChange *model.PendingChange `json:"latestPendingChange,omitempty"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request, userID string) {
	sites, err := s.store.ListSites(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summaries := make([]siteSummary, 0, len(sites))
	for _, site := range sites {
		latest, err := s.store.LatestPendingChange(r.Context(), site.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		summaries = append(summaries, siteSummary{Site: site, LatestPendingChange: latest})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": summaries})
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request, userID string) {
	site, err := s.store.GetSite(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changes, err := s.store.ListPendingChanges(r.Context(), site.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.store.ListHistory(r.Context(), site.ID, recentHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site":           site,
		"pendingChanges": orEmptyChanges(changes),
		"history":        orEmptyHistory(history),
	})
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Name            *string `json:"name"`
		VercelProjectID *string `json:"vercelProjectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, model.E(model.KindInvalidInput, "invalid request body"))
		return
	}

	site, err := s.store.GetSite(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body.Name != nil {
		if *body.Name == "" {
			writeError(w, r, model.E(model.KindInvalidInput, "name cannot be empty"))
			return
		}
		site.Name = *body.Name
	}
	if body.VercelProjectID != nil {
		site.VercelProjectID = *body.VercelProjectID
	}
	if err := s.store.UpdateSite(r.Context(), site); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"site": site})
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request, userID string) {
	site, err := s.store.GetSite(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteSite(r.Context(), site.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "site deleted"})
}

func (s *Server) handleProposeChange(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Message string `json:"message"`
		Model   string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, model.E(model.KindInvalidInput, "invalid request body"))
		return
	}
	if body.Message == "" {
		writeError(w, r, model.E(model.KindInvalidInput, "message is required"))
		return
	}
	choice := codegen.ModelChoice(body.Model)
	if body.Model == "" {
		choice = codegen.ModelGeminiFlash
	}

	result, err := s.coordinator.Propose(r.Context(), userID, r.PathValue("id"), body.Message, choice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.NoChanges {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "No changes needed for this request",
			"summary":      result.Summary,
			"filesChanged": []string{},
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"pendingChangeId": result.Change.ID,
		"branchName":      result.Change.BranchName,
		"previewUrl":      result.Change.PreviewURL,
		"summary":         result.Summary,
		"filesChanged":    result.Change.FilesChanged,
	})
}

func (s *Server) handlePreviewStatus(w http.ResponseWriter, r *http.Request, userID string) {
	status, err := s.coordinator.RefreshPreview(r.Context(), userID, r.PathValue("id"), r.PathValue("changeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           status.Change.ID,
		"branchName":   status.Change.BranchName,
		"previewUrl":   status.URL,
		"status":       status.Status,
		"changeStatus": status.Change.Status,
		"userMessage":  status.Change.UserMessage,
		"aiSummary":    status.Change.AISummary,
		"filesChanged": status.Change.FilesChanged,
		"createdAt":    status.Change.CreatedAt,
	})
}

func (s *Server) handleApproveChange(w http.ResponseWriter, r *http.Request, userID string) {
	changeID := r.PathValue("changeID")
	if err := s.coordinator.Approve(r.Context(), userID, r.PathValue("id"), changeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "changes approved and merged",
		"changeId": changeID,
	})
}

func (s *Server) handleRejectChange(w http.ResponseWriter, r *http.Request, userID string) {
	changeID := r.PathValue("changeID")
	if err := s.coordinator.Reject(r.Context(), userID, r.PathValue("id"), changeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "changes rejected and branch deleted",
		"changeId": changeID,
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request, userID string) {
	site, err := s.store.GetSite(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.store.ListHistory(r.Context(), site.ID, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": orEmptyHistory(history)})
}

func orEmptyChanges(changes []*model.PendingChange) []*model.PendingChange {
	if changes == nil {
		return []*model.PendingChange{}
	}
	return changes
}

func orEmptyHistory(entries []*model.ChangeHistoryEntry) []*model.ChangeHistoryEntry {
	if entries == nil {
		return []*model.ChangeHistoryEntry{}
	}
	return entries
}
