/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"

	"github.com/phinehas2020/ai-website-editor/model"
)

// errorBody is the wire shape for failures: a stable (code, message) pair.
type errorBody struct {
	Code    model.ErrorKind `json:"code"`
	Message string          `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps an error classification to an HTTP status code.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidInput, model.KindNoEditableFiles:
		return http.StatusBadRequest
	case model.KindAlreadyResolved:
		return http.StatusConflict
	case model.KindUpstreamUnavailable, model.KindMalformedGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response. Unclassified errors are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	message := "internal server error"
	var we *model.Error
	if errors.As(err, &we) {
		message = we.Message
	} else {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Unclassified handler error")
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: errorBody{Code: kind, Message: message}})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
		Code:    "unauthorized",
		Message: "missing or invalid credentials",
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
