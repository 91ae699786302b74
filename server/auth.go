/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no valid credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator authenticates a caller and yields a stable user identifier.
// Credential issuance itself is out of scope for this service; any capability
// that can map a request to a user ID can be plugged in here.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// StaticTokens authenticates Bearer tokens against a fixed token-to-user
// mapping supplied through configuration.
type StaticTokens map[string]string

// ParseStaticTokens parses a "token:user,token:user" specification.
func ParseStaticTokens(spec string) (StaticTokens, error) {
	tokens := StaticTokens{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		if !ok || token == "" || user == "" {
			return nil, errors.New("auth tokens must be comma-separated token:user pairs")
		}
		tokens[token] = user
	}
	return tokens, nil
}

func (t StaticTokens) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", ErrUnauthenticated
	}
	userID, ok := t[strings.TrimSpace(token)]
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
