// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/todo"
	"github.com/tasklist/tasklist/pkg/errutil"
)

// Response codes that do not come from a service error kind.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeTodoNotFound     = "TODO_NOT_FOUND"
	CodeTodoInvalid      = "TODO_INVALID"
	CodeRateLimited      = "RATE_LIMITED"
	CodeRouteNotFound    = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRequestCanceled  = "REQUEST_CANCELED"
	CodeInternal         = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is the nginx convention for a request the client
// abandoned before the server answered.
const StatusClientClosedRequest = 499

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Status: "error", Code: code, Message: message})
}

// problem is the HTTP rendering of an error.
type problem struct {
	status  int
	code    string
	message string
}

// classify maps an error to its HTTP status and response code by kind.
func classify(err error) problem {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return problem{StatusClientClosedRequest, CodeRequestCanceled, "request canceled"}
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return problem{http.StatusConflict, auth.CodeDuplicateIdentity, "an account with this email already exists"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return problem{http.StatusUnauthorized, auth.CodeInvalidCredentials, "invalid credentials"}
	case errors.Is(err, auth.ErrUnauthenticated):
		return problem{http.StatusUnauthorized, auth.CodeUnauthenticated, "authentication required"}
	case errors.Is(err, auth.ErrNotificationFailed):
		return problem{http.StatusBadGateway, auth.CodeNotificationFailed, "could not deliver the reset email"}
	case errors.Is(err, auth.ErrStoreUnavailable):
		return problem{http.StatusServiceUnavailable, auth.CodeStoreUnavailable, "service temporarily unavailable"}
	case errors.Is(err, auth.ErrHashingFailed):
		return problem{http.StatusInternalServerError, auth.CodeHashFailed, "internal error"}
	case errors.Is(err, todo.ErrNotFound):
		return problem{http.StatusNotFound, CodeTodoNotFound, "todo not found"}
	case errors.Is(err, todo.ErrInvalid):
		return problem{http.StatusBadRequest, CodeTodoInvalid, invalidMessage(err)}
	default:
		return problem{http.StatusInternalServerError, CodeInternal, "internal error"}
	}
}

// invalidMessage returns the innermost validation message, e.g. "title is required".
func invalidMessage(err error) string {
	msg := todo.ErrInvalid.Error()
	for e := err; e != nil; e = errors.Unwrap(e) {
		if e != todo.ErrInvalid && errors.Is(e, todo.ErrInvalid) {
			msg = strings.TrimSuffix(e.Error(), ": "+todo.ErrInvalid.Error())
		}
	}
	return msg
}

// respondError logs err and writes its classified response. Server-side
// failures log at error level, client errors at debug.
func respondError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	p := classify(err)
	if p.status >= http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, logger, "request failed", err)
	} else {
		logger.DebugContext(ctx, "request rejected", errutil.Attrs(err)...)
	}
	writeError(w, p.status, p.code, p.message)
}
