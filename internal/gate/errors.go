// Package gate implements the Request Gate (§4.7): the entry point for
// every API call, resolving identity from a bearer JWT (or local-bypass
// mode), invoking the Authorization Engine, and carrying the bootstrap
// rule and password-based login/registration.
package gate

import (
	"encoding/json"
	"net/http"
)

// Kind is a machine-readable error classification from §6's error
// envelope table.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidJSON        Kind = "invalid_json"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindProjectNotFound    Kind = "project_not_found"
	KindWorkNotFound       Kind = "work_not_found"
	KindFileNotFound       Kind = "file_not_found"
	KindTemplateNotFound   Kind = "template_not_found"
	KindMethodNotAllowed   Kind = "method_not_allowed"
	KindAlreadyExists      Kind = "already_exists"
	KindInternal           Kind = "internal"
)

var statusForKind = map[Kind]int{
	KindInvalidRequest:   http.StatusBadRequest,
	KindInvalidJSON:      http.StatusBadRequest,
	KindUnauthorized:     http.StatusUnauthorized,
	KindForbidden:        http.StatusForbidden,
	KindProjectNotFound:  http.StatusNotFound,
	KindWorkNotFound:     http.StatusNotFound,
	KindFileNotFound:     http.StatusNotFound,
	KindTemplateNotFound: http.StatusNotFound,
	KindMethodNotAllowed: http.StatusMethodNotAllowed,
	KindAlreadyExists:    http.StatusConflict,
	KindInternal:         http.StatusInternalServerError,
}

// errorBody is the JSON shape every failed response carries, per §6.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the §6 error envelope for kind, with message as the
// human-readable detail.
func WriteError(w http.ResponseWriter, kind Kind, message string) {
	status, ok := statusForKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: string(kind), Message: message})
}
