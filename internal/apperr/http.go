package apperr

import (
	"errors"
	"net/http"
)

var statusByKind = map[Kind]int{
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindInvalidState: http.StatusConflict,
	KindConflict:     http.StatusConflict,
	KindValidation:   http.StatusBadRequest,
	KindUpstream:     http.StatusBadGateway,
	KindInternal:     http.StatusInternalServerError,
}

// HTTPStatus maps err's kind to a response status.
func HTTPStatus(err error) int {
	if code, ok := statusByKind[KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Body is the JSON error envelope: {"error":{"kind","message","fields"}}.
type Body struct {
	Error BodyError `json:"error"`
}

type BodyError struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ToBody renders err for clients. Internal causes never leave the process.
func ToBody(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{Error: BodyError{Kind: KindInternal, Message: "internal error"}}
	}
	msg := e.Message
	if e.Kind == KindInternal {
		msg = "internal error"
	}
	return Body{Error: BodyError{Kind: e.Kind, Message: msg, Fields: e.Fields}}
}
