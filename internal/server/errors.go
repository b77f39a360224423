package server

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/emrgen/impact/internal/service"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "analysis in progress"
	case errors.Is(err, service.ErrUpstreamFailure):
		return http.StatusInternalServerError, "analysis failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError maps err to a status code. The stack is only exposed in debug mode.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusOf(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logrus.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
	}

	body := errorBody{Error: message, Details: err.Error()}
	if a.debug {
		body.Stack = string(debug.Stack())
	}

	a.writeJSON(w, r, status, body)
}
