package onboarding

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError lets guards and handlers carry an HTTP status with an error.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError is the simplest HTTPError implementation.
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// errorEnvelope is the wire shape for failures. Detail only appears in dev
// mode; Fields carries per-field validation messages when present.
type errorEnvelope struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (c *Component) guard(w http.ResponseWriter, r *http.Request) bool {
	if c.opts.Guard == nil {
		return true
	}
	err := c.opts.Guard(r)
	if err == nil {
		return true
	}

	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode() > 0 {
		code = httpErr.StatusCode()
	}
	c.writeError(w, code, http.StatusText(code), err)
	return false
}

func (c *Component) writeError(w http.ResponseWriter, code int, message string, err error) {
	envelope := errorEnvelope{Error: message}
	if err != nil {
		if c.opts.DevMode {
			envelope.Detail = err.Error()
		}
		if code >= 500 {
			c.opts.Logger.WithError(err).Error(message)
		} else {
			c.opts.Logger.WithError(err).Debug(message)
		}
	}
	writeJSON(w, code, envelope)
}

func (c *Component) writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{
		Error:  "validation failed",
		Fields: fields,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func methodGuard(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}
