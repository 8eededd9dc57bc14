package server

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: status, Message: msg}})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// lazyResponse defers the status line and headers until the first body byte, so
// a failure before any output can still be answered with an error status.
type lazyResponse struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	started     bool
}

func (l *lazyResponse) start() {
	if l.started {
		return
	}
	l.started = true
	h := l.w.Header()
	h.Set("Content-Type", l.contentType)
	h.Set("Content-Disposition", "attachment; filename="+l.filename)
	l.w.WriteHeader(http.StatusOK)
}

func (l *lazyResponse) Write(p []byte) (int, error) {
	l.start()
	return l.w.Write(p)
}

// Flush implements http.Flusher. It is a no-op until output has started.
func (l *lazyResponse) Flush() {
	if !l.started {
		return
	}
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}
