package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/preview"
	"github.com/conneroisu/livepen/internal/renderer"
	"github.com/conneroisu/livepen/internal/version"
)

// HintsResponse is the body of GET /api/hints.
type HintsResponse struct {
	Prefix string   `json:"prefix"`
	Hints  []string `json:"hints"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	// Buffer the page so a render failure still yields a clean 500.
	var buf bytes.Buffer
	if err := EditorPage(s.controller.Snapshot()).Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render editor page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handlePreview serves the compiled document on its own, sandboxed the
// same way as the preview frame.
func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	state := s.controller.Snapshot()
	w.Header().Set("Content-Security-Policy", preview.ContentSecurityPolicy)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Preview-Generation", strconv.FormatUint(state.Generation, 10))
	if err := renderer.Raw(state.Output).Render(r.Context(), w); err != nil {
		s.logger.Debug(r.Context(), "Preview write failed", "error", err)
	}
}

func (s *PreviewServer) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.controller.Snapshot())
}

func (s *PreviewServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var msg inboundMessage
	if err := s.decodeBody(w, r, &msg); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg.Type = inboundEdit

	if err := s.applyInbound(r.Context(), msg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.controller.Snapshot())
}

func (s *PreviewServer) handleTab(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var msg inboundMessage
	if err := s.decodeBody(w, r, &msg); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg.Type = inboundTab

	if err := s.applyInbound(r.Context(), msg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.controller.Snapshot())
}

func (s *PreviewServer) handleHints(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	prefix := r.URL.Query().Get("prefix")
	limit := editor.DefaultHintLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeInvalidMessage, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	hints := editor.Hints(prefix, limit)
	if hints == nil {
		hints = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, HintsResponse{Prefix: prefix, Hints: hints})
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	state := s.controller.Snapshot()
	compiler := map[string]interface{}{"status": "healthy", "ready": state.CompilerReady}
	if !state.CompilerReady {
		compiler["status"] = "degraded"
		compiler["message"] = "styles are not compiled"
	}

	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"server":   map[string]interface{}{"status": "healthy", "clients": s.ClientCount()},
			"compiler": compiler,
			"preview":  previewCheck(state),
		},
	}
	s.writeJSON(w, r, http.StatusOK, health)
}

func previewCheck(state editor.State) map[string]interface{} {
	css, _ := renderer.StyleBlock(state.Output)
	return map[string]interface{}{
		"generation": state.Generation,
		"status":     state.Status,
		"styled":     css != "",
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *PreviewServer) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidMessage, "malformed request body: "+err.Error())
	}
	return nil
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}

func (s *PreviewServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	var le *errors.LivepenError
	switch {
	case stderrors.As(err, &le):
		resp.Code = le.Code
		switch le.Type {
		case errors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case errors.ErrorTypeSecurity:
			status = http.StatusForbidden
		}
	case stderrors.Is(err, editor.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.errs.Handle(r.Context(), err)
	}
	s.writeJSON(w, r, status, resp)
}
