// Package api supplies the HTTP boundary logic for artifact retrieval and
// skill management. Transport and authentication wrap these handlers from
// the outside; the handlers themselves only translate HTTP to store calls.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stratdesk/internal/artifact"
	"stratdesk/internal/skills"
)

// Handlers holds the HTTP handlers over the artifact store and skill
// registry.
type Handlers struct {
	artifacts *artifact.Store
	skills    *skills.Registry
	logger    *zap.Logger
}

// NewHandlers creates a handlers instance.
func NewHandlers(artifacts *artifact.Store, reg *skills.Registry, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{artifacts: artifacts, skills: reg, logger: logger}
}

// Register attaches all routes to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/artifacts", h.HandleArtifacts)
	mux.HandleFunc("/artifacts/", h.HandleArtifact)
	mux.HandleFunc("/skills", h.HandleSkills)
	mux.HandleFunc("/skills/", h.HandleSkill)
}

// HandleArtifacts handles /artifacts.
func (h *Handlers) HandleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	all, err := h.artifacts.List()
	if err != nil {
		h.internalError(w, "list artifacts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"artifacts": all})
}

// HandleArtifact handles /artifacts/{id} and /artifacts/{id}/download.
func (h *Handlers) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/artifacts/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		h.notFound(w)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getArtifact(w, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deleteArtifact(w, id)
	case len(parts) == 2 && parts[1] == "download" && r.Method == http.MethodGet:
		h.downloadArtifact(w, id)
	default:
		h.notFound(w)
	}
}

func (h *Handlers) getArtifact(w http.ResponseWriter, id string) {
	meta, err := h.artifacts.Get(id)
	if err != nil {
		h.internalError(w, "get artifact", err)
		return
	}
	if meta == nil {
		h.notFound(w)
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

func (h *Handlers) deleteArtifact(w http.ResponseWriter, id string) {
	existed, err := h.artifacts.Delete(id)
	if err != nil {
		h.internalError(w, "delete artifact", err)
		return
	}
	if !existed {
		h.notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) downloadArtifact(w http.ResponseWriter, id string) {
	stream, meta, err := h.artifacts.GetStream(id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			h.notFound(w)
			return
		}
		h.internalError(w, "stream artifact", err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", meta.MIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.Filename+`"`)
	if _, err := io.Copy(w, stream); err != nil {
		h.logger.Warn("artifact download interrupted", zap.String("id", id), zap.Error(err))
	}
}

// HandleSkills handles /skills.
func (h *Handlers) HandleSkills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		summaries, err := h.skills.List()
		if err != nil {
			h.internalError(w, "list skills", err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"skills": summaries})
	case http.MethodPost:
		var req struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		}
		if !h.readJSON(w, r, &req) {
			return
		}
		if err := h.skills.Create(req.Name, req.Content); err != nil {
			h.skillError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
	default:
		h.methodNotAllowed(w)
	}
}

// HandleSkill handles /skills/{name} and /skills/detect.
func (h *Handlers) HandleSkill(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/skills/")
	if name == "" || strings.Contains(name, "/") {
		h.notFound(w)
		return
	}

	if name == "detect" {
		h.detectSkills(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		skill, err := h.skills.Load(name)
		if err != nil {
			h.skillError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, skill)
	case http.MethodPut:
		var req struct {
			Content string `json:"content"`
		}
		if !h.readJSON(w, r, &req) {
			return
		}
		if err := h.skills.Update(name, req.Content); err != nil {
			h.skillError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.skills.Delete(name); err != nil {
			h.skillError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.methodNotAllowed(w)
	}
}

func (h *Handlers) detectSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !h.readJSON(w, r, &req) {
		return
	}
	matched, err := h.skills.DetectTriggers(req.Text)
	if err != nil {
		h.internalError(w, "detect triggers", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"matches": matched})
}

func (h *Handlers) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handlers) skillError(w http.ResponseWriter, err error) {
	switch {
	case skills.IsNotFound(err):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, skills.ErrInvalidName):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.internalError(w, "skill operation", err)
	}
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("handler failure", zap.String("op", op), zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (h *Handlers) notFound(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (h *Handlers) methodNotAllowed(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
