package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectory/projectory-server/internal/projectstore"
)

type confirmProjectReq struct {
	OwnerID      string `json:"ownerId"`
	ArtifactID   string `json:"artifactId,omitempty"`
	OriginalLang string `json:"originalLang,omitempty"`
	Title        string `json:"title"`
	Summary      string `json:"summary,omitempty"`
	Description  string `json:"description,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	Capacity     int    `json:"capacity,omitempty"`

	DeadlineUnixMs int64 `json:"deadlineUnixMs,omitempty"`

	TechStacks    []string           `json:"techStacks,omitempty"`
	PositionNeeds []positionNeedBody `json:"positionNeeds,omitempty"`
}

type positionNeedBody struct {
	Position  string `json:"position"`
	Headcount int    `json:"headcount,omitempty"`
}

func (s *Server) handleConfirmProject(w http.ResponseWriter, r *http.Request) {
	var req confirmProjectReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, http.StatusBadRequest, "missing ownerId")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "missing title")
		return
	}

	in := projectstore.ConfirmInput{
		OwnerID:        req.OwnerID,
		ArtifactID:     req.ArtifactID,
		OriginalLang:   req.OriginalLang,
		Title:          req.Title,
		Summary:        req.Summary,
		Description:    req.Description,
		Mode:           req.Mode,
		Difficulty:     req.Difficulty,
		Capacity:       req.Capacity,
		DeadlineUnixMs: req.DeadlineUnixMs,
		TechStackNames: req.TechStacks,
	}
	for _, n := range req.PositionNeeds {
		in.PositionNeeds = append(in.PositionNeeds, projectstore.PositionNeedInput{
			Position:  n.Position,
			Headcount: n.Headcount,
		})
	}

	p, err := s.projects.Confirm(r.Context(), in)
	if err != nil {
		s.log.Error("project confirm failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("project confirmed", "project_id", p.ID, "owner_id", p.OwnerID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	projects, err := s.projects.List(r.Context(), limit)
	if err != nil {
		s.log.Error("project list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"meta":  map[string]any{"count": len(projects)},
		"items": projects,
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	p, err := s.projects.Get(r.Context(), id)
	if err != nil {
		s.log.Error("project get failed", "project_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
