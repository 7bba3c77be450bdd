package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectory/projectory-server/internal/ai"
	"github.com/projectory/projectory-server/internal/ai/provider"
	"github.com/projectory/projectory-server/internal/ai/schema"
)

type generateReq struct {
	IdeaText   string `json:"ideaText"`
	Language   string `json:"language,omitempty"`
	MockPreset string `json:"mockPreset,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	out, err := s.ai.Generate(r.Context(), ai.GenerateInput{
		IdeaText: req.IdeaText,
		Language: req.Language,
		Preset:   req.MockPreset,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerateAsync(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.IdeaText) == "" {
		writeError(w, http.StatusBadRequest, "missing ideaText")
		return
	}

	ref := s.ai.CreateGenerateJob(ai.GenerateInput{
		IdeaText: req.IdeaText,
		Language: req.Language,
		Preset:   req.MockPreset,
	})
	writeJSON(w, http.StatusAccepted, ref)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	out, err := s.ai.GetGenerateJob(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestArtifact(w http.ResponseWriter, r *http.Request) {
	out, err := s.ai.LatestArtifact(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.ai.ListArtifacts(r.Context(), r.URL.Query().Get("projectId"), limit)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	out, err := s.ai.GetArtifact(r.Context(), chi.URLParam(r, "artifactID"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	out, err := s.ai.ListRevisions(r.Context(), chi.URLParam(r, "artifactID"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type reviseReq struct {
	Instruction string `json:"instruction"`
	Language    string `json:"language,omitempty"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req reviseReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	out, err := s.ai.Revise(r.Context(), chi.URLParam(r, "artifactID"), ai.ReviseInput{
		Instruction: req.Instruction,
		Language:    req.Language,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type approveReq struct {
	Note string `json:"note,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	out, err := s.ai.Approve(r.Context(), chi.URLParam(r, "artifactID"), ai.ApproveInput{Note: req.Note})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Health(r.Context()))
}

// writePipelineError maps pipeline errors to HTTP statuses. Malformed model
// output is a 502: the request was fine, the upstream output was not.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": ve.Error(),
				"label":   ve.Label,
				"issues":  ve.Issues,
			},
		})
		return
	}

	var mo *provider.MalformedOutputError
	var nf *ai.NotFoundError
	switch {
	case errors.Is(err, ai.ErrInvalidInput), errors.Is(err, ai.ErrRevisionUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &mo), errors.Is(err, provider.ErrEmptyOutput):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
