package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/projectory/projectory-server/internal/ai"
	"github.com/projectory/projectory-server/internal/ai/artifactstore"
	"github.com/projectory/projectory-server/internal/ai/provider"
	"github.com/projectory/projectory-server/internal/projectstore"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	artifacts, err := artifactstore.Open(filepath.Join(dir, "artifacts.db"))
	if err != nil {
		t.Fatalf("artifactstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = artifacts.Close() })

	projects, err := projectstore.Open(filepath.Join(dir, "projects.db"))
	if err != nil {
		t.Fatalf("projectstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = projects.Close() })

	svc, err := ai.NewService(ai.Options{Provider: provider.NewMock(), Artifacts: artifacts})
	if err != nil {
		t.Fatalf("ai.NewService: %v", err)
	}

	srv, err := New(Options{AI: svc, Projects: projects})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestServer_GenerateAndRead(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/ai/project/generate", map[string]any{
		"ideaText": "스터디 매칭 서비스",
		"mockPreset": "easy",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200: %v", rec.Code, out)
	}
	meta, ok := out["meta"].(map[string]any)
	if !ok {
		t.Fatalf("response missing meta: %v", out)
	}
	artifactID, _ := meta["artifactId"].(string)
	if artifactID == "" {
		t.Fatalf("meta.artifactId empty")
	}

	rec, out = doJSON(t, h, http.MethodGet, "/ai/artifacts/"+artifactID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get artifact status=%d", rec.Code)
	}
	if out["contentJson"] == nil {
		t.Fatalf("artifact missing contentJson")
	}

	rec, out = doJSON(t, h, http.MethodGet, "/ai/artifacts/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest status=%d", rec.Code)
	}
	if out["meta"].(map[string]any)["id"] != artifactID {
		t.Fatalf("latest is not the generated artifact")
	}

	rec, out = doJSON(t, h, http.MethodGet, "/ai/artifacts?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status=%d", rec.Code)
	}
	if out["meta"].(map[string]any)["count"] != float64(1) {
		t.Fatalf("list count=%v, want 1", out["meta"].(map[string]any)["count"])
	}

	rec, out = doJSON(t, h, http.MethodGet, "/ai/artifacts/"+artifactID+"/revisions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revisions status=%d", rec.Code)
	}
	if out["meta"].(map[string]any)["baseArtifactId"] != artifactID {
		t.Fatalf("revisions base=%v", out["meta"].(map[string]any)["baseArtifactId"])
	}
}

func TestServer_GenerateRejectsBadBody(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, _ := doJSON(t, h, http.MethodPost, "/ai/project/generate", map[string]any{"ideaText": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ideaText status=%d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/ai/project/generate", map[string]any{"ideaText": "x", "bogus": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d, want 400", rec.Code)
	}
}

func TestServer_ArtifactNotFound(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodGet, "/ai/artifacts/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404: %v", rec.Code, out)
	}
	if out["error"].(map[string]any)["message"] == "" {
		t.Fatalf("missing error message")
	}
}

func TestServer_ReviseUnsupportedByMock(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/ai/project/generate", map[string]any{"ideaText": "idea"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status=%d", rec.Code)
	}
	id := out["meta"].(map[string]any)["artifactId"].(string)

	rec, _ = doJSON(t, h, http.MethodPost, "/ai/artifacts/"+id+"/revise", map[string]any{"instruction": "change"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("revise status=%d, want 400", rec.Code)
	}
}

func TestServer_Approve(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/ai/project/generate", map[string]any{"ideaText": "idea"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status=%d", rec.Code)
	}
	id := out["meta"].(map[string]any)["artifactId"].(string)

	rec, out = doJSON(t, h, http.MethodPost, "/ai/artifacts/"+id+"/approve", map[string]any{"note": "LGTM"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status=%d: %v", rec.Code, out)
	}
	if out["approval"].(map[string]any)["note"] != "LGTM" {
		t.Fatalf("approval=%v", out["approval"])
	}
}

func TestServer_AsyncJob(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/ai/project/generate-async", map[string]any{"ideaText": "idea"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("async status=%d, want 202: %v", rec.Code, out)
	}
	jobID, _ := out["jobId"].(string)
	if jobID == "" || out["status"] != "pending" {
		t.Fatalf("async response=%v", out)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, out = doJSON(t, h, http.MethodGet, "/ai/project/generate-status/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("job status=%d", rec.Code)
		}
		if out["status"] == "done" {
			if out["result"].(map[string]any)["meta"] == nil {
				t.Fatalf("done job missing result meta")
			}
			break
		}
		if out["status"] == "error" {
			t.Fatalf("job failed: %v", out["error"])
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/ai/project/generate-status/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status=%d, want 404", rec.Code)
	}
}

func TestServer_ProjectLifecycle(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/projects/confirm", map[string]any{
		"ownerId":    "user-1",
		"title":      "디지털 굿즈 마켓",
		"mode":       "online",
		"difficulty": "medium",
		"capacity":   4,
		"techStacks": []string{"Go", "React"},
		"positionNeeds": []map[string]any{
			{"position": "BACKEND", "headcount": 2},
			{"position": "FRONTEND"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm status=%d: %v", rec.Code, out)
	}
	projectID, _ := out["id"].(string)
	if projectID == "" {
		t.Fatalf("confirm response missing id: %v", out)
	}
	if out["status"] != "PLANNING" {
		t.Fatalf("status=%v, want PLANNING", out["status"])
	}
	if cols, _ := out["kanban_columns"].([]any); len(cols) != 3 {
		t.Fatalf("kanban_columns=%v, want 3", out["kanban_columns"])
	}

	rec, out = doJSON(t, h, http.MethodGet, "/projects/"+projectID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get project status=%d", rec.Code)
	}
	if out["title"] != "디지털 굿즈 마켓" {
		t.Fatalf("title=%v", out["title"])
	}

	rec, out = doJSON(t, h, http.MethodGet, "/projects/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list projects status=%d", rec.Code)
	}
	if out["meta"].(map[string]any)["count"] != float64(1) {
		t.Fatalf("projects count=%v, want 1", out["meta"].(map[string]any)["count"])
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/projects/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing project status=%d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/projects/confirm", map[string]any{"ownerId": "", "title": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing owner status=%d, want 400", rec.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	rec, out := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
	if out["status"] != "ok" {
		t.Fatalf("healthz=%v", out)
	}
}
