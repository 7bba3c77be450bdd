// Package ai orchestrates planning bundle generation, revision, and approval
// over pluggable providers: validation with defaulting, result caching,
// artifact persistence, async jobs, and an audit trail.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/projectory/projectory-server/internal/ai/artifactstore"
	"github.com/projectory/projectory-server/internal/ai/jsondiff"
	"github.com/projectory/projectory-server/internal/ai/provider"
	"github.com/projectory/projectory-server/internal/ai/schema"
	"github.com/projectory/projectory-server/internal/auditlog"
)

// artifactType tags every generated bundle row.
const artifactType = "other"

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultJobTTL   = 30 * time.Minute
)

type Options struct {
	Logger    *slog.Logger
	Provider  provider.Provider
	Artifacts *artifactstore.Store
	Audit     *auditlog.Store

	CacheEnabled bool
	CacheTTL     time.Duration
	JobTTL       time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	log       *slog.Logger
	provider  provider.Provider
	artifacts *artifactstore.Store
	audit     *auditlog.Store

	cache *resultCache
	jobs  *jobTracker
	now   func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("missing provider")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("missing artifact store")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	jobTTL := opts.JobTTL
	if jobTTL <= 0 {
		jobTTL = DefaultJobTTL
	}

	s := &Service{
		log:       logger,
		provider:  opts.Provider,
		artifacts: opts.Artifacts,
		audit:     opts.Audit,
		jobs:      newJobTracker(jobTTL, now),
		now:       now,
	}
	if opts.CacheEnabled {
		s.cache = newResultCache(cacheTTL, now)
	}
	return s, nil
}

func normalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en":
		return "en"
	case "ja":
		return "ja"
	default:
		return "ko"
	}
}

func normalizePreset(preset string) string {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "easy":
		return "easy"
	case "hard":
		return "hard"
	default:
		return "medium"
	}
}

type GenerateInput struct {
	IdeaText string
	Language string
	Preset   string
}

// Generate produces a validated five-section bundle, persists it as a
// version-1 artifact, and returns the bundle with a meta block. Results are
// served from the cache when enabled; two equal requests racing past a cold
// cache both generate, which is accepted.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (map[string]any, error) {
	ideaText := strings.TrimSpace(in.IdeaText)
	if ideaText == "" {
		return nil, fmt.Errorf("%w: missing ideaText", ErrInvalidInput)
	}
	language := normalizeLanguage(in.Language)
	preset := normalizePreset(in.Preset)

	key := ""
	if s.cache != nil {
		key = cacheKey(s.provider.Name(), language, preset, ideaText)
		if cached, ok := s.cache.get(key); ok {
			return cached, nil
		}
	}

	bundle, promptHash, err := s.produceBundle(ctx, ideaText, language, preset)
	if err != nil {
		s.auditAppend(auditlog.Entry{
			Action: "bundle_generated", Status: "failure", Error: err.Error(),
			Provider: s.provider.Name(), Language: language, Preset: preset,
		})
		return nil, err
	}

	contentJSON, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	a, err := s.artifacts.Create(ctx, artifactstore.Artifact{
		Type:        artifactType,
		ContentJSON: string(contentJSON),
		PromptHash:  promptHash,
	})
	if err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	result := resultWithMeta(bundle, map[string]any{
		"provider":   s.provider.Name(),
		"preset":     preset,
		"artifactId": a.ID,
		"savedAt":    a.CreatedAtUnixMs,
	})
	if s.cache != nil {
		s.cache.set(key, result)
	}
	s.auditAppend(auditlog.Entry{
		Action: "bundle_generated", Provider: s.provider.Name(),
		Language: language, Preset: preset, ArtifactID: a.ID,
	})
	s.log.Info("bundle generated",
		"provider", s.provider.Name(), "preset", preset, "artifact_id", a.ID)
	return result, nil
}

// produceBundle prefers one-shot generation and falls back to the stepwise
// protocol. Every section is validated before anything persists.
func (s *Service) produceBundle(ctx context.Context, ideaText, language, preset string) (map[string]any, string, error) {
	if gen, ok := s.provider.(provider.BundleGenerator); ok {
		raw, err := gen.GenerateBundle(ctx, provider.GenerateBundleInput{
			IdeaText: ideaText,
			Language: language,
		})
		if err != nil {
			return nil, "", err
		}
		bundle, err := validateBundle(raw)
		if err != nil {
			return nil, "", err
		}
		return bundle, "llm:" + s.provider.Name() + ":v1", nil
	}

	sw, ok := s.provider.(provider.Stepwise)
	if !ok {
		return nil, "", fmt.Errorf("provider %s supports neither one-shot nor stepwise generation", s.provider.Name())
	}

	ideaRaw, err := sw.NormalizeIdea(ctx, provider.NormalizeIdeaInput{
		IdeaText: ideaText, Language: language, Preset: preset,
	})
	if err != nil {
		return nil, "", err
	}
	idea, err := schema.ValidateIdeaNormalized(ideaRaw)
	if err != nil {
		return nil, "", err
	}

	screensRaw, err := sw.GenerateScreens(ctx, provider.GenerateScreensInput{
		IdeaNormalized: idea, Preset: preset,
	})
	if err != nil {
		return nil, "", err
	}
	screens, err := schema.ValidateScreenList(screensRaw)
	if err != nil {
		return nil, "", err
	}

	apiRaw, err := sw.GenerateAPISpec(ctx, provider.GenerateAPISpecInput{
		IdeaNormalized: idea, Screens: screens, Preset: preset,
	})
	if err != nil {
		return nil, "", err
	}
	apiSpec, err := schema.ValidateAPISpec(apiRaw)
	if err != nil {
		return nil, "", err
	}

	erdRaw, err := sw.GenerateERD(ctx, provider.GenerateERDInput{
		IdeaNormalized: idea, Preset: preset,
	})
	if err != nil {
		return nil, "", err
	}
	erd, err := schema.ValidateERD(erdRaw)
	if err != nil {
		return nil, "", err
	}

	qRaw, err := sw.GenerateClarifyingQuestions(ctx, provider.GenerateQuestionsInput{
		IdeaNormalized: idea, Screens: screens, APISpec: apiSpec, ERD: erd, Preset: preset,
	})
	if err != nil {
		return nil, "", err
	}
	questions, err := schema.ValidateClarifyingQuestions(qRaw)
	if err != nil {
		return nil, "", err
	}

	bundle := map[string]any{
		"ideaNormalized": idea,
		"screens":        screens,
		"apiSpec":        apiSpec,
		"erd":            erd,
		"questions":      questions,
	}
	return bundle, "fixtures:" + preset + ":v1", nil
}

func validateBundle(raw map[string]any) (map[string]any, error) {
	idea, err := schema.ValidateIdeaNormalized(raw["ideaNormalized"])
	if err != nil {
		return nil, err
	}
	screens, err := schema.ValidateScreenList(raw["screens"])
	if err != nil {
		return nil, err
	}
	apiSpec, err := schema.ValidateAPISpec(raw["apiSpec"])
	if err != nil {
		return nil, err
	}
	erd, err := schema.ValidateERD(raw["erd"])
	if err != nil {
		return nil, err
	}
	questions, err := schema.ValidateClarifyingQuestions(raw["questions"])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ideaNormalized": idea,
		"screens":        screens,
		"apiSpec":        apiSpec,
		"erd":            erd,
		"questions":      questions,
	}, nil
}

type JobRef struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// CreateGenerateJob starts a generation in the background and returns a job
// handle immediately. The job outlives the request context.
func (s *Service) CreateGenerateJob(in GenerateInput) JobRef {
	id := s.jobs.create()
	go s.runGenerateJob(id, in)
	return JobRef{JobID: id, Status: JobPending}
}

func (s *Service) runGenerateJob(id string, in GenerateInput) {
	result, err := s.Generate(context.Background(), in)
	if err != nil {
		s.log.Warn("generate job failed", "job_id", id, "error", err)
		s.jobs.fail(id, err.Error())
		return
	}
	s.jobs.complete(id, result)
}

// GetGenerateJob reports a job's state. Expired or unknown jobs surface as
// NotFoundError.
func (s *Service) GetGenerateJob(id string) (map[string]any, error) {
	j, ok := s.jobs.get(id)
	if !ok {
		return nil, &NotFoundError{Resource: "job", ID: id}
	}
	out := map[string]any{"jobId": j.ID, "status": string(j.Status)}
	switch j.Status {
	case JobDone:
		out["result"] = j.Result
	case JobError:
		out["error"] = map[string]any{"message": j.Error}
	}
	return out, nil
}

func (s *Service) GetArtifact(ctx context.Context, id string) (map[string]any, error) {
	a, err := s.artifacts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "artifact", ID: id}
	}
	return map[string]any{
		"meta":        artifactMeta(*a),
		"contentJson": decodeContent(*a),
	}, nil
}

func (s *Service) LatestArtifact(ctx context.Context, projectID string) (map[string]any, error) {
	a, err := s.artifacts.Latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "artifact", ID: projectID}
	}
	return map[string]any{
		"meta":        artifactMeta(*a),
		"contentJson": decodeContent(*a),
	}, nil
}

func (s *Service) ListArtifacts(ctx context.Context, projectID string, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	artifacts, err := s.artifacts.List(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(artifacts))
	for _, a := range artifacts {
		item := artifactMeta(a)
		item["contentJson"] = decodeContent(a)
		items = append(items, item)
	}
	return map[string]any{
		"meta": map[string]any{
			"count":     len(items),
			"limit":     limit,
			"projectId": nullableString(projectID),
		},
		"items": items,
	}, nil
}

// ListRevisions returns the whole chain the given artifact belongs to,
// oldest-first, whichever member was named.
func (s *Service) ListRevisions(ctx context.Context, artifactID string) (map[string]any, error) {
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "artifact", ID: artifactID}
	}

	baseID := a.ChainRootID()
	chain, err := s.artifacts.Chain(ctx, baseID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(chain))
	for _, m := range chain {
		item := artifactMeta(m)
		item["contentJson"] = decodeContent(m)
		items = append(items, item)
	}
	return map[string]any{
		"meta":  map[string]any{"baseArtifactId": baseID, "count": len(items)},
		"items": items,
	}, nil
}

type ReviseInput struct {
	Language    string
	Instruction string
}

// Revise rewrites an artifact's bundle under an instruction and appends the
// result to the artifact's revision chain. The revision block embedded in the
// new content records provenance and a structural diff against the base.
func (s *Service) Revise(ctx context.Context, artifactID string, in ReviseInput) (map[string]any, error) {
	instruction := strings.TrimSpace(in.Instruction)
	if instruction == "" {
		return nil, fmt.Errorf("%w: missing instruction", ErrInvalidInput)
	}

	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "artifact", ID: artifactID}
	}
	baseID := a.ChainRootID()

	rev, ok := s.provider.(provider.BundleReviser)
	if !ok {
		return nil, ErrRevisionUnsupported
	}

	baseContent := decodeContent(*a)
	language := inferLanguage(baseContent)
	if strings.TrimSpace(in.Language) != "" {
		language = normalizeLanguage(in.Language)
	}

	raw, err := rev.ReviseBundle(ctx, provider.ReviseBundleInput{
		Language:    language,
		Instruction: instruction,
		Base:        baseContent,
	})
	if err != nil {
		s.auditAppend(auditlog.Entry{
			Action: "bundle_revised", Status: "failure", Error: err.Error(),
			Provider: s.provider.Name(), Language: language,
			ArtifactID: a.ID, BaseArtifactID: baseID,
		})
		return nil, err
	}
	bundle, err := validateBundle(raw)
	if err != nil {
		s.auditAppend(auditlog.Entry{
			Action: "bundle_revised", Status: "failure", Error: err.Error(),
			Provider: s.provider.Name(), Language: language,
			ArtifactID: a.ID, BaseArtifactID: baseID,
		})
		return nil, err
	}

	diff := jsondiff.Diff(baseContent, bundle)
	bundle["revision"] = map[string]any{
		"baseArtifactId": baseID,
		"revisedFromId":  a.ID,
		"instruction":    instruction,
		"revisedAt":      s.now().UTC().Format(time.RFC3339),
		"diff":           diff,
	}

	contentJSON, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal revised bundle: %w", err)
	}
	created, err := s.artifacts.CreateRevision(ctx, baseID, artifactstore.Artifact{
		ProjectID:   a.ProjectID,
		Type:        a.Type,
		ContentJSON: string(contentJSON),
		PromptHash:  "llm:" + s.provider.Name() + ":revise:v1",
	})
	if err != nil {
		return nil, fmt.Errorf("persist revision: %w", err)
	}

	result := resultWithMeta(bundle, map[string]any{
		"provider":       s.provider.Name(),
		"artifactId":     created.ID,
		"baseArtifactId": baseID,
		"version":        created.Version,
		"savedAt":        created.CreatedAtUnixMs,
	})
	s.auditAppend(auditlog.Entry{
		Action: "bundle_revised", Provider: s.provider.Name(), Language: language,
		ArtifactID: created.ID, BaseArtifactID: baseID,
	})
	s.log.Info("bundle revised",
		"provider", s.provider.Name(), "artifact_id", created.ID,
		"base_artifact_id", baseID, "version", created.Version)
	return result, nil
}

type ApproveInput struct {
	Note string
}

// Approve stamps an approval block onto the artifact's content. Re-approving
// replaces the previous stamp; the operation never forks the chain.
func (s *Service) Approve(ctx context.Context, artifactID string, in ApproveInput) (map[string]any, error) {
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "artifact", ID: artifactID}
	}

	approval := map[string]any{
		"approvedAt": s.now().UTC().Format(time.RFC3339),
		"note":       nullableString(strings.TrimSpace(in.Note)),
	}
	content := decodeContent(*a)
	content["approval"] = approval

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal approved content: %w", err)
	}
	updatedAt, err := s.artifacts.UpdateContent(ctx, a.ID, string(contentJSON))
	if err != nil {
		return nil, err
	}

	s.auditAppend(auditlog.Entry{Action: "artifact_approved", ArtifactID: a.ID})
	return map[string]any{
		"meta":     map[string]any{"id": a.ID, "updatedAt": updatedAt},
		"approval": approval,
	}, nil
}

func (s *Service) auditAppend(e auditlog.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.Append(e)
}

func artifactMeta(a artifactstore.Artifact) map[string]any {
	return map[string]any{
		"id":             a.ID,
		"type":           a.Type,
		"version":        a.Version,
		"projectId":      nullableString(a.ProjectID),
		"promptHash":     a.PromptHash,
		"revisionBaseId": nullableString(a.RevisionBaseID),
		"createdAt":      a.CreatedAtUnixMs,
		"updatedAt":      a.UpdatedAtUnixMs,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decodeContent(a artifactstore.Artifact) map[string]any {
	var content map[string]any
	if err := json.Unmarshal([]byte(a.ContentJSON), &content); err != nil || content == nil {
		return map[string]any{}
	}
	return content
}

func inferLanguage(content map[string]any) string {
	idea, _ := content["ideaNormalized"].(map[string]any)
	meta, _ := idea["project_meta"].(map[string]any)
	lang, _ := meta["primary_language"].(string)
	return normalizeLanguage(lang)
}

func resultWithMeta(bundle map[string]any, meta map[string]any) map[string]any {
	out := make(map[string]any, len(bundle)+1)
	for k, v := range bundle {
		out[k] = v
	}
	out["meta"] = meta
	return out
}
