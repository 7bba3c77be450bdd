package provider

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed fixtures
var fixturesFS embed.FS

const fallbackTitle = "새 프로젝트"

// titleMaxRunes caps titles derived from free-form idea text.
const titleMaxRunes = 32

// Mock serves deterministic preset fixtures. It implements only the stepwise
// protocol; revision is intentionally unsupported.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) loadFixture(preset, file string) (map[string]any, error) {
	if preset == "" {
		preset = "medium"
	}
	b, err := fixturesFS.ReadFile("fixtures/" + preset + "/" + file)
	if err != nil {
		return nil, fmt.Errorf("fixture not found: %s/%s: %w", preset, file, err)
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("fixture %s/%s: %w", preset, file, err)
	}
	return v, nil
}

func (m *Mock) NormalizeIdea(_ context.Context, in NormalizeIdeaInput) (any, error) {
	doc, err := m.loadFixture(in.Preset, "idea.json")
	if err != nil {
		return nil, err
	}

	// Patch idea-derived fields so the fixture tracks the request.
	if meta, ok := doc["project_meta"].(map[string]any); ok {
		meta["primary_language"] = in.Language
		if title, _ := meta["title"].(string); title == "" {
			meta["title"] = deriveTitle(in.IdeaText)
		}
	}
	return doc, nil
}

func (m *Mock) GenerateScreens(_ context.Context, in GenerateScreensInput) (any, error) {
	doc, err := m.loadFixture(in.Preset, "screens.json")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *Mock) GenerateAPISpec(_ context.Context, in GenerateAPISpecInput) (any, error) {
	doc, err := m.loadFixture(in.Preset, "api.json")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *Mock) GenerateERD(_ context.Context, in GenerateERDInput) (any, error) {
	doc, err := m.loadFixture(in.Preset, "erd.json")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *Mock) GenerateClarifyingQuestions(_ context.Context, in GenerateQuestionsInput) (any, error) {
	doc, err := m.loadFixture(in.Preset, "questions.json")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func deriveTitle(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) == 0 {
		return fallbackTitle
	}
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes]) + "…"
	}
	return string(r)
}
