package provider

import (
	"errors"
	"strings"
	"testing"
)

func TestParseModelOutput_PlainObject(t *testing.T) {
	t.Parallel()

	got, err := parseModelOutput(`{"ideaNormalized":{"a":1}}`)
	if err != nil {
		t.Fatalf("parseModelOutput: %v", err)
	}
	if _, ok := got["ideaNormalized"]; !ok {
		t.Fatalf("got=%v, want ideaNormalized key", got)
	}
}

func TestParseModelOutput_ProseWrapped(t *testing.T) {
	t.Parallel()

	raw := "Here is the bundle you asked for:\n```json\n{\"x\": 1}\n```\nLet me know."
	got, err := parseModelOutput(raw)
	if err != nil {
		t.Fatalf("parseModelOutput: %v", err)
	}
	if got["x"] != float64(1) {
		t.Fatalf("got=%v, want x=1", got["x"])
	}
}

func TestParseModelOutput_Empty(t *testing.T) {
	t.Parallel()

	if _, err := parseModelOutput("   \n\t"); !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("got err=%v, want ErrEmptyOutput", err)
	}
}

func TestParseModelOutput_NoObject(t *testing.T) {
	t.Parallel()

	_, err := parseModelOutput("the model refused to answer")
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("got err=%v, want MalformedOutputError", err)
	}
	if malformed.Section != "" {
		t.Fatalf("got section=%q, want empty for whole-output failure", malformed.Section)
	}
}

func TestParseModelOutput_SampleTruncated(t *testing.T) {
	t.Parallel()

	_, err := parseModelOutput("가" + strings.Repeat("x", 500))
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("got err=%v, want MalformedOutputError", err)
	}
	if n := len([]rune(malformed.Sample)); n != sampleLimit {
		t.Fatalf("got sample runes=%d, want %d", n, sampleLimit)
	}
}

func TestUnwrapSection_PassThrough(t *testing.T) {
	t.Parallel()

	in := map[string]any{"a": 1}
	got, err := unwrapSection(in, "screens")
	if err != nil {
		t.Fatalf("unwrapSection: %v", err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Fatalf("got=%T, want map passthrough", got)
	}
}

func TestUnwrapSection_EncodedObject(t *testing.T) {
	t.Parallel()

	got, err := unwrapSection(`{"screens": []}`, "screens")
	if err != nil {
		t.Fatalf("unwrapSection: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("got=%T, want decoded object", got)
	}
	if _, ok := m["screens"]; !ok {
		t.Fatalf("got=%v, want screens key", m)
	}
}

func TestUnwrapSection_ProseWrappedObject(t *testing.T) {
	t.Parallel()

	got, err := unwrapSection("here you go: {\"n\": 2} done", "erd")
	if err != nil {
		t.Fatalf("unwrapSection: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["n"] != float64(2) {
		t.Fatalf("got=%v, want n=2", got)
	}
}

func TestUnwrapSection_PlainStringLiteral(t *testing.T) {
	t.Parallel()

	// A JSON string literal with no object inside stays a string.
	got, err := unwrapSection(`"hello"`, "questions")
	if err != nil {
		t.Fatalf("unwrapSection: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got=%v, want %q", got, "hello")
	}
}

func TestUnwrapSection_Garbage(t *testing.T) {
	t.Parallel()

	_, err := unwrapSection("not json at all", "apiSpec")
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("got err=%v, want MalformedOutputError", err)
	}
	if malformed.Section != "apiSpec" {
		t.Fatalf("got section=%q, want apiSpec", malformed.Section)
	}
}

func TestUnwrapBundleSections(t *testing.T) {
	t.Parallel()

	bundle := map[string]any{
		"ideaNormalized": map[string]any{"a": 1},
		"screens":        `{"screens": []}`,
		"apiSpec":        map[string]any{},
		"erd":            map[string]any{},
		"questions":      map[string]any{},
	}
	got, err := unwrapBundleSections(bundle)
	if err != nil {
		t.Fatalf("unwrapBundleSections: %v", err)
	}
	if _, ok := got["screens"].(map[string]any); !ok {
		t.Fatalf("got screens=%T, want decoded object", got["screens"])
	}
	if _, ok := got["ideaNormalized"].(map[string]any); !ok {
		t.Fatalf("got ideaNormalized=%T, want untouched object", got["ideaNormalized"])
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	if got := extractJSONObject("ab {1} cd"); got != "{1}" {
		t.Fatalf("got=%q, want %q", got, "{1}")
	}
	if got := extractJSONObject("} no object {"); got != "" {
		t.Fatalf("got=%q, want empty", got)
	}
	if got := extractJSONObject("nothing here"); got != "" {
		t.Fatalf("got=%q, want empty", got)
	}
}

func TestRenderPrompt(t *testing.T) {
	t.Parallel()

	got := renderPrompt("lang={{language}} idea={{ideaText}} again={{language}}", map[string]string{
		"language": "ko",
		"ideaText": "북마크 공유",
	})
	want := "lang=ko idea=북마크 공유 again=ko"
	if got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestBundleSchemaEmbedded(t *testing.T) {
	t.Parallel()

	schema := bundleSchema()
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties object")
	}
	for _, k := range SectionKeys {
		if _, ok := props[k]; !ok {
			t.Fatalf("schema missing section %q", k)
		}
	}
}
