package provider

import (
	"encoding/json"
	"strings"
)

// maxUnwrapAttempts bounds recovery of JSON objects nested inside JSON
// strings. Deliberately not a try-forever loop.
const maxUnwrapAttempts = 3

// extractJSONObject returns the outermost {...} span of text, tolerating
// prose around the object. Returns "" when no span exists.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// parseModelOutput parses raw model text into a JSON object, falling back to
// outermost-object extraction when the model wrapped its JSON in prose.
func parseModelOutput(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyOutput
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed, nil
	}
	extracted := extractJSONObject(raw)
	if extracted == "" {
		return nil, &MalformedOutputError{Sample: truncateSample(raw)}
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		return nil, &MalformedOutputError{Sample: truncateSample(raw)}
	}
	return parsed, nil
}

// unwrapSection coerces a section value that arrived as a JSON-encoded string
// (sometimes double-encoded) into a real value. Non-string values pass
// through untouched. Recovers through at most maxUnwrapAttempts layers.
func unwrapSection(v any, label string) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	t := strings.TrimSpace(s)
	if t == "" {
		return v, nil
	}

	for i := 0; i < maxUnwrapAttempts; i++ {
		candidate := extractJSONObject(t)
		if candidate == "" {
			candidate = t
		}
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			break
		}
		inner, isStr := parsed.(string)
		if !isStr {
			return parsed, nil
		}
		// Parsed into a string: possibly another encoding layer.
		next := strings.TrimSpace(inner)
		if strings.Contains(next, "{") && strings.Contains(next, "}") {
			t = next
			continue
		}
		return inner, nil
	}

	return nil, &MalformedOutputError{Section: label, Sample: truncateSample(t)}
}

// unwrapBundleSections applies unwrapSection to every known bundle key.
func unwrapBundleSections(bundle map[string]any) (map[string]any, error) {
	for _, k := range SectionKeys {
		v, err := unwrapSection(bundle[k], k)
		if err != nil {
			return nil, err
		}
		bundle[k] = v
	}
	return bundle, nil
}
