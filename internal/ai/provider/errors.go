package provider

import (
	"errors"
	"fmt"
)

// ErrEmptyOutput reports that the model produced no text at all. Kept
// distinct from malformed output so callers can tell "returned nothing"
// from "returned garbage".
var ErrEmptyOutput = errors.New("empty model output")

const sampleLimit = 200

// MalformedOutputError reports model output that survived extraction but is
// not valid JSON, or a section value that could not be unwrapped. Sample is
// truncated for diagnostics.
type MalformedOutputError struct {
	Section string // empty for whole-output failures
	Sample  string
}

func (e *MalformedOutputError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("section %s is a string but not valid JSON. sample=%s", e.Section, e.Sample)
	}
	return fmt.Sprintf("model output is not valid JSON. sample=%s", e.Sample)
}

func truncateSample(s string) string {
	r := []rune(s)
	if len(r) <= sampleLimit {
		return s
	}
	return string(r[:sampleLimit])
}
