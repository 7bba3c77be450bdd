// Package schema validates raw AI provider output against the five bundle
// section shapes and fills declared defaults.
//
// Validation is permissive on purpose: a missing defaultable field is filled,
// a missing required field or an out-of-set enum value is reported as an
// issue. A section with any issue is rejected wholesale.
package schema

import (
	"fmt"
	"strings"
)

// Issue is one field-level validation problem.
type Issue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError reports that one bundle section failed validation.
type ValidationError struct {
	Label  string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation failed"
	}
	return fmt.Sprintf("AI output validation failed: %s (%d issues)", e.Label, len(e.Issues))
}

// obj walks one JSON object level. Validated fields are copied into out so
// the result always carries every declared field.
type obj struct {
	path   string
	src    map[string]any
	out    map[string]any
	issues *[]Issue
}

func newObj(v any, path string, issues *[]Issue) *obj {
	m, ok := v.(map[string]any)
	if !ok {
		*issues = append(*issues, Issue{Path: orRoot(path), Reason: "expected object"})
		return nil
	}
	return &obj{path: path, src: m, out: map[string]any{}, issues: issues}
}

func orRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

func (o *obj) key(k string) string {
	if o.path == "" {
		return k
	}
	return o.path + "." + k
}

func (o *obj) fail(k, reason string) {
	*o.issues = append(*o.issues, Issue{Path: o.key(k), Reason: reason})
}

func (o *obj) str(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	s, ok := v.(string)
	if !ok {
		o.fail(k, "expected string")
		return
	}
	o.out[k] = s
}

func (o *obj) strDefault(k, def string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = def
		return
	}
	s, ok := v.(string)
	if !ok {
		o.fail(k, "expected string")
		return
	}
	o.out[k] = s
}

func (o *obj) enum(k string, allowed ...string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	o.checkEnum(k, v, allowed)
}

func (o *obj) enumDefault(k, def string, allowed ...string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = def
		return
	}
	o.checkEnum(k, v, allowed)
}

func (o *obj) checkEnum(k string, v any, allowed []string) {
	s, ok := v.(string)
	if !ok {
		o.fail(k, "expected string")
		return
	}
	for _, a := range allowed {
		if s == a {
			o.out[k] = s
			return
		}
	}
	o.fail(k, "expected one of "+strings.Join(allowed, "|"))
}

// num validates a required JSON number.
func (o *obj) num(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	n, ok := asNumber(v)
	if !ok {
		o.fail(k, "expected number")
		return
	}
	o.out[k] = n
}

func (o *obj) numDefault(k string, def float64) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = def
		return
	}
	n, ok := asNumber(v)
	if !ok {
		o.fail(k, "expected number")
		return
	}
	o.out[k] = n
}

// nullableStr accepts a string or null and defaults to null.
func (o *obj) nullableStr(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = nil
		return
	}
	s, ok := v.(string)
	if !ok {
		o.fail(k, "expected string or null")
		return
	}
	o.out[k] = s
}

// nullableNum accepts a number or null and defaults to null.
func (o *obj) nullableNum(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = nil
		return
	}
	n, ok := asNumber(v)
	if !ok {
		o.fail(k, "expected number or null")
		return
	}
	o.out[k] = n
}

func (o *obj) strArray(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	o.checkStrArray(k, v)
}

func (o *obj) strArrayDefault(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = []any{}
		return
	}
	o.checkStrArray(k, v)
}

func (o *obj) checkStrArray(k string, v any) {
	items, ok := v.([]any)
	if !ok {
		o.fail(k, "expected array")
		return
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			o.fail(fmt.Sprintf("%s[%d]", k, i), "expected string")
			continue
		}
		out = append(out, s)
	}
	o.out[k] = out
}

func (o *obj) enumArray(k string, allowed ...string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	o.checkEnumArray(k, v, allowed)
}

func (o *obj) enumArrayDefault(k string, def []string, allowed ...string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		out := make([]any, 0, len(def))
		for _, s := range def {
			out = append(out, s)
		}
		o.out[k] = out
		return
	}
	o.checkEnumArray(k, v, allowed)
}

func (o *obj) checkEnumArray(k string, v any, allowed []string) {
	items, ok := v.([]any)
	if !ok {
		o.fail(k, "expected array")
		return
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			o.fail(fmt.Sprintf("%s[%d]", k, i), "expected string")
			continue
		}
		found := false
		for _, a := range allowed {
			if s == a {
				found = true
				break
			}
		}
		if !found {
			o.fail(fmt.Sprintf("%s[%d]", k, i), "expected one of "+strings.Join(allowed, "|"))
			continue
		}
		out = append(out, s)
	}
	o.out[k] = out
}

// child validates a required nested object. The child's output map is wired
// into the parent before field validation runs.
func (o *obj) child(k string) *obj {
	if o == nil {
		return nil
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return nil
	}
	c := newObj(v, o.key(k), o.issues)
	if c == nil {
		return nil
	}
	o.out[k] = c.out
	return c
}

// objArray validates a required array of objects; fn validates each element.
func (o *obj) objArray(k string, fn func(e *obj)) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.fail(k, "required")
		return
	}
	o.checkObjArray(k, v, fn)
}

// objArrayDefault is objArray with an empty-array default.
func (o *obj) objArrayDefault(k string, fn func(e *obj)) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = []any{}
		return
	}
	o.checkObjArray(k, v, fn)
}

func (o *obj) checkObjArray(k string, v any, fn func(e *obj)) {
	items, ok := v.([]any)
	if !ok {
		o.fail(k, "expected array")
		return
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		e := newObj(it, fmt.Sprintf("%s[%d]", o.key(k), i), o.issues)
		if e == nil {
			continue
		}
		fn(e)
		out = append(out, e.out)
	}
	o.out[k] = out
}

// freeObject accepts any JSON object as-is (no shape check beyond type) and
// defaults to an empty object.
func (o *obj) freeObject(k string) {
	if o == nil {
		return
	}
	v, ok := o.src[k]
	if !ok || v == nil {
		o.out[k] = map[string]any{}
		return
	}
	m, ok := v.(map[string]any)
	if !ok {
		o.fail(k, "expected object")
		return
	}
	o.out[k] = m
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func finish(label string, o *obj, issues []Issue) (map[string]any, error) {
	if len(issues) > 0 {
		return nil, &ValidationError{Label: label, Issues: issues}
	}
	return o.out, nil
}
