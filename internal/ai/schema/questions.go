package schema

// maxClarifyingQuestions is a hard cap, not a default: inputs with more
// questions are rejected.
const maxClarifyingQuestions = 5

// ValidateClarifyingQuestions validates the ClarifyingQuestions section.
func ValidateClarifyingQuestions(v any) (map[string]any, error) {
	var issues []Issue
	o := newObj(v, "", &issues)
	if o == nil {
		return nil, &ValidationError{Label: "ClarifyingQuestions", Issues: issues}
	}

	o.strDefault("schema_version", "1.0")

	if qs, ok := o.src["questions"].([]any); ok && len(qs) > maxClarifyingQuestions {
		o.fail("questions", "at most 5 questions allowed")
	}
	o.objArray("questions", func(e *obj) {
		e.str("id")
		e.str("question")
		e.enum("type", "single_choice", "multi_choice", "free_text", "boolean")
		e.strArrayDefault("options")
		e.nullableStr("default")
		e.str("why_it_matters")
		e.enumArray("impacts", "erd", "api", "screens", "timeline", "team")
	})

	lp := o.child("limit_policy")
	lp.numDefault("max_questions", 5)
	lp.strDefault("rule", "Exactly 5 unless already fully specified")

	return finish("ClarifyingQuestions", o, issues)
}
