package schema

// ValidateAPISpec validates the ApiSpecDraft section.
func ValidateAPISpec(v any) (map[string]any, error) {
	var issues []Issue
	o := newObj(v, "", &issues)
	if o == nil {
		return nil, &ValidationError{Label: "ApiSpecDraft", Issues: issues}
	}

	o.strDefault("schema_version", "1.0")
	o.strDefault("base_url_hint", "/api")

	auth := o.child("auth")
	auth.enumDefault("strategy", "unknown", "session", "jwt", "oauth", "unknown")
	auth.strArrayDefault("notes")

	o.objArray("endpoints", func(e *obj) {
		e.str("id")
		e.str("name")
		e.enum("method", httpMethods...)
		e.str("path")
		e.str("summary")
		e.enum("auth_required", yesNo...)
		e.strArrayDefault("roles_allowed")
		e.nullableStr("rate_limit_hint")

		req := e.child("request")
		req.objArrayDefault("headers", func(h *obj) {
			h.str("name")
			h.enum("required", yesNo...)
			h.strDefault("example", "")
		})
		req.objArrayDefault("query", func(q *obj) {
			q.str("name")
			q.str("type")
			q.enum("required", yesNo...)
			q.strDefault("example", "")
		})
		req.objArrayDefault("params", func(p *obj) {
			p.str("name")
			p.str("type")
			p.enum("required", yesNo...)
			p.strDefault("example", "")
		})
		body := req.child("body")
		body.enumDefault("content_type", "application/json",
			"application/json", "multipart/form-data", "none")
		body.strDefault("schema", "object")
		body.freeObject("example")

		e.objArrayDefault("responses", func(r *obj) {
			r.num("status")
			r.str("description")
			r.strDefault("schema", "object")
			r.freeObject("example")
		})
		e.objArrayDefault("errors", func(r *obj) {
			r.num("status")
			r.str("code")
			r.str("message")
			r.str("when")
		})
		e.strArrayDefault("related_screens")
		e.strArrayDefault("notes")
	})

	o.strArrayDefault("assumptions")
	o.strArrayDefault("open_questions")

	return finish("ApiSpecDraft", o, issues)
}
