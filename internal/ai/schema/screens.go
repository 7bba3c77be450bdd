package schema

// ValidateScreenList validates the ScreenListDraft section.
func ValidateScreenList(v any) (map[string]any, error) {
	var issues []Issue
	o := newObj(v, "", &issues)
	if o == nil {
		return nil, &ValidationError{Label: "ScreenListDraft", Issues: issues}
	}

	o.strDefault("schema_version", "1.0")

	o.objArray("screens", func(e *obj) {
		e.str("id")
		e.str("name")
		e.str("route")
		e.strArray("actor_roles")
		e.str("goal")
		e.strArrayDefault("main_components")
		e.enumArrayDefault("states", []string{"loading", "success"},
			"empty", "loading", "error", "success")
		e.objArrayDefault("required_apis", func(a *obj) {
			a.enum("method", httpMethods...)
			a.str("path")
			a.str("purpose")
		})
		perms := e.child("permissions")
		perms.enum("auth_required", yesNo...)
		perms.strArrayDefault("roles_allowed")
		e.strArrayDefault("notes")
	})

	o.objArrayDefault("navigation", func(e *obj) {
		e.str("from_screen_id")
		e.str("to_screen_id")
		e.str("trigger")
	})

	o.strArrayDefault("assumptions")
	o.strArrayDefault("open_questions")

	return finish("ScreenListDraft", o, issues)
}
