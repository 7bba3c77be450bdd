package schema

// ValidateERD validates the ErdDraft section.
func ValidateERD(v any) (map[string]any, error) {
	var issues []Issue
	o := newObj(v, "", &issues)
	if o == nil {
		return nil, &ValidationError{Label: "ErdDraft", Issues: issues}
	}

	o.strDefault("schema_version", "1.0")

	o.objArray("entities", func(e *obj) {
		e.str("name")
		e.strDefault("description", "")
		e.objArray("columns", func(c *obj) {
			c.str("name")
			c.str("type")
			c.enum("nullable", yesNo...)
			c.enum("pk", yesNo...)
			c.enum("unique", yesNo...)
			c.nullableStr("default")
			c.strDefault("comment", "")
		})
		e.objArrayDefault("indexes", func(ix *obj) {
			ix.str("name")
			ix.strArray("columns")
			ix.enum("unique", yesNo...)
		})
	})

	o.objArrayDefault("relationships", func(r *obj) {
		r.str("from_entity")
		r.str("from_column")
		r.str("to_entity")
		r.str("to_column")
		r.enum("cardinality", "1:1", "1:N", "N:M")
		r.enumDefault("on_delete", "unknown",
			"CASCADE", "RESTRICT", "SET_NULL", "NO_ACTION", "unknown")
		r.strDefault("notes", "")
	})

	cc := o.child("common_conventions")
	cc.enumDefault("id_strategy", "cuid", "uuid", "cuid", "int", "unknown")
	cc.enumDefault("timestamps", "createdAt/updatedAt", "createdAt/updatedAt", "none", "unknown")
	cc.enumDefault("soft_delete", "unknown", yesNoUnknown...)

	o.strArrayDefault("assumptions")
	o.strArrayDefault("open_questions")

	return finish("ErdDraft", o, issues)
}
