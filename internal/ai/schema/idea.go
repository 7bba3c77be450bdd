package schema

// Closed value sets shared across sections.
var (
	yesNo        = []string{"yes", "no"}
	yesNoUnknown = []string{"yes", "no", "unknown"}
	languages    = []string{"ko", "en", "ja"}
	httpMethods  = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
)

var complexityTriggers = []string{
	"auth", "rbac", "payment", "realtime", "file_upload", "search",
	"recommendation", "external_api", "notifications", "admin_console",
	"analytics", "multilingual",
}

// ValidateIdeaNormalized validates the IdeaNormalized section.
func ValidateIdeaNormalized(v any) (map[string]any, error) {
	var issues []Issue
	o := newObj(v, "", &issues)
	if o == nil {
		return nil, &ValidationError{Label: "IdeaNormalized", Issues: issues}
	}

	o.strDefault("schema_version", "1.0")

	meta := o.child("project_meta")
	meta.str("title")
	meta.str("one_liner")
	meta.strDefault("domain", "general")
	meta.enumArray("target_platforms", "web", "mobile_web", "ios", "android", "desktop")
	meta.enumDefault("primary_language", "ko", languages...)
	meta.strArrayDefault("reference_links")

	ps := o.child("problem_solution")
	ps.str("problem_statement")
	ps.str("solution_summary")
	ps.strArrayDefault("unique_value")

	o.objArray("users_and_roles", func(e *obj) {
		e.str("role")
		e.str("description")
		e.strArrayDefault("key_permissions")
	})

	o.objArray("core_user_flows", func(e *obj) {
		e.str("name")
		e.str("actor_role")
		e.strArray("steps")
	})

	o.objArray("features", func(e *obj) {
		e.str("name")
		e.str("description")
		e.enum("priority", "must", "should", "could", "wont")
		e.enumArray("complexity_triggers", complexityTriggers...)
		e.strArrayDefault("acceptance_criteria")
	})

	ds := o.child("data_sensitivity")
	ds.enum("contains_pii", yesNoUnknown...)
	ds.enum("contains_payment_data", yesNoUnknown...)
	ds.strDefault("notes", "")

	nfr := o.child("non_functional_requirements")
	nfr.strArrayDefault("security")
	nfr.strArrayDefault("performance")
	nfr.strArrayDefault("availability")
	nfr.strArrayDefault("scalability")

	o.strArrayDefault("assumptions")

	cons := o.child("constraints")
	cons.nullableStr("deadline")
	cons.nullableNum("team_size_limit")
	cons.strArrayDefault("must_use_tech")
	cons.strArrayDefault("cannot_use_tech")

	o.objArrayDefault("open_questions", func(e *obj) {
		e.str("question")
		e.str("why_it_matters")
		e.strArrayDefault("options")
	})

	qf := o.child("quality_flags")
	qf.enum("missing_role_definitions", yesNo...)
	qf.enum("ambiguous_scope", yesNo...)
	qf.enum("high_risk_uncertainty", yesNo...)

	return finish("IdeaNormalized", o, issues)
}
