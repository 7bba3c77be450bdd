package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return v
}

const minimalIdea = `{
  "project_meta": {
    "title": "북마크 공유",
    "one_liner": "소셜 북마크 공유 앱",
    "target_platforms": ["web"]
  },
  "problem_solution": {
    "problem_statement": "좋은 링크가 흩어져 있다",
    "solution_summary": "팀 단위로 북마크를 모은다"
  },
  "users_and_roles": [
    {"role": "member", "description": "일반 사용자"}
  ],
  "core_user_flows": [
    {"name": "북마크 저장", "actor_role": "member", "steps": ["링크 입력", "저장"]}
  ],
  "features": [
    {"name": "북마크", "description": "링크 저장", "priority": "must", "complexity_triggers": ["search"]}
  ],
  "data_sensitivity": {"contains_pii": "no", "contains_payment_data": "no"},
  "non_functional_requirements": {},
  "constraints": {},
  "quality_flags": {"missing_role_definitions": "no", "ambiguous_scope": "no", "high_risk_uncertainty": "no"}
}`

func TestValidateIdeaNormalized_FillsDefaults(t *testing.T) {
	t.Parallel()

	out, err := ValidateIdeaNormalized(decode(t, minimalIdea))
	if err != nil {
		t.Fatalf("ValidateIdeaNormalized: %v", err)
	}

	if got := out["schema_version"]; got != "1.0" {
		t.Fatalf("schema_version=%v, want 1.0", got)
	}
	meta := out["project_meta"].(map[string]any)
	if got := meta["domain"]; got != "general" {
		t.Fatalf("domain=%v, want general", got)
	}
	if got := meta["primary_language"]; got != "ko" {
		t.Fatalf("primary_language=%v, want ko", got)
	}
	if got := meta["reference_links"]; !reflect.DeepEqual(got, []any{}) {
		t.Fatalf("reference_links=%v, want []", got)
	}
	cons := out["constraints"].(map[string]any)
	if cons["deadline"] != nil {
		t.Fatalf("deadline=%v, want nil", cons["deadline"])
	}
	if cons["team_size_limit"] != nil {
		t.Fatalf("team_size_limit=%v, want nil", cons["team_size_limit"])
	}
	nfr := out["non_functional_requirements"].(map[string]any)
	for _, k := range []string{"security", "performance", "availability", "scalability"} {
		if _, ok := nfr[k]; !ok {
			t.Fatalf("non_functional_requirements.%s missing", k)
		}
	}
	if _, ok := out["open_questions"]; !ok {
		t.Fatalf("open_questions missing")
	}
}

func TestValidateIdeaNormalized_Idempotent(t *testing.T) {
	t.Parallel()

	first, err := ValidateIdeaNormalized(decode(t, minimalIdea))
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := ValidateIdeaNormalized(first)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validation is not idempotent:\nfirst=%v\nsecond=%v", first, second)
	}
}

func TestValidateIdeaNormalized_MissingRequired(t *testing.T) {
	t.Parallel()

	_, err := ValidateIdeaNormalized(decode(t, `{"project_meta": {"one_liner": "x", "target_platforms": ["web"]}}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	if verr.Label != "IdeaNormalized" {
		t.Fatalf("Label=%q, want IdeaNormalized", verr.Label)
	}
	found := false
	for _, iss := range verr.Issues {
		if iss.Path == "project_meta.title" && iss.Reason == "required" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing project_meta.title issue, got %v", verr.Issues)
	}
}

func TestValidateIdeaNormalized_EnumViolationPath(t *testing.T) {
	t.Parallel()

	v := decode(t, minimalIdea).(map[string]any)
	features := v["features"].([]any)
	features[0].(map[string]any)["priority"] = "urgent"

	_, err := ValidateIdeaNormalized(v)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	found := false
	for _, iss := range verr.Issues {
		if iss.Path == "features[0].priority" && strings.Contains(iss.Reason, "must|should|could|wont") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing features[0].priority issue, got %v", verr.Issues)
	}
}

func TestValidateScreenList_DefaultStates(t *testing.T) {
	t.Parallel()

	out, err := ValidateScreenList(decode(t, `{
	  "screens": [
	    {
	      "id": "scr_home", "name": "홈", "route": "/", "actor_roles": ["member"],
	      "goal": "피드 보기",
	      "permissions": {"auth_required": "no"}
	    }
	  ]
	}`))
	if err != nil {
		t.Fatalf("ValidateScreenList: %v", err)
	}
	scr := out["screens"].([]any)[0].(map[string]any)
	if got := scr["states"]; !reflect.DeepEqual(got, []any{"loading", "success"}) {
		t.Fatalf("states=%v, want [loading success]", got)
	}
	if got := scr["required_apis"]; !reflect.DeepEqual(got, []any{}) {
		t.Fatalf("required_apis=%v, want []", got)
	}
}

func TestValidateScreenList_BadMethod(t *testing.T) {
	t.Parallel()

	_, err := ValidateScreenList(decode(t, `{
	  "screens": [
	    {
	      "id": "scr_home", "name": "홈", "route": "/", "actor_roles": [],
	      "goal": "g",
	      "required_apis": [{"method": "FETCH", "path": "/x", "purpose": "p"}],
	      "permissions": {"auth_required": "no"}
	    }
	  ]
	}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	found := false
	for _, iss := range verr.Issues {
		if iss.Path == "screens[0].required_apis[0].method" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing method issue, got %v", verr.Issues)
	}
}

func TestValidateAPISpec_Defaults(t *testing.T) {
	t.Parallel()

	out, err := ValidateAPISpec(decode(t, `{
	  "auth": {},
	  "endpoints": [
	    {
	      "id": "ep_1", "name": "목록", "method": "GET", "path": "/bookmarks",
	      "summary": "북마크 목록", "auth_required": "yes",
	      "request": {"body": {}}
	    }
	  ]
	}`))
	if err != nil {
		t.Fatalf("ValidateAPISpec: %v", err)
	}
	if got := out["base_url_hint"]; got != "/api" {
		t.Fatalf("base_url_hint=%v, want /api", got)
	}
	if got := out["auth"].(map[string]any)["strategy"]; got != "unknown" {
		t.Fatalf("auth.strategy=%v, want unknown", got)
	}
	ep := out["endpoints"].([]any)[0].(map[string]any)
	if ep["rate_limit_hint"] != nil {
		t.Fatalf("rate_limit_hint=%v, want nil", ep["rate_limit_hint"])
	}
	body := ep["request"].(map[string]any)["body"].(map[string]any)
	if got := body["content_type"]; got != "application/json" {
		t.Fatalf("body.content_type=%v, want application/json", got)
	}
}

func TestValidateERD_Defaults(t *testing.T) {
	t.Parallel()

	out, err := ValidateERD(decode(t, `{
	  "entities": [
	    {
	      "name": "User",
	      "columns": [
	        {"name": "id", "type": "TEXT", "nullable": "no", "pk": "yes", "unique": "yes"}
	      ]
	    }
	  ],
	  "common_conventions": {}
	}`))
	if err != nil {
		t.Fatalf("ValidateERD: %v", err)
	}
	cc := out["common_conventions"].(map[string]any)
	if got := cc["id_strategy"]; got != "cuid" {
		t.Fatalf("id_strategy=%v, want cuid", got)
	}
	if got := cc["timestamps"]; got != "createdAt/updatedAt" {
		t.Fatalf("timestamps=%v, want createdAt/updatedAt", got)
	}
	col := out["entities"].([]any)[0].(map[string]any)["columns"].([]any)[0].(map[string]any)
	if col["default"] != nil {
		t.Fatalf("column default=%v, want nil", col["default"])
	}
}

func TestValidateClarifyingQuestions_CapsAtFive(t *testing.T) {
	t.Parallel()

	q := `{"id": "q", "question": "?", "type": "boolean", "why_it_matters": "w", "impacts": ["erd"]}`
	raw := `{"questions": [` + strings.TrimSuffix(strings.Repeat(q+",", 6), ",") + `], "limit_policy": {}}`

	_, err := ValidateClarifyingQuestions(decode(t, raw))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	found := false
	for _, iss := range verr.Issues {
		if iss.Path == "questions" && strings.Contains(iss.Reason, "at most 5") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing cap issue, got %v", verr.Issues)
	}
}

func TestValidateClarifyingQuestions_FiveAllowed(t *testing.T) {
	t.Parallel()

	q := `{"id": "q", "question": "?", "type": "boolean", "why_it_matters": "w", "impacts": ["erd"]}`
	raw := `{"questions": [` + strings.TrimSuffix(strings.Repeat(q+",", 5), ",") + `], "limit_policy": {}}`

	out, err := ValidateClarifyingQuestions(decode(t, raw))
	if err != nil {
		t.Fatalf("ValidateClarifyingQuestions: %v", err)
	}
	lp := out["limit_policy"].(map[string]any)
	if got := lp["max_questions"]; got != float64(5) {
		t.Fatalf("max_questions=%v, want 5", got)
	}
}
