package provider

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed prompts/bundle_generate.txt
var bundleGeneratePrompt string

//go:embed prompts/bundle_revise.txt
var bundleRevisePrompt string

//go:embed bundle_schema.json
var bundleSchemaJSON []byte

// bundleSchemaName identifies the structured-output schema to the model API.
const bundleSchemaName = "project_bundle_v1"

var (
	bundleSchemaOnce sync.Once
	bundleSchemaMap  map[string]any
)

// bundleSchema returns the strict JSON schema enforced on one-shot bundle
// output.
func bundleSchema() map[string]any {
	bundleSchemaOnce.Do(func() {
		if err := json.Unmarshal(bundleSchemaJSON, &bundleSchemaMap); err != nil {
			panic("provider: embedded bundle_schema.json is invalid: " + err.Error())
		}
	})
	return bundleSchemaMap
}

// renderPrompt substitutes {{key}} placeholders in a prompt template.
func renderPrompt(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
