package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAI generates and revises bundles in a single structured-output call
// against the Responses API. The stepwise protocol is intentionally not
// implemented here.
type OpenAI struct {
	client openai.Client
	model  string
}

type OpenAIOptions struct {
	APIKey string
	Model  string
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(ooption.WithAPIKey(opts.APIKey)),
		model:  model,
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) GenerateBundle(ctx context.Context, in GenerateBundleInput) (map[string]any, error) {
	prompt := renderPrompt(bundleGeneratePrompt, map[string]string{
		"language": in.Language,
		"ideaText": in.IdeaText,
	})
	return p.completeBundle(ctx, prompt)
}

func (p *OpenAI) ReviseBundle(ctx context.Context, in ReviseBundleInput) (map[string]any, error) {
	baseJSON, err := json.Marshal(in.Base)
	if err != nil {
		return nil, fmt.Errorf("marshal base bundle: %w", err)
	}
	prompt := renderPrompt(bundleRevisePrompt, map[string]string{
		"language":    in.Language,
		"instruction": in.Instruction,
		"baseJson":    string(baseJSON),
	})
	return p.completeBundle(ctx, prompt)
}

func (p *OpenAI) completeBundle(ctx context.Context, prompt string) (map[string]any, error) {
	params := oresponses.ResponseNewParams{
		Model:       oshared.ResponsesModel(p.model),
		Temperature: openai.Float(0),
		Input:       oresponses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Text: oresponses.ResponseTextConfigParam{
			Format: oresponses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &oresponses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   bundleSchemaName,
					Strict: openai.Bool(true),
					Schema: bundleSchema(),
				},
			},
		},
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses: %w", err)
	}
	raw := strings.TrimSpace(resp.OutputText())
	if raw == "" {
		raw = strings.TrimSpace(collectResponseText(resp))
	}

	bundle, err := parseModelOutput(raw)
	if err != nil {
		return nil, err
	}
	return unwrapBundleSections(bundle)
}

// collectResponseText walks raw output items for responses where the
// aggregated OutputText accessor comes back empty.
func collectResponseText(resp *oresponses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if part.Type != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
