package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"

	// anthropicMaxBundleTokens must cover a full five-section bundle.
	anthropicMaxBundleTokens = 16384
)

// Anthropic generates and revises bundles through the Messages API. The API
// has no server-side schema enforcement, so the bundle schema rides in the
// system prompt and the output goes through the same parse-and-unwrap path
// as every other model.
type Anthropic struct {
	client anthropic.Client
	model  string
}

type AnthropicOptions struct {
	APIKey string
	Model  string
}

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(aoption.WithAPIKey(opts.APIKey)),
		model:  model,
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) GenerateBundle(ctx context.Context, in GenerateBundleInput) (map[string]any, error) {
	prompt := renderPrompt(bundleGeneratePrompt, map[string]string{
		"language": in.Language,
		"ideaText": in.IdeaText,
	})
	return p.completeBundle(ctx, prompt)
}

func (p *Anthropic) ReviseBundle(ctx context.Context, in ReviseBundleInput) (map[string]any, error) {
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

func (p *Anthropic) completeBundle(ctx context.Context, prompt string) (map[string]any, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   anthropicMaxBundleTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: anthropicSystemPrompt()}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	bundle, err := parseModelOutput(strings.TrimSpace(sb.String()))
	if err != nil {
		return nil, err
	}
	return unwrapBundleSections(bundle)
}

var (
	anthropicSystemOnce sync.Once
	anthropicSystem     string
)

func anthropicSystemPrompt() string {
	anthropicSystemOnce.Do(func() {
		schema, _ := json.Marshal(bundleSchema())
		anthropicSystem = "Respond with a single JSON object and nothing else. " +
			"The object must conform to this JSON schema:\n" + string(schema)
	})
	return anthropicSystem
}
