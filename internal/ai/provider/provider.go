// Package provider abstracts the sources of generated project bundles.
//
// Providers expose optional capabilities that callers probe with type
// assertions: the mock provider only implements the stepwise protocol, the
// model-backed providers only implement one-shot bundle generation and
// revision. Nothing assumes a fixed method set across implementations.
package provider

import "context"

// Provider is the common surface of every generation backend.
type Provider interface {
	Name() string
}

// Stepwise is the five-call generation protocol. Calls must happen in order:
// each later call takes earlier outputs as input.
type Stepwise interface {
	Provider

	NormalizeIdea(ctx context.Context, in NormalizeIdeaInput) (any, error)
	GenerateScreens(ctx context.Context, in GenerateScreensInput) (any, error)
	GenerateAPISpec(ctx context.Context, in GenerateAPISpecInput) (any, error)
	GenerateERD(ctx context.Context, in GenerateERDInput) (any, error)
	GenerateClarifyingQuestions(ctx context.Context, in GenerateQuestionsInput) (any, error)
}

// BundleGenerator produces the whole five-section bundle in one call.
type BundleGenerator interface {
	Provider

	GenerateBundle(ctx context.Context, in GenerateBundleInput) (map[string]any, error)
}

// BundleReviser rewrites a previously generated bundle under an instruction.
type BundleReviser interface {
	Provider

	ReviseBundle(ctx context.Context, in ReviseBundleInput) (map[string]any, error)
}

type NormalizeIdeaInput struct {
	IdeaText string
	Language string
	Preset   string
}

type GenerateScreensInput struct {
	IdeaNormalized any
	Preset         string
}

type GenerateAPISpecInput struct {
	IdeaNormalized any
	Screens        any
	Preset         string
}

type GenerateERDInput struct {
	IdeaNormalized any
	Preset         string
}

type GenerateQuestionsInput struct {
	IdeaNormalized any
	Screens        any
	APISpec        any
	ERD            any
	Preset         string
}

type GenerateBundleInput struct {
	IdeaText string
	Language string
}

type ReviseBundleInput struct {
	Language    string
	Instruction string
	Base        any
}

// SectionKeys are the top-level bundle keys in generation order.
var SectionKeys = [5]string{"ideaNormalized", "screens", "apiSpec", "erd", "questions"}
