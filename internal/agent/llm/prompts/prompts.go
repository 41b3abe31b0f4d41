// Package prompts renders the system prompts for the dialogue collaborators.
// Templates live in template/ and carry literal JSON braces, so known tokens
// are substituted with a string replacer instead of FString formatting.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/intent_prompt.txt
var intentSystemPrompt string

//go:embed template/context_prompt.txt
var contextSystemPrompt string

//go:embed template/extraction_prompt.txt
var extractionSystemPrompt string

//go:embed template/narrator_prompt.txt
var narratorSystemPrompt string

//go:embed template/family_prompt.txt
var familySystemPrompt string

// ContextVars are the token values for the context analyzer prompt. All
// composite values (history, params) arrive pre-serialized.
type ContextVars struct {
	CurrentDate  string
	History      string
	LastQuestion string
	LastQueryID  string
	LastParams   string
	Message      string
}

// ExtractionVars are the token values for the parameter extraction prompt.
type ExtractionVars struct {
	InheritedParams  string
	OverrideHints    string
	MissingParams    string
	CollectedParams  string
	OptionalParams   string
	OriginalQuestion string
	CurrentDate      string
}

// NarrationVars are the token values for the narrator prompt.
type NarrationVars struct {
	Columns      string
	Rows         string
	QueryContext string
}

// RenderIntentSystem renders the intent router system prompt.
func RenderIntentSystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, "intent", intentSystemPrompt)
}

// RenderFamilySystem renders the retrieval family classifier system prompt.
func RenderFamilySystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, "family", familySystemPrompt)
}

// RenderContextSystem renders the context analyzer system prompt.
func RenderContextSystem(ctx context.Context, v ContextVars) (string, error) {
	content := strings.NewReplacer(
		"{current_date}", v.CurrentDate,
		"{conversation_history}", v.History,
		"{last_question}", v.LastQuestion,
		"{last_query_id}", v.LastQueryID,
		"{last_params}", v.LastParams,
		"{current_message}", v.Message,
	).Replace(contextSystemPrompt)
	return renderSystem(ctx, "context", content)
}

// RenderExtractionSystem renders the parameter extractor system prompt.
func RenderExtractionSystem(ctx context.Context, v ExtractionVars) (string, error) {
	content := strings.NewReplacer(
		"{inherited_params}", v.InheritedParams,
		"{override_hints}", v.OverrideHints,
		"{missing_params}", v.MissingParams,
		"{collected_params}", v.CollectedParams,
		"{optional_params}", v.OptionalParams,
		"{original_question}", v.OriginalQuestion,
		"{current_date}", v.CurrentDate,
	).Replace(extractionSystemPrompt)
	return renderSystem(ctx, "extraction", content)
}

// RenderNarratorSystem renders the narrator system prompt.
func RenderNarratorSystem(ctx context.Context, v NarrationVars) (string, error) {
	content := strings.NewReplacer(
		"{columns}", v.Columns,
		"{rows}", v.Rows,
		"{query_context}", v.QueryContext,
	).Replace(narratorSystemPrompt)
	return renderSystem(ctx, "narrator", content)
}

// renderSystem runs the content through the prompt component as a messages
// placeholder and returns the formatted system message.
func renderSystem(ctx context.Context, name, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("render %s prompt: empty result", name)
	}
	return msgs[0].Content, nil
}
