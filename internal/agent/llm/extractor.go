package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/saleswire/server/internal/agent/llm/parsers"
	"github.com/saleswire/server/internal/agent/llm/prompts"
	"github.com/saleswire/server/internal/agent/model"
)

// Extractor pulls missing query parameters out of an utterance, with the
// collected state, inherited values and override hints as context.
type Extractor struct {
	cm        *gemini.ChatModel
	modelName string
}

// NewExtractor builds the extractor on the shared router model.
func NewExtractor(models *ChatModels) *Extractor {
	return &Extractor{cm: models.Router, modelName: models.RouterModelName}
}

// Extract returns the parameters found in the current message. Parameters
// the model could not determine are absent from the result.
func (e *Extractor) Extract(ctx context.Context, in model.ExtractionInput) (map[string]any, error) {
	systemPrompt, err := prompts.RenderExtractionSystem(ctx, prompts.ExtractionVars{
		InheritedParams:  jsonOr(in.InheritedParams, "{}"),
		OverrideHints:    jsonOr(in.OverrideHints, "{}"),
		MissingParams:    jsonOr(in.MissingParams, "[]"),
		CollectedParams:  jsonOr(in.CollectedParams, "{}"),
		OptionalParams:   jsonOr(in.OptionalParams, "[]"),
		OriginalQuestion: in.OriginalQuestion,
		CurrentDate:      in.CurrentDate,
	})
	if err != nil {
		return nil, fmt.Errorf("render extraction system prompt: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("Current user message: " + in.Question),
	}

	content, err := generate(ctx, e.cm, e.modelName, "extraction", messages)
	if err != nil {
		return nil, err
	}
	return parsers.ParseParams(content)
}

var _ model.ParamExtractor = (*Extractor)(nil)
