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

// ContextClassifier decides how an utterance relates to the previous
// successful query: acknowledgment, clarification, follow-up or new query.
type ContextClassifier struct {
	cm        *gemini.ChatModel
	modelName string
}

// NewContextClassifier builds the analyzer on the shared router model.
func NewContextClassifier(models *ChatModels) *ContextClassifier {
	return &ContextClassifier{cm: models.Router, modelName: models.RouterModelName}
}

// Analyze returns the structured verdict for one turn.
func (c *ContextClassifier) Analyze(ctx context.Context, in model.ContextInput) (*model.ContextDecision, error) {
	systemPrompt, err := prompts.RenderContextSystem(ctx, prompts.ContextVars{
		CurrentDate:  in.CurrentDate,
		History:      in.History,
		LastQuestion: in.LastQuestion,
		LastQueryID:  in.LastQueryID.String(),
		LastParams:   jsonOr(in.LastParams, "{}"),
		Message:      in.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("render context system prompt: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(in.Message),
	}

	content, err := generate(ctx, c.cm, c.modelName, "context", messages)
	if err != nil {
		return nil, err
	}
	return parsers.ParseContextDecision(content)
}

var _ model.ContextAnalyzer = (*ContextClassifier)(nil)
