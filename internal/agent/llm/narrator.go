package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/saleswire/server/internal/agent/llm/prompts"
	"github.com/saleswire/server/internal/agent/model"
	errx "github.com/saleswire/server/internal/core/error"
)

// ResultNarrator turns finished query results into the user-facing answer.
// Currency values in the rows are formatted upstream; the prompt instructs
// the model to reproduce them verbatim.
type ResultNarrator struct {
	cm        *gemini.ChatModel
	modelName string
}

// NewResultNarrator builds the narrator on the warmer narrator model.
func NewResultNarrator(models *ChatModels) *ResultNarrator {
	return &ResultNarrator{cm: models.Narrator, modelName: models.NarratorModelName}
}

// Narrate summarises the rows as prose answering the original question.
func (n *ResultNarrator) Narrate(ctx context.Context, in model.NarrationInput) (string, error) {
	queryContext := in.QueryContext
	if queryContext == "" {
		queryContext = "No specific filters"
	}

	systemPrompt, err := prompts.RenderNarratorSystem(ctx, prompts.NarrationVars{
		Columns:      jsonOr(in.Columns, "[]"),
		Rows:         jsonOr(in.Rows, "[]"),
		QueryContext: queryContext,
	})
	if err != nil {
		return "", fmt.Errorf("render narrator system prompt: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("Original question: " + in.Question),
	}

	content, err := generate(ctx, n.cm, n.modelName, "narrator", messages)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", errx.WrapModel(fmt.Errorf("empty narration"))
	}
	return content, nil
}

var _ model.Narrator = (*ResultNarrator)(nil)
