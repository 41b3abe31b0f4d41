package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/saleswire/server/internal/agent/llm/parsers"
	"github.com/saleswire/server/internal/agent/llm/prompts"
)

// FamilyClassifier labels a question with the catalog family it belongs to,
// which narrows the candidate set before semantic ranking.
type FamilyClassifier struct {
	cm        *gemini.ChatModel
	modelName string
}

// NewFamilyClassifier builds the classifier on the shared router model.
func NewFamilyClassifier(models *ChatModels) *FamilyClassifier {
	return &FamilyClassifier{cm: models.Router, modelName: models.RouterModelName}
}

// Classify returns the uppercased family label for the question.
func (c *FamilyClassifier) Classify(ctx context.Context, question string) (string, error) {
	systemPrompt, err := prompts.RenderFamilySystem(ctx)
	if err != nil {
		return "", fmt.Errorf("render family system prompt: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(question),
	}

	content, err := generate(ctx, c.cm, c.modelName, "family", messages)
	if err != nil {
		return "", err
	}
	return parsers.ParseLabel(content)
}
