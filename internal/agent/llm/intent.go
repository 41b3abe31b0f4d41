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

// IntentClassifier routes a fresh utterance to one of the coarse intents.
type IntentClassifier struct {
	cm        *gemini.ChatModel
	modelName string
}

// NewIntentClassifier builds the classifier on the shared router model.
func NewIntentClassifier(models *ChatModels) *IntentClassifier {
	return &IntentClassifier{cm: models.Router, modelName: models.RouterModelName}
}

// Route classifies the question into exactly one intent keyword.
func (c *IntentClassifier) Route(ctx context.Context, question string) (model.Intent, error) {
	systemPrompt, err := prompts.RenderIntentSystem(ctx)
	if err != nil {
		return "", fmt.Errorf("render intent system prompt: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(question),
	}

	content, err := generate(ctx, c.cm, c.modelName, "intent", messages)
	if err != nil {
		return "", err
	}
	return parsers.ParseIntent(content)
}

var _ model.IntentRouter = (*IntentClassifier)(nil)
