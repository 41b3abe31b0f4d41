// Package retrieval selects the catalog template that best matches free
// text. A family classifier narrows the candidate set with keyword routing
// rules, then embedding similarity ranks what remains.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"

	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

// Embedding task types per the Gemini embedding API.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

const embedMaxTries = 3

// Embedder produces embedding vectors for catalog questions and user queries.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds text with the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder wraps an existing Gemini client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

// Model returns the embedding model name, used for cache namespacing.
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// EmbedDocument embeds catalog question text for indexing.
func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalDocument)
}

// EmbedQuery embeds a user question for ranking against the index.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalQuery)
}

func (e *GeminiEmbedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	operation := func() ([]float32, error) {
		contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			TaskType: taskType,
		})
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("empty embedding for %q", taskType))
		}
		return resp.Embeddings[0].Values, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	values, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(embedMaxTries),
	)
	if err != nil {
		logx.Error().Err(err).Str("model", e.model).Str("taskType", taskType).Msg("Embedding failed")
		return nil, errx.WrapModel(fmt.Errorf("embed content: %w", err))
	}
	return values, nil
}

var _ Embedder = (*GeminiEmbedder)(nil)
