package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

const generateMaxTries = 3

// generate runs one chat completion with retry on transient failures and
// returns the trimmed response content. Usage cost is logged per call.
func generate(ctx context.Context, cm einomodel.BaseChatModel, modelName, role string, messages []*schema.Message) (string, error) {
	operation := func() (*schema.Message, error) {
		out, err := cm.Generate(ctx, messages)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(generateMaxTries),
	)
	if err != nil {
		logx.Error().Err(err).Str("role", role).Str("model", modelName).Msg("Chat completion failed")
		return "", errx.WrapModel(fmt.Errorf("%s completion: %w", role, err))
	}
	if out == nil {
		return "", errx.WrapModel(fmt.Errorf("%s completion: empty response", role))
	}

	logUsage(out, modelName, role)
	return strings.TrimSpace(out.Content), nil
}

// logUsage computes and logs token usage cost for one completion.
func logUsage(out *schema.Message, modelName, role string) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := ComputeCost(usage, ResolvePricing(modelName))
	logx.Debug().
		Str("role", role).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

// jsonOr serialises prompt context values, substituting a fallback literal
// for nil or unserialisable input so templates never see the word "null".
func jsonOr(v any, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return fallback
	}
	return string(b)
}
