// Package llm hosts the language-model collaborators behind the dialogue
// engine: intent routing, context analysis, parameter extraction and result
// narration. All of them share one Gemini client and differ only in prompt
// and generation settings.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/saleswire/server/internal/agent/model"
	logx "github.com/saleswire/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey      string
	BaseURL     string
	RouterCfg   *model.RouterModelConfig
	NarratorCfg *model.NarratorModelConfig
}

// ChatModels bundles the router and narrator chat models. The router model
// runs cold for deterministic classification, the narrator runs warmer for
// natural prose.
type ChatModels struct {
	Client            *genai.Client
	Router            *gemini.ChatModel
	Narrator          *gemini.ChatModel
	RouterModelName   string
	NarratorModelName string
}

// NewChatModels creates both chat models from a shared Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelRouter, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterCfg.Model,
		Temperature: &config.RouterCfg.Temperature,
		MaxTokens:   &config.RouterCfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	chatModelNarrator, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.NarratorCfg.Model,
		Temperature: &config.NarratorCfg.Temperature,
		MaxTokens:   &config.NarratorCfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating narrator model")
		return nil, fmt.Errorf("error creating narrator model: %w", err)
	}

	return &ChatModels{
		Client:            client,
		Router:            chatModelRouter,
		Narrator:          chatModelNarrator,
		RouterModelName:   config.RouterCfg.Model,
		NarratorModelName: config.NarratorCfg.Model,
	}, nil
}
