package model

// ================ Config ================

// RouterModelConfig configures the low-temperature model shared by intent
// routing, context analysis and parameter extraction.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

// NarratorModelConfig configures the model that turns result rows into prose.
type NarratorModelConfig struct {
	Model       string  `envconfig:"NARRATOR_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"NARRATOR_MAX_TOKENS" default:"2048"`
	Temperature float32 `envconfig:"NARRATOR_TEMPERATURE" default:"0.3"`
}

// EmbeddingConfig configures semantic retrieval over the catalog.
type EmbeddingConfig struct {
	Model    string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	CacheTTL string `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`
}

// DialogueConfig bounds the conversation state machine.
type DialogueConfig struct {
	TTL              string   `envconfig:"DIALOGUE_TTL" default:"45m"`
	MaxHistoryTurns  int      `envconfig:"DIALOGUE_MAX_HISTORY_TURNS" default:"5"`
	MaxParamAttempts int      `envconfig:"DIALOGUE_MAX_PARAM_ATTEMPTS" default:"3"`
	ResetKeywords    []string `envconfig:"DIALOGUE_RESET_KEYWORDS" default:"start over,reset,begin again,clear,new question,skip"`
}

// EngineConfig overrides the keyword sets behind the engine's deterministic
// subject-change checks. Empty lists keep the built-in vocabulary.
type EngineConfig struct {
	PersonAskKeywords     []string `envconfig:"ENGINE_PERSON_ASK_KEYWORDS"`
	ProductAskKeywords    []string `envconfig:"ENGINE_PRODUCT_ASK_KEYWORDS"`
	PersonMentionKeywords []string `envconfig:"ENGINE_PERSON_MENTION_KEYWORDS"`
}
