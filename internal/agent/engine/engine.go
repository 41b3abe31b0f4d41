// Package engine drives one conversation turn end to end: reset handling,
// intent routing, context analysis against the previous query, template
// selection, parameter collection, SQL execution and narration. Transports
// call ProcessTurn and render the returned reply; the engine owns no
// transport concerns.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/extract"
	"github.com/saleswire/server/internal/agent/model"
	"github.com/saleswire/server/internal/agent/querygraph"
	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

const dateLayout = "2006-01-02"

// Clock supplies the current time. Injected so date resolution is testable.
type Clock func() time.Time

// Config wires the engine's collaborators. Every collaborator is required;
// Clock defaults to time.Now.
type Config struct {
	States    model.StateStore
	Retriever model.TemplateRetriever
	Executor  model.QueryExecutor
	Intent    model.IntentRouter
	Analyzer  model.ContextAnalyzer
	Extractor model.ParamExtractor
	Narrator  model.Narrator
	Resolver  *querygraph.Resolver
	Clock     Clock
	Dialogue  model.DialogueConfig
	Keywords  model.EngineConfig
}

// Engine is the multi-turn query resolution state machine over the fixed
// catalog. One instance serves every conversation; all per-conversation
// state lives in the store.
type Engine struct {
	states    model.StateStore
	retriever model.TemplateRetriever
	executor  model.QueryExecutor
	intent    model.IntentRouter
	analyzer  model.ContextAnalyzer
	extractor model.ParamExtractor
	narrator  model.Narrator
	resolver  *querygraph.Resolver
	clock     Clock
	dialogue  model.DialogueConfig
	keywords  model.EngineConfig
}

// New validates the wiring and returns a ready engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.States == nil:
		return nil, fmt.Errorf("state store is nil")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("template retriever is nil")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("query executor is nil")
	case cfg.Intent == nil:
		return nil, fmt.Errorf("intent router is nil")
	case cfg.Analyzer == nil:
		return nil, fmt.Errorf("context analyzer is nil")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("parameter extractor is nil")
	case cfg.Narrator == nil:
		return nil, fmt.Errorf("narrator is nil")
	case cfg.Resolver == nil:
		return nil, fmt.Errorf("query graph resolver is nil")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	dialogue := cfg.Dialogue
	if len(dialogue.ResetKeywords) == 0 {
		dialogue.ResetKeywords = []string{"start over", "reset", "begin again", "clear", "new question", "skip"}
	}

	return &Engine{
		states:    cfg.States,
		retriever: cfg.Retriever,
		executor:  cfg.Executor,
		intent:    cfg.Intent,
		analyzer:  cfg.Analyzer,
		extractor: cfg.Extractor,
		narrator:  cfg.Narrator,
		resolver:  cfg.Resolver,
		clock:     clock,
		dialogue:  dialogue,
		keywords:  cfg.Keywords,
	}, nil
}

// ProcessTurn runs one utterance through the pipeline and returns the reply
// to render. The reply is always usable: on pipeline failure the
// conversation is wiped and the reply carries the generic apology, with the
// underlying error alongside for logging.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, utterance string) (model.Reply, error) {
	state, err := e.states.Load(ctx, conversationID)
	if err != nil {
		return model.TextReply(ReplyTurnFailure), err
	}
	if e.dialogue.MaxHistoryTurns > 0 {
		state.MaxHistoryTurns = e.dialogue.MaxHistoryTurns
	}
	if e.dialogue.MaxParamAttempts > 0 {
		state.MaxParamAttempts = e.dialogue.MaxParamAttempts
	}

	reply, err := e.turn(ctx, utterance, state)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Turn failed, clearing conversation")
		state.ClearAll()
		if saveErr := e.states.Save(ctx, conversationID, state); saveErr != nil {
			logx.Error().Err(saveErr).Str("conversation_id", conversationID).Msg("Failed to persist cleared state")
		}
		return model.TextReply(ReplyTurnFailure), err
	}

	if err := e.states.Save(ctx, conversationID, state); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to persist dialogue state")
		return reply, err
	}
	return reply, nil
}

// turn is the pipeline proper. Any error or panic escaping it makes the
// caller wipe the conversation, so every exit here is a complete turn.
func (e *Engine) turn(ctx context.Context, utterance string, state *model.DialogueState) (reply model.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()

	if extract.ContainsAny(utterance, e.dialogue.ResetKeywords) {
		state.ClearAll()
		return model.TextReply(ReplyResetDone), nil
	}

	state.AddTurn(model.RoleUser, utterance, nil)

	if !state.HasPending() {
		routed, handled, err := e.routeIntent(ctx, state, utterance)
		if handled || err != nil {
			return routed, err
		}
	}

	oc := e.analyzeContext(ctx, state, utterance)
	if oc.reply != nil {
		return *oc.reply, nil
	}

	if !state.HasPending() {
		required, err := e.selectTemplate(ctx, state, utterance, oc.followUp)
		if err != nil {
			return model.Reply{}, err
		}
		e.prepareParams(state, oc, required, utterance)
		e.applyScopeToggles(ctx, state, utterance, oc.overrides)
	}

	asked, handled, err := e.collectMissing(ctx, state, utterance, oc)
	if handled || err != nil {
		return asked, err
	}

	e.applyDefaults(state)
	e.revalidate(ctx, state)

	result, finalSQL, err := e.execute(ctx, state)
	if err != nil {
		return model.Reply{}, err
	}

	answer, err := e.narrate(ctx, state, utterance, oc.followUp, result)
	if err != nil {
		return model.Reply{}, err
	}

	e.commit(state, result, finalSQL, answer)
	return model.TextReply(answer), nil
}

// routeIntent classifies a fresh utterance and answers the conversational
// intents directly. The exact table phrasings short-circuit the model call.
func (e *Engine) routeIntent(ctx context.Context, state *model.DialogueState, utterance string) (model.Reply, bool, error) {
	if extract.IsTableRequest(utterance) {
		return e.tableReply(state), true, nil
	}

	intent, err := e.intent.Route(ctx, utterance)
	if err != nil {
		return model.Reply{}, false, err
	}
	logx.Debug().Str("intent", string(intent)).Msg("Intent routed")

	switch intent {
	case model.IntentReject:
		logx.Debug().Err(errx.DomainRejection(utterance)).Msg("Declining out-of-domain request")
		state.ClearAll()
		return model.TextReply(ReplyDomainDecline), true, nil
	case model.IntentGreeting:
		state.AddTurn(model.RoleAssistant, ReplyGreeting, nil)
		return model.TextReply(ReplyGreeting), true, nil
	case model.IntentReset:
		state.ClearAll()
		return model.TextReply(ReplyAllClear), true, nil
	case model.IntentTable:
		return e.tableReply(state), true, nil
	}
	return model.Reply{}, false, nil
}

// tableReply replays the previous result as structured data. Transports
// render it natively, so numbers reach the user exactly as the warehouse
// returned them.
func (e *Engine) tableReply(state *model.DialogueState) model.Reply {
	if len(state.LastRows) > 0 && len(state.LastColumns) > 0 {
		return model.TableReply(state.LastColumns, state.LastRows)
	}
	return model.TextReply(ReplyNoTableContext)
}

// execute fills the pending template and runs it. n and sort resolve here
// when nothing upstream set them, so every catalog statement is complete.
func (e *Engine) execute(ctx context.Context, state *model.DialogueState) (*model.QueryResult, string, error) {
	if _, ok := state.CollectedParams[catalog.ParamN]; !ok {
		state.CollectedParams[catalog.ParamN] = 1
	}
	if _, ok := state.CollectedParams[catalog.ParamSort]; !ok {
		state.CollectedParams[catalog.ParamSort] = model.SortDescending
	}

	tpl := catalog.Template{ID: state.PendingQueryID, SQL: state.PendingSQL}
	finalSQL, err := tpl.Fill(state.CollectedParams)
	if err != nil {
		return nil, "", err
	}
	logx.Debug().Str("template_id", state.PendingQueryID.String()).Str("sql", finalSQL).Msg("Executing query")

	result, err := e.executor.Query(ctx, finalSQL)
	if err != nil {
		return nil, "", err
	}
	return result, finalSQL, nil
}

// commit stores the result for table replay, promotes the finished query to
// cross-turn memory and resets the in-progress block. The transcript keeps
// the parameters so follow-up prompts can see them.
func (e *Engine) commit(state *model.DialogueState, result *model.QueryResult, finalSQL, answer string) {
	state.LastColumns = result.Columns
	state.LastRows = result.Rows
	state.LastExecutedSQL = finalSQL
	state.SaveSuccessfulQuery(state.CollectedParams, state.OriginalQuestion, state.PendingQueryID)
	state.AddTurn(model.RoleAssistant, answer, state.CollectedParams)
	state.ClearQueryState()
}

func (e *Engine) asksSalesperson(q string) bool {
	if len(e.keywords.PersonAskKeywords) > 0 {
		return extract.ContainsAny(q, e.keywords.PersonAskKeywords)
	}
	return extract.AsksSalesperson(q)
}

func (e *Engine) asksProduct(q string) bool {
	if len(e.keywords.ProductAskKeywords) > 0 {
		return extract.ContainsAny(q, e.keywords.ProductAskKeywords)
	}
	return extract.AsksProduct(q)
}

func (e *Engine) mentionsPerson(q string) bool {
	if len(e.keywords.PersonMentionKeywords) > 0 {
		return extract.ContainsAny(q, e.keywords.PersonMentionKeywords)
	}
	return extract.AsksPerson(q)
}
