package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/currency"
	"github.com/saleswire/server/internal/agent/extract"
	"github.com/saleswire/server/internal/agent/model"
	logx "github.com/saleswire/server/pkg/logger"
)

// contextOutcome is what the context-analysis step decided for the rest of
// the turn. A non-nil reply finishes the turn immediately.
type contextOutcome struct {
	inherited catalog.ParameterSet
	overrides map[string]any
	followUp  bool
	reply     *model.Reply
}

// analyzeContext relates the utterance to the previous successful query.
// It only runs when the conversation has context and no query is pending;
// analysis failures are skipped rather than failing the turn, because a
// fresh query still works without them.
func (e *Engine) analyzeContext(ctx context.Context, state *model.DialogueState, utterance string) contextOutcome {
	oc := contextOutcome{inherited: catalog.ParameterSet{}, overrides: map[string]any{}}
	if !state.HasContext() || state.HasPending() {
		return oc
	}

	decision, err := e.analyzer.Analyze(ctx, model.ContextInput{
		History:      state.HistoryForLLM(),
		LastQuestion: state.LastQueryContext,
		LastQueryID:  state.LastQueryID,
		LastParams:   state.LastSuccessfulParams,
		Message:      utterance,
		CurrentDate:  e.clock().Format(dateLayout),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("Context analysis skipped")
		return oc
	}
	logx.Debug().
		Str("query_type", string(decision.Kind)).
		Str("confidence", string(decision.Confidence)).
		Str("reasoning", decision.Reasoning).
		Msg("Context analysis")

	if !decision.Confidence.Actionable() {
		return oc
	}

	switch decision.Kind {
	case model.ContextAcknowledgment:
		text := ReplyAcknowledgment
		if extract.IsGoodbye(utterance) {
			text = ReplyGoodbye
		}
		state.AddTurn(model.RoleAssistant, text, nil)
		oc.reply = &model.Reply{Text: text}
		return oc

	case model.ContextClarificationQuestion:
		if len(state.LastRows) > 0 && len(state.LastColumns) > 0 && state.LastQueryContext != "" {
			text := clarificationReply(state)
			state.AddTurn(model.RoleAssistant, text, nil)
			oc.reply = &model.Reply{Text: text}
			return oc
		}
		oc.reply = &model.Reply{Text: ReplyNoClarifyContext}
		return oc
	}

	for _, p := range decision.InheritParams {
		if v, ok := state.LastSuccessfulParams[p]; ok {
			oc.inherited[p] = v
		}
	}
	if decision.OverrideParams != nil {
		oc.overrides = decision.OverrideParams
	}
	oc.followUp = decision.Kind == model.ContextFollowUp

	// The classifier sometimes misses a switch between people questions and
	// product questions. Correct it in code so a follow-up never reuses a
	// template with the wrong subject.
	asksPerson := e.asksSalesperson(utterance)
	asksProduct := e.asksProduct(utterance)
	wasProduct := state.LastQueryID.SubjectProduct()
	wasPerson := state.LastQueryID.SubjectPerson()
	if (asksPerson && wasProduct) || (asksProduct && wasPerson) {
		logx.Debug().Str("last_query_id", state.LastQueryID.String()).Msg("Query subject changed, forcing fresh selection")
		oc.followUp = false
		if asksProduct {
			delete(state.LastFilterParams, catalog.ParamBusinessCategory)
		}
	}
	return oc
}

// clarificationReply answers "is that the highest or lowest?" from the
// cached first row of the previous result.
func clarificationReply(state *model.DialogueState) string {
	direction := "highest/top"
	if state.LastSortDirection == model.SortAscending {
		direction = "lowest/bottom"
	}
	first := strings.SplitN(direction, "/", 2)[0]

	name := "unknown"
	value := "N/A"
	if len(state.LastRows) > 0 {
		row := state.LastRows[0]
		if len(row) > 0 {
			name = fmt.Sprint(row[0])
		}
		if len(row) > 1 {
			value = currency.Format(row[1])
		}
	}
	return fmt.Sprintf("That was the **%s** performer. %s with %s was the %s for the period.", direction, name, value, first)
}
