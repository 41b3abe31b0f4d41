package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/currency"
	"github.com/saleswire/server/internal/agent/extract"
	"github.com/saleswire/server/internal/agent/model"
	logx "github.com/saleswire/server/pkg/logger"
)

// narrate turns the raw result into the user-facing answer. Currency cells
// are formatted before the rows reach the prompt; the narrator reproduces
// them verbatim.
func (e *Engine) narrate(ctx context.Context, state *model.DialogueState, utterance string, followUp bool, result *model.QueryResult) (string, error) {
	question := narrationQuestion(state, utterance, followUp)
	queryContext := queryContextSummary(state.CollectedParams)
	logx.Debug().Str("question", question).Str("query_context", queryContext).Msg("Narrating result")

	return e.narrator.Narrate(ctx, model.NarrationInput{
		Question:     question,
		QueryContext: queryContext,
		Columns:      result.Columns,
		Rows:         currency.FormatRows(result.Columns, result.Rows),
	})
}

// narrationQuestion rewrites terse utterances so the narrator sees the
// resolved direction and count instead of a bare "bottom 2". True ordinals
// like "2nd" are left alone, they refer to a rank inside the result.
func narrationQuestion(state *model.DialogueState, utterance string, followUp bool) string {
	short := extract.IsShortResponse(utterance)

	sortVal, _ := state.CollectedParams[catalog.ParamSort].(string)
	direction := "lowest"
	if sortVal == "" || sortVal == model.SortDescending {
		direction = "highest"
	}

	if followUp && state.LastQueryContext != "" {
		if short && !extract.HasOrdinal(utterance) {
			n := state.CollectedParams[catalog.ParamN]
			if n == nil {
				n = 1
			}
			return fmt.Sprintf("Show %s %v performer(s) (%s)", direction, n, utterance)
		}
		return utterance
	}

	if state.OriginalQuestion != "" && short && !strings.EqualFold(state.OriginalQuestion, utterance) {
		return state.OriginalQuestion + " (" + utterance + ")"
	}
	return utterance
}

// queryContextSummary describes the active filters for the narrator, so the
// answer can mention them naturally.
func queryContextSummary(params catalog.ParameterSet) string {
	var parts []string

	if v := stringParam(params, catalog.ParamStateID); v != "" {
		parts = append(parts, "State: "+v)
	}
	if v := stringParam(params, catalog.ParamBusinessCategory); v != "" {
		parts = append(parts, "Category: "+strings.ReplaceAll(v, "'", ""))
	}
	if v := stringParam(params, catalog.ParamSalesType); v != "" {
		parts = append(parts, "Sales Type: "+capitalize(v))
	}
	if v := stringParam(params, catalog.ParamCSOID); v != "" {
		parts = append(parts, "CSO: "+v)
	}
	if v := stringParam(params, catalog.ParamClusterID); v != "" {
		parts = append(parts, "Cluster: "+v)
	}
	if period := periodLabel(stringParam(params, catalog.ParamStartDate), stringParam(params, catalog.ParamEndDate)); period != "" {
		parts = append(parts, "Period: "+period)
	}

	if len(parts) == 0 {
		return "No specific filters"
	}
	return strings.Join(parts, " | ")
}

// periodLabel renders a date range the way people say it: one month becomes
// "January 2025", a span becomes "Jan 2025 to Mar 2025".
func periodLabel(start, end string) string {
	if start == "" || end == "" {
		return ""
	}
	s, errS := time.Parse(dateLayout, start)
	e, errE := time.Parse(dateLayout, end)
	if errS != nil || errE != nil {
		return start + " to " + end
	}
	if s.Month() == e.Month() && s.Year() == e.Year() {
		return s.Format("January 2006")
	}
	return s.Format("Jan 2006") + " to " + e.Format("Jan 2006")
}

func stringParam(params catalog.ParameterSet, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
