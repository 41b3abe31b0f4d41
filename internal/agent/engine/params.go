package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/extract"
	"github.com/saleswire/server/internal/agent/model"
	"github.com/saleswire/server/internal/agent/querygraph"
	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

// selectTemplate picks the template a fresh turn resolves against and
// returns its required parameters. A valid follow-up reuses the previous
// template; everything else goes through retrieval.
func (e *Engine) selectTemplate(ctx context.Context, state *model.DialogueState, utterance string, followUp bool) ([]string, error) {
	if followUp && state.LastQueryID != "" && state.LastQueryContext != "" {
		// A product-subject template cannot answer a person question, even
		// on an otherwise valid follow-up.
		if state.LastQueryID.SubjectProduct() && e.mentionsPerson(utterance) {
			logx.Debug().Str("last_query_id", state.LastQueryID.String()).Msg("Follow-up subject mismatch, searching catalog")
		} else {
			tpl, err := e.retriever.LookupByID(ctx, state.LastQueryID)
			if err != nil {
				logx.Warn().Err(err).Str("template_id", state.LastQueryID.String()).Msg("Follow-up template missing, searching catalog")
				tpl, err = e.retriever.LookupByText(ctx, state.LastQueryContext)
				if err != nil {
					return nil, err
				}
			}
			logx.Debug().Str("template_id", tpl.ID.String()).Msg("Follow-up reuses template")
			e.adoptTemplate(state, tpl, state.LastQueryContext)
			return tpl.Params, nil
		}
	}

	tpl, err := e.retriever.LookupByText(ctx, utterance)
	if err != nil {
		return nil, err
	}
	logx.Debug().Str("template_id", tpl.ID.String()).Msg("Template selected")
	e.adoptTemplate(state, tpl, utterance)
	return tpl.Params, nil
}

func (e *Engine) adoptTemplate(state *model.DialogueState, tpl catalog.Template, question string) {
	state.PendingQueryID = tpl.ID
	state.PendingSQL = tpl.SQL
	state.OptionalParams = tpl.OptionalParams
	state.ParamDefaults = cloneDefaults(tpl.Defaults)
	state.OriginalQuestion = question
	state.ParamAttempts = 0
}

// prepareParams seeds the collected set from context analysis, applies
// location mutual exclusion and follow-up filter inheritance, computes the
// missing list and runs deterministic pre-extraction over the utterance.
func (e *Engine) prepareParams(state *model.DialogueState, oc contextOutcome, required []string, utterance string) {
	state.CollectedParams = catalog.ParameterSet{}
	for k, v := range oc.inherited {
		state.CollectedParams[k] = v
	}
	for k, v := range oc.overrides {
		state.CollectedParams[k] = v
	}

	// An explicit new location filter replaces any other persisted location
	// dimension; a query is scoped to one of state, CSO or cluster.
	newLocation := false
	for k := range oc.overrides {
		if catalog.LocationParams[k] {
			newLocation = true
			break
		}
	}
	if newLocation {
		for k := range catalog.LocationParams {
			if _, explicit := oc.overrides[k]; explicit {
				continue
			}
			if _, ok := state.LastFilterParams[k]; ok {
				delete(state.LastFilterParams, k)
				logx.Debug().Str("param", k).Msg("Dropped conflicting location filter")
			}
		}
	}

	if oc.followUp {
		for k, v := range state.LastFilterParams {
			if _, ok := state.CollectedParams[k]; !ok {
				state.CollectedParams[k] = v
				logx.Debug().Str("param", k).Msg("Inherited persistent filter")
			}
		}
	}

	state.MissingParams = nil
	for _, p := range required {
		if _, ok := state.CollectedParams[p]; !ok {
			state.MissingParams = append(state.MissingParams, p)
		}
	}

	// Deterministic pre-extraction so explicit values like "top 5" never
	// depend on model output. n and sort always re-extract; dates only when
	// the utterance names a time period.
	hasTime := extract.HasExplicitTime(utterance)
	now := e.clock()
	for _, p := range append(append([]string{}, required...), state.OptionalParams...) {
		override := p == catalog.ParamN || p == catalog.ParamSort
		if hasTime && (p == catalog.ParamStartDate || p == catalog.ParamEndDate) {
			override = true
		}
		if _, ok := state.CollectedParams[p]; ok && !override {
			continue
		}
		if v, ok := extract.FromQuestion(utterance, p, now); ok {
			state.CollectedParams[p] = v
			state.MissingParams = removeParam(state.MissingParams, p)
			logx.Debug().Str("param", p).Interface("value", v).Msg("Extracted from question")
		}
	}
}

// applyScopeToggles moves the pending template between its domestic and
// export variants when the utterance or the context overrides ask for the
// other channel.
func (e *Engine) applyScopeToggles(ctx context.Context, state *model.DialogueState, utterance string, overrides map[string]any) {
	wantsExport := extract.MentionsExport(utterance) ||
		overrideEquals(overrides, "business_type", "export") ||
		overrideEquals(overrides, "segment", "export") ||
		overrideEquals(overrides, catalog.ParamSalesType, "export")
	if wantsExport && !state.PendingQueryID.IsExport() {
		_, hasCategory := state.CollectedParams[catalog.ParamBusinessCategory]
		target, ok := querygraph.ExportVariant(state.PendingQueryID)
		if hasCategory && state.PendingQueryID == "product_segment_domestic" {
			target, ok = "product_segment_export_by_category", true
		}
		if ok {
			e.switchTemplate(ctx, state, target, true)
		}
	}

	wantsDomestic := extract.MentionsDomestic(utterance) ||
		overrideEquals(overrides, catalog.ParamSalesType, "domestic") ||
		overrideEquals(overrides, catalog.ParamSalesType, "'domestic'")
	if wantsDomestic && state.PendingQueryID.IsExport() {
		if target, ok := querygraph.DomesticVariant(state.PendingQueryID); ok {
			e.switchTemplate(ctx, state, target, true)
		}
	}
}

// switchTemplate moves the in-progress query to another catalog template.
// Unknown targets keep the current template so the turn can still execute.
func (e *Engine) switchTemplate(ctx context.Context, state *model.DialogueState, id catalog.TemplateID, recalcMissing bool) {
	tpl, err := e.retriever.LookupByID(ctx, id)
	if err != nil {
		logx.Warn().Err(err).Str("template_id", id.String()).Msg("Template switch failed, keeping current")
		return
	}
	logx.Debug().Str("from", state.PendingQueryID.String()).Str("to", id.String()).Msg("Switching template")
	state.PendingQueryID = tpl.ID
	state.PendingSQL = tpl.SQL
	state.OptionalParams = tpl.OptionalParams
	state.ParamDefaults = cloneDefaults(tpl.Defaults)
	if recalcMissing {
		state.MissingParams = nil
		for _, p := range tpl.Params {
			if _, ok := state.CollectedParams[p]; !ok {
				state.MissingParams = append(state.MissingParams, p)
			}
		}
	}
}

// collectMissing runs one extraction round against the utterance. When
// parameters remain it asks for them, up to the attempt cap; at the cap the
// in-progress query is abandoned while the transcript and last successful
// query survive.
func (e *Engine) collectMissing(ctx context.Context, state *model.DialogueState, utterance string, oc contextOutcome) (model.Reply, bool, error) {
	if len(state.MissingParams) == 0 {
		return model.Reply{}, false, nil
	}

	state.IncrementAttempts()

	extracted, err := e.extractor.Extract(ctx, model.ExtractionInput{
		MissingParams:    state.MissingParams,
		CollectedParams:  state.CollectedParams,
		OptionalParams:   state.OptionalParams,
		OriginalQuestion: state.OriginalQuestion,
		CurrentDate:      e.clock().Format(dateLayout),
		Question:         utterance,
		InheritedParams:  oc.inherited,
		OverrideHints:    oc.overrides,
	})
	if err != nil {
		if !errors.Is(err, errx.ErrExtractionParse) {
			return model.Reply{}, false, err
		}
		logx.Warn().Err(err).Msg("Extraction unusable, nothing collected this round")
		extracted = nil
	}

	// A bare "all" answering a category question expands to every category.
	if containsParam(state.MissingParams, catalog.ParamBusinessCategory) && extract.IsAllCategoriesAnswer(utterance) {
		if extracted == nil {
			extracted = map[string]any{}
		}
		extracted[catalog.ParamBusinessCategory] = catalog.AllCategoriesLiteral
	}

	mergeParams(state.CollectedParams, extracted)

	if v, ok := state.CollectedParams[catalog.ParamBusinessCategory]; ok && extract.IsAllCategoriesValue(fmt.Sprint(v)) {
		state.CollectedParams[catalog.ParamBusinessCategory] = catalog.AllCategoriesLiteral
	}

	// Mid-collection export mentions move the query to the export variant.
	if extract.MentionsExport(utterance) && !extract.MentionsDomestic(utterance) {
		if target, ok := querygraph.ExportVariant(state.PendingQueryID); ok && target != state.PendingQueryID {
			e.switchTemplate(ctx, state, target, false)
		}
	}

	var still []string
	for _, p := range state.MissingParams {
		if _, ok := state.CollectedParams[p]; !ok {
			still = append(still, p)
		}
	}
	state.MissingParams = still

	if len(state.MissingParams) == 0 {
		return model.Reply{}, false, nil
	}

	if state.AttemptsExhausted() {
		logx.Warn().
			Err(errx.RetryExhaustion(state.ParamAttempts)).
			Strs("missing", state.MissingParams).
			Msg("Giving up on parameter collection")
		state.ClearQueryState()
		return model.TextReply(ReplyCollectionGiveUp), true, nil
	}
	return model.TextReply(missingParamsPrompt(state.MissingParams)), true, nil
}

// applyDefaults fills template defaults for parameters the user never
// supplied, resolving date placeholders against the clock. Present keys are
// never overwritten, so re-running is harmless.
func (e *Engine) applyDefaults(state *model.DialogueState) {
	now := e.clock()
	for p, def := range state.ParamDefaults {
		if _, ok := state.CollectedParams[p]; ok {
			continue
		}
		if s, isString := def.(string); isString && extract.IsPlaceholder(s) {
			state.CollectedParams[p] = extract.ResolvePlaceholder(s, now)
			continue
		}
		state.CollectedParams[p] = def
	}
}

// revalidate asks the query graph whether the collected filters belong to a
// different template and switches when they do.
func (e *Engine) revalidate(ctx context.Context, state *model.DialogueState) {
	best := e.resolver.ResolveBest(state.PendingQueryID, state.CollectedParams)
	if best == "" || best == state.PendingQueryID {
		return
	}
	logx.Debug().Str("from", state.PendingQueryID.String()).Str("to", best.String()).Msg("Collected filters need a different template")
	e.switchTemplate(ctx, state, best, false)
}

// mergeParams folds freshly extracted values into the collected set. Empty
// and SKIP values never land; real values replace earlier ones so the model
// can correct a bad pre-extraction.
func mergeParams(collected catalog.ParameterSet, extracted map[string]any) {
	for k, v := range extracted {
		if skippable(v) {
			continue
		}
		collected[k] = v
	}
}

func skippable(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && (s == "" || s == "SKIP")
}

func overrideEquals(overrides map[string]any, key, want string) bool {
	v, ok := overrides[key].(string)
	return ok && v == want
}

func removeParam(params []string, name string) []string {
	out := params[:0]
	for _, p := range params {
		if p != name {
			out = append(out, p)
		}
	}
	return out
}

func containsParam(params []string, name string) bool {
	for _, p := range params {
		if p == name {
			return true
		}
	}
	return false
}

func cloneDefaults(defaults map[string]any) map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}
