package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/model"
	"github.com/saleswire/server/internal/agent/querygraph"
	errx "github.com/saleswire/server/internal/core/error"
)

const convID = "conv-1"

// Mid-November so "last month" is October 2025 and "last quarter" is Q3.
var testNow = time.Date(2025, time.November, 15, 10, 0, 0, 0, time.UTC)

type memStore struct {
	states  map[string]*model.DialogueState
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{states: map[string]*model.DialogueState{}}
}

func (m *memStore) Load(_ context.Context, id string) (*model.DialogueState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if s, ok := m.states[id]; ok {
		s.Normalize()
		return s, nil
	}
	return model.NewDialogueState(), nil
}

func (m *memStore) Save(_ context.Context, id string, s *model.DialogueState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[id] = s
	return nil
}

func (m *memStore) Clear(_ context.Context, id string) error {
	delete(m.states, id)
	return nil
}

func (m *memStore) List(_ context.Context) ([]model.ConversationInfo, error) {
	return nil, nil
}

// fakeRetriever serves real catalog templates; LookupByText follows a
// scripted queue instead of embeddings.
type fakeRetriever struct {
	reg       *catalog.Registry
	byText    []catalog.TemplateID
	textCalls []string
	idCalls   []catalog.TemplateID
}

func (f *fakeRetriever) LookupByText(_ context.Context, question string) (catalog.Template, error) {
	f.textCalls = append(f.textCalls, question)
	if len(f.byText) == 0 {
		return catalog.Template{}, errx.TemplateNotFound("nothing scripted")
	}
	id := f.byText[0]
	f.byText = f.byText[1:]
	return f.reg.ByID(id)
}

func (f *fakeRetriever) LookupByID(_ context.Context, id catalog.TemplateID) (catalog.Template, error) {
	f.idCalls = append(f.idCalls, id)
	return f.reg.ByID(id)
}

type fakeIntent struct {
	intent model.Intent
	err    error
	calls  int
}

func (f *fakeIntent) Route(_ context.Context, _ string) (model.Intent, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.intent == "" {
		return model.IntentSales, nil
	}
	return f.intent, nil
}

type fakeAnalyzer struct {
	decision *model.ContextDecision
	err      error
	calls    int
	lastIn   model.ContextInput
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in model.ContextInput) (*model.ContextDecision, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	if f.decision == nil {
		return &model.ContextDecision{Kind: model.ContextNewQuery, Confidence: model.ConfidenceHigh}, nil
	}
	return f.decision, nil
}

// fakeExtractor plays back one scripted result per call, empty once the
// queue runs out.
type fakeExtractor struct {
	queue  []map[string]any
	err    error
	inputs []model.ExtractionInput
}

func (f *fakeExtractor) Extract(_ context.Context, in model.ExtractionInput) (map[string]any, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return map[string]any{}, nil
	}
	out := f.queue[0]
	f.queue = f.queue[1:]
	return out, nil
}

type fakeExecutor struct {
	result *model.QueryResult
	err    error
	sqls   []string
}

func (f *fakeExecutor) Query(_ context.Context, sql string) (*model.QueryResult, error) {
	f.sqls = append(f.sqls, sql)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.QueryResult{
		Columns: []string{"salespersonname", "total_invoice_value"},
		Rows:    [][]any{{"Priya Sharma", 264407334.0}, {"Arun Mehta", 188230050.0}},
	}, nil
}

type fakeNarrator struct {
	answer   string
	err      error
	panicMsg string
	inputs   []model.NarrationInput
}

func (f *fakeNarrator) Narrate(_ context.Context, in model.NarrationInput) (string, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	if f.answer == "" {
		return "Here is what I found.", nil
	}
	return f.answer, nil
}

type fixture struct {
	engine    *Engine
	store     *memStore
	retriever *fakeRetriever
	intent    *fakeIntent
	analyzer  *fakeAnalyzer
	extractor *fakeExtractor
	executor  *fakeExecutor
	narrator  *fakeNarrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := catalog.Load()
	require.NoError(t, err)

	f := &fixture{
		store:     newMemStore(),
		retriever: &fakeRetriever{reg: reg},
		intent:    &fakeIntent{},
		analyzer:  &fakeAnalyzer{},
		extractor: &fakeExtractor{},
		executor:  &fakeExecutor{},
		narrator:  &fakeNarrator{},
	}
	f.engine, err = New(Config{
		States:    f.store,
		Retriever: f.retriever,
		Executor:  f.executor,
		Intent:    f.intent,
		Analyzer:  f.analyzer,
		Extractor: f.extractor,
		Narrator:  f.narrator,
		Resolver:  querygraph.NewResolver(reg),
		Clock:     func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) turn(t *testing.T, utterance string) model.Reply {
	t.Helper()
	reply, err := f.engine.ProcessTurn(context.Background(), convID, utterance)
	require.NoError(t, err)
	return reply
}

func (f *fixture) state(t *testing.T) *model.DialogueState {
	t.Helper()
	s, ok := f.store.states[convID]
	require.True(t, ok, "no state persisted for %s", convID)
	return s
}

func (f *fixture) lastSQL(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.executor.sqls)
	return f.executor.sqls[len(f.executor.sqls)-1]
}

// seedContext installs a finished "top 5 salespeople in Rajasthan last
// month" query so follow-up paths have something to inherit from.
func (f *fixture) seedContext() *model.DialogueState {
	s := model.NewDialogueState()
	s.LastSuccessfulParams = catalog.ParameterSet{
		catalog.ParamStateID:   "RJ",
		catalog.ParamStartDate: "2025-10-01",
		catalog.ParamEndDate:   "2025-10-31",
		catalog.ParamN:         5,
		catalog.ParamSort:      model.SortDescending,
	}
	s.LastQueryContext = "top 5 salespeople in Rajasthan last month"
	s.LastQueryID = "sales_performance_by_state"
	s.LastFilterParams = s.LastSuccessfulParams.Filters()
	s.LastColumns = []string{"salespersonname", "total_invoice_value"}
	s.LastRows = [][]any{{"Priya Sharma", 264407334.0}, {"Arun Mehta", 188230050.0}}
	s.AddTurn(model.RoleUser, s.LastQueryContext, nil)
	s.AddTurn(model.RoleAssistant, "Priya Sharma led with ₹26.44 Cr.", s.LastSuccessfulParams)
	f.store.states[convID] = s
	return s
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	reg, err := catalog.Load()
	require.NoError(t, err)

	valid := Config{
		States:    newMemStore(),
		Retriever: &fakeRetriever{reg: reg},
		Executor:  &fakeExecutor{},
		Intent:    &fakeIntent{},
		Analyzer:  &fakeAnalyzer{},
		Extractor: &fakeExtractor{},
		Narrator:  &fakeNarrator{},
		Resolver:  querygraph.NewResolver(reg),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no state store", func(c *Config) { c.States = nil }},
		{"no retriever", func(c *Config) { c.Retriever = nil }},
		{"no executor", func(c *Config) { c.Executor = nil }},
		{"no intent router", func(c *Config) { c.Intent = nil }},
		{"no analyzer", func(c *Config) { c.Analyzer = nil }},
		{"no extractor", func(c *Config) { c.Extractor = nil }},
		{"no narrator", func(c *Config) { c.Narrator = nil }},
		{"no resolver", func(c *Config) { c.Resolver = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	eng, err := New(valid)
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestFullyResolvedQuestionExecutesInOneTurn(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"state_category_performance"}
	f.narrator.answer = "Priya Sharma led FMEG sales in Rajasthan last quarter."

	reply := f.turn(t, "top 5 in Rajasthan for FMEG last quarter")

	assert.Equal(t, "Priya Sharma led FMEG sales in Rajasthan last quarter.", reply.Text)
	assert.False(t, reply.IsTable)

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "stateid = 'RJ'")
	assert.Contains(t, sql, "businesscategory IN ('FMEG')")
	assert.Contains(t, sql, "BETWEEN '2025-07-01' AND '2025-09-30'")
	assert.Contains(t, sql, "LIMIT 5")
	assert.Contains(t, sql, "DESC")

	// Everything was extracted deterministically; the model extractor and
	// context analyzer never ran.
	assert.Empty(t, f.extractor.inputs)
	assert.Zero(t, f.analyzer.calls)
	assert.Equal(t, 1, f.intent.calls)

	require.Len(t, f.narrator.inputs, 1)
	in := f.narrator.inputs[0]
	assert.Equal(t, "top 5 in Rajasthan for FMEG last quarter", in.Question)
	assert.Equal(t, "State: RJ | Category: FMEG | Period: Jul 2025 to Sep 2025", in.QueryContext)
	require.Len(t, in.Rows, 2)
	assert.Equal(t, "₹26.44 Cr", in.Rows[0][1], "currency cells are pre-formatted for the narrator")

	s := f.state(t)
	assert.False(t, s.HasPending())
	assert.Equal(t, catalog.TemplateID("state_category_performance"), s.LastQueryID)
	assert.Equal(t, 5, s.LastSuccessfulParams[catalog.ParamN])
	assert.Equal(t, model.SortDescending, s.LastSortDirection)
	assert.Equal(t, "RJ", s.LastFilterParams[catalog.ParamStateID])
	assert.Equal(t, "'FMEG'", s.LastFilterParams[catalog.ParamBusinessCategory])
	assert.Len(t, s.History, 2)
	assert.Equal(t, sql, s.LastExecutedSQL)
	assert.NotEmpty(t, s.LastRows, "raw rows cached for table replay")
}

func TestMonthNameDatesResolveWithoutExtractor(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	f.turn(t, "Highest sales January 2025")

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "BETWEEN '2025-01-01' AND '2025-01-31'")
	assert.Contains(t, sql, "LIMIT 1", "n defaults to 1 when unstated")
	assert.Contains(t, sql, "DESC")
	assert.Empty(t, f.extractor.inputs)

	s := f.state(t)
	assert.Equal(t, 1, s.LastSuccessfulParams[catalog.ParamN])
	assert.Equal(t, model.SortDescending, s.LastSuccessfulParams[catalog.ParamSort])
}

func TestFollowUpInheritsDatesAndFlipsDirection(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	f.turn(t, "Highest sales January 2025")

	f.analyzer.decision = &model.ContextDecision{
		Kind:          model.ContextFollowUp,
		Confidence:    model.ConfidenceHigh,
		InheritParams: []string{catalog.ParamStartDate, catalog.ParamEndDate},
		OverrideParams: map[string]any{
			catalog.ParamN:    float64(2),
			catalog.ParamSort: model.SortAscending,
		},
	}
	f.turn(t, "bottom 2")

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "BETWEEN '2025-01-01' AND '2025-01-31'", "dates inherited from the previous query")
	assert.Contains(t, sql, "ASC")
	assert.Contains(t, sql, "LIMIT 2")

	assert.Equal(t, "Highest sales January 2025", f.analyzer.lastIn.LastQuestion)
	assert.Equal(t, "2025-11-15", f.analyzer.lastIn.CurrentDate)

	// The follow-up reused the previous template by id, not a fresh search.
	assert.Contains(t, f.retriever.idCalls, catalog.TemplateID("top_salesperson_flexible_period"))
	assert.Len(t, f.retriever.textCalls, 1)

	require.Len(t, f.narrator.inputs, 2)
	assert.Equal(t, "Show lowest 2 performer(s) (bottom 2)", f.narrator.inputs[1].Question)

	s := f.state(t)
	assert.Equal(t, model.SortAscending, s.LastSortDirection)
}

func TestFollowUpAddingCategoryUpgradesTemplate(t *testing.T) {
	f := newFixture(t)
	f.seedContext()
	f.analyzer.decision = &model.ContextDecision{
		Kind:       model.ContextFollowUp,
		Confidence: model.ConfidenceHigh,
		InheritParams: []string{
			catalog.ParamStateID, catalog.ParamStartDate, catalog.ParamEndDate,
			catalog.ParamN, catalog.ParamSort,
		},
		OverrideParams: map[string]any{catalog.ParamBusinessCategory: "'FMEG'"},
	}

	f.turn(t, "what about FMEG specifically")

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "stateid = 'RJ'")
	assert.Contains(t, sql, "businesscategory IN ('FMEG')")
	assert.Contains(t, sql, "BETWEEN '2025-10-01' AND '2025-10-31'")
	assert.Contains(t, sql, "LIMIT 5")

	require.Len(t, f.narrator.inputs, 1)
	assert.Equal(t, "Show highest 5 performer(s) (what about FMEG specifically)", f.narrator.inputs[0].Question)

	s := f.state(t)
	assert.Equal(t, catalog.TemplateID("state_category_performance"), s.LastQueryID,
		"adding a category filter moves a state query to the state+category template")
}

func TestNewLocationFilterReplacesOldOne(t *testing.T) {
	f := newFixture(t)
	f.seedContext()
	f.analyzer.decision = &model.ContextDecision{
		Kind:           model.ContextFollowUp,
		Confidence:     model.ConfidenceHigh,
		InheritParams:  []string{catalog.ParamStartDate, catalog.ParamEndDate},
		OverrideParams: map[string]any{catalog.ParamCSOID: "CSO001"},
	}

	f.turn(t, "same dates but for CSO001")

	// Without the mutual exclusion the old state_id=RJ filter would be
	// backfilled and silently scope the query to the wrong location.
	sql := f.lastSQL(t)
	assert.Contains(t, sql, "CSO001")
	assert.NotContains(t, sql, "'RJ'")
	assert.Equal(t, "CSO001", f.state(t).LastFilterParams[catalog.ParamCSOID])
}

func TestSubjectChangeForcesFreshSelection(t *testing.T) {
	f := newFixture(t)
	s := f.seedContext()
	s.LastQueryID = "product_segment_domestic"
	s.LastQueryContext = "product segment sales last month"
	s.LastFilterParams = catalog.ParameterSet{catalog.ParamBusinessCategory: "'FMEG'"}

	f.analyzer.decision = &model.ContextDecision{
		Kind:          model.ContextFollowUp,
		Confidence:    model.ConfidenceHigh,
		InheritParams: []string{catalog.ParamStartDate, catalog.ParamEndDate},
	}
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	f.turn(t, "who was the top salesperson")

	// The classifier said FOLLOW_UP but the subject moved from products to
	// people, so the engine searched the catalog instead of reusing the
	// product template.
	require.Len(t, f.retriever.textCalls, 1)
	assert.Equal(t, "who was the top salesperson", f.retriever.textCalls[0])
	assert.Empty(t, f.retriever.idCalls)

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "BETWEEN '2025-10-01' AND '2025-10-31'", "dates still inherit across the subject change")
	assert.NotContains(t, sql, "FMEG")
	assert.Equal(t, catalog.TemplateID("top_salesperson_flexible_period"), f.state(t).LastQueryID)
}

func TestProductQuestionDropsStaleCategoryFilter(t *testing.T) {
	f := newFixture(t)
	s := f.seedContext()
	s.LastQueryID = "general_category_performance"
	s.LastQueryContext = "top FMEG salespeople last month"
	s.LastSuccessfulParams = catalog.ParameterSet{
		catalog.ParamBusinessCategory: "'FMEG'",
		catalog.ParamStartDate:        "2025-10-01",
		catalog.ParamEndDate:          "2025-10-31",
		catalog.ParamN:                5,
		catalog.ParamSort:             model.SortDescending,
	}
	s.LastFilterParams = s.LastSuccessfulParams.Filters()

	f.analyzer.decision = &model.ContextDecision{
		Kind:       model.ContextFollowUp,
		Confidence: model.ConfidenceHigh,
	}
	f.retriever.byText = []catalog.TemplateID{"product_segment_domestic"}

	f.turn(t, "which product segment sold the most")

	// People query to product question: the misclassified FOLLOW_UP is
	// overridden, the catalog is searched fresh and the old category filter
	// does not follow along.
	require.Len(t, f.retriever.textCalls, 1)
	sql := f.lastSQL(t)
	assert.Contains(t, sql, "'Domestic'")
	assert.Contains(t, sql, "BETWEEN '2025-10-01' AND '2025-10-31'", "template defaults resolve to last month")
	assert.NotContains(t, sql, "FMEG")
	assert.Equal(t, catalog.TemplateID("product_segment_domestic"), f.state(t).LastQueryID)
}

func TestMissingStateAskedThenResolved(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"sales_performance_by_state"}

	reply := f.turn(t, "sales performance by state last month")
	assert.Equal(t, paramPrompts[catalog.ParamStateID], reply.Text)

	s := f.state(t)
	assert.True(t, s.HasPending())
	assert.Equal(t, []string{catalog.ParamStateID}, s.MissingParams)
	assert.Equal(t, 1, s.ParamAttempts)
	assert.Empty(t, f.executor.sqls)
	assert.Equal(t, 1, f.intent.calls)

	f.extractor.queue = []map[string]any{{catalog.ParamStateID: "RJ"}}
	reply = f.turn(t, "Rajasthan")

	assert.Equal(t, "Here is what I found.", reply.Text)
	assert.Equal(t, 1, f.intent.calls, "pending turns skip the intent router")
	assert.Zero(t, f.analyzer.calls, "pending turns skip context analysis")

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "stateid = 'RJ'")
	assert.Contains(t, sql, "BETWEEN '2025-10-01' AND '2025-10-31'")

	require.Len(t, f.narrator.inputs, 1)
	assert.Equal(t, "sales performance by state last month (Rajasthan)", f.narrator.inputs[0].Question,
		"short answers are narrated against the original question")

	assert.False(t, f.state(t).HasPending())
}

func TestBothDatesMissingCollapseToOneQuestion(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	reply := f.turn(t, "top 3 salespeople")

	assert.Equal(t, "Which time period should I look at?", reply.Text)
	s := f.state(t)
	assert.ElementsMatch(t, []string{catalog.ParamStartDate, catalog.ParamEndDate}, s.MissingParams)
	assert.Equal(t, 3, s.CollectedParams[catalog.ParamN])
}

func TestCollectionGivesUpAtAttemptCap(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"sales_performance_by_state"}

	f.turn(t, "sales by state last month")
	f.turn(t, "hmm")
	reply := f.turn(t, "no idea honestly")

	assert.Equal(t, ReplyCollectionGiveUp, reply.Text)

	s := f.state(t)
	assert.False(t, s.HasPending(), "the stuck query is abandoned")
	assert.Empty(t, s.MissingParams)
	assert.Len(t, s.History, 3, "the transcript survives the give-up")
	assert.Empty(t, s.LastSuccessfulParams, "give-up never touches cross-query memory")
	assert.Empty(t, f.executor.sqls)
}

func TestExtractionParseFailureKeepsAsking(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"sales_performance_by_state"}
	f.extractor.err = errx.ExtractionParse(errors.New("model returned prose"))

	reply, err := f.engine.ProcessTurn(context.Background(), convID, "state sales last month")

	require.NoError(t, err, "a garbled extraction is not a turn failure")
	assert.Equal(t, paramPrompts[catalog.ParamStateID], reply.Text)
	assert.True(t, f.state(t).HasPending())
}

func TestAllAnswerExpandsEveryCategoryAndExportSwitches(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"state_category_performance"}

	reply := f.turn(t, "category performance in Rajasthan")
	assert.Contains(t, reply.Text, "business category")
	assert.Equal(t, []string{catalog.ParamBusinessCategory, catalog.ParamStartDate, catalog.ParamEndDate},
		f.state(t).MissingParams)

	reply = f.turn(t, "all")
	assert.Equal(t, "Which time period should I look at?", reply.Text)
	assert.Equal(t, catalog.AllCategoriesLiteral, f.state(t).CollectedParams[catalog.ParamBusinessCategory])

	f.extractor.queue = []map[string]any{{
		catalog.ParamStartDate: "2025-10-01",
		catalog.ParamEndDate:   "2025-10-31",
	}}
	reply = f.turn(t, "export, last month")

	assert.Equal(t, "Here is what I found.", reply.Text)
	sql := f.lastSQL(t)
	assert.Contains(t, sql, "salestype = 'Export'", "mid-collection export mention switches the variant")
	assert.Contains(t, sql, catalog.AllCategoriesLiteral)
	assert.Contains(t, sql, "stateid = 'RJ'")
	assert.Equal(t, catalog.TemplateID("state_category_performance_export"), f.state(t).LastQueryID)
}

func TestProductDefaultsResolveToLastMonth(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"product_segment_domestic"}
	f.executor.result = &model.QueryResult{
		Columns: []string{"productsegment", "businesscategory", "total_invoice_value"},
		Rows:    [][]any{{"House Wire", "Wires & Cables", 911000000.0}},
	}

	f.turn(t, "product segment sales")

	sql := f.lastSQL(t)
	assert.Contains(t, sql, "BETWEEN '2025-10-01' AND '2025-10-31'")
	assert.Empty(t, f.extractor.inputs, "no required parameters means no extraction round")

	require.Len(t, f.narrator.inputs, 1)
	assert.Equal(t, "Period: October 2025", f.narrator.inputs[0].QueryContext)
	assert.Equal(t, "₹91.1 Cr", f.narrator.inputs[0].Rows[0][2])
}

func TestResetKeywordWipesEverythingBeforeAnythingElse(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"sales_performance_by_state"}

	f.turn(t, "sales by state last month")
	require.True(t, f.state(t).HasPending())

	reply := f.turn(t, "let's start over please")

	assert.Equal(t, ReplyResetDone, reply.Text)
	assert.Equal(t, 1, f.intent.calls, "the reset gate runs before intent routing")

	s := f.state(t)
	assert.False(t, s.HasPending())
	assert.Empty(t, s.History)
	assert.Empty(t, s.LastSuccessfulParams)
}

func TestConversationalIntents(t *testing.T) {
	t.Run("greeting", func(t *testing.T) {
		f := newFixture(t)
		f.intent.intent = model.IntentGreeting

		reply := f.turn(t, "good morning!")

		assert.Equal(t, ReplyGreeting, reply.Text)
		require.Len(t, f.state(t).History, 2)
		assert.Equal(t, model.RoleAssistant, f.state(t).History[1].Role)
	})

	t.Run("rejection clears the conversation", func(t *testing.T) {
		f := newFixture(t)
		f.seedContext()
		f.intent.intent = model.IntentReject

		reply := f.turn(t, "write me a poem about clouds")

		assert.Equal(t, ReplyDomainDecline, reply.Text)
		assert.Empty(t, f.state(t).History)
		assert.Empty(t, f.state(t).LastSuccessfulParams)
	})

	t.Run("reset intent", func(t *testing.T) {
		f := newFixture(t)
		f.seedContext()
		f.intent.intent = model.IntentReset

		reply := f.turn(t, "forget all that")

		assert.Equal(t, ReplyAllClear, reply.Text)
		assert.Empty(t, f.state(t).History)
	})
}

func TestTableReplay(t *testing.T) {
	t.Run("replays the cached result without a model call", func(t *testing.T) {
		f := newFixture(t)
		s := f.seedContext()

		reply := f.turn(t, "table format")

		assert.True(t, reply.IsTable)
		assert.Equal(t, s.LastColumns, reply.Columns)
		assert.Equal(t, s.LastRows, reply.Rows)
		assert.Zero(t, f.intent.calls, "exact table phrasings bypass the intent router")
	})

	t.Run("nothing to replay", func(t *testing.T) {
		f := newFixture(t)
		f.intent.intent = model.IntentTable

		reply := f.turn(t, "can I see that as a table")

		assert.False(t, reply.IsTable)
		assert.Equal(t, ReplyNoTableContext, reply.Text)
	})
}

func TestAcknowledgmentAndGoodbye(t *testing.T) {
	t.Run("acknowledgment", func(t *testing.T) {
		f := newFixture(t)
		f.seedContext()
		f.analyzer.decision = &model.ContextDecision{Kind: model.ContextAcknowledgment, Confidence: model.ConfidenceHigh}

		reply := f.turn(t, "great, thanks!")

		assert.Equal(t, ReplyAcknowledgment, reply.Text)
		assert.Empty(t, f.executor.sqls)
	})

	t.Run("goodbye", func(t *testing.T) {
		f := newFixture(t)
		f.seedContext()
		f.analyzer.decision = &model.ContextDecision{Kind: model.ContextAcknowledgment, Confidence: model.ConfidenceHigh}

		reply := f.turn(t, "thanks, bye!")

		assert.Equal(t, ReplyGoodbye, reply.Text)
	})
}

func TestClarificationQuestionAnswersFromCache(t *testing.T) {
	t.Run("with a cached result", func(t *testing.T) {
		f := newFixture(t)
		f.seedContext()
		f.analyzer.decision = &model.ContextDecision{Kind: model.ContextClarificationQuestion, Confidence: model.ConfidenceHigh}

		reply := f.turn(t, "is that the highest?")

		assert.Equal(t, "That was the **highest/top** performer. Priya Sharma with ₹26.44 Cr was the highest for the period.", reply.Text)
		assert.Empty(t, f.executor.sqls)
	})

	t.Run("lowest direction", func(t *testing.T) {
		f := newFixture(t)
		s := f.seedContext()
		s.LastSortDirection = model.SortAscending
		f.analyzer.decision = &model.ContextDecision{Kind: model.ContextClarificationQuestion, Confidence: model.ConfidenceHigh}

		reply := f.turn(t, "highest or lowest?")

		assert.Equal(t, "That was the **lowest/bottom** performer. Priya Sharma with ₹26.44 Cr was the lowest for the period.", reply.Text)
	})

	t.Run("no cached result", func(t *testing.T) {
		f := newFixture(t)
		s := f.seedContext()
		s.LastRows = nil
		s.LastColumns = nil
		f.analyzer.decision = &model.ContextDecision{Kind: model.ContextClarificationQuestion, Confidence: model.ConfidenceHigh}

		reply := f.turn(t, "is that the highest?")

		assert.Equal(t, ReplyNoClarifyContext, reply.Text)
	})
}

func TestLowConfidenceVerdictIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.seedContext()
	f.analyzer.decision = &model.ContextDecision{
		Kind:           model.ContextFollowUp,
		Confidence:     model.ConfidenceLow,
		InheritParams:  []string{catalog.ParamStartDate, catalog.ParamEndDate},
		OverrideParams: map[string]any{catalog.ParamN: float64(3)},
	}
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	f.turn(t, "best salesperson this year")

	// Nothing inherited: the utterance stands alone and this year's dates
	// come from the question itself.
	require.Len(t, f.retriever.textCalls, 1)
	sql := f.lastSQL(t)
	assert.Contains(t, sql, "BETWEEN '2025-01-01' AND '2025-12-31'")
	assert.Contains(t, sql, "LIMIT 1")
}

func TestAnalyzerFailureFallsBackToFreshQuery(t *testing.T) {
	f := newFixture(t)
	f.seedContext()
	f.analyzer.err = errx.WrapModel(errors.New("deadline exceeded"))
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	reply, err := f.engine.ProcessTurn(context.Background(), convID, "top salesperson last month")

	require.NoError(t, err, "context analysis is advisory, not load-bearing")
	assert.Equal(t, "Here is what I found.", reply.Text)
	assert.Contains(t, f.lastSQL(t), "BETWEEN '2025-10-01' AND '2025-10-31'")
}

func TestRetiredFollowUpTemplateFallsBackToSearch(t *testing.T) {
	f := newFixture(t)
	s := f.seedContext()
	s.LastQueryID = "retired_template"
	f.analyzer.decision = &model.ContextDecision{
		Kind:          model.ContextFollowUp,
		Confidence:    model.ConfidenceHigh,
		InheritParams: []string{catalog.ParamStartDate, catalog.ParamEndDate},
	}
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}

	reply := f.turn(t, "and the month before?")

	assert.Equal(t, "Here is what I found.", reply.Text)
	require.Len(t, f.retriever.textCalls, 1)
	assert.Equal(t, s.LastQueryContext, f.retriever.textCalls[0],
		"the search reuses the previous question, not the bare follow-up")
}

func TestExecutorFailureWipesConversation(t *testing.T) {
	f := newFixture(t)
	f.seedContext()
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}
	f.executor.err = errx.ExecutionFailure(errors.New("connection refused"))

	reply, err := f.engine.ProcessTurn(context.Background(), convID, "top salesperson last month")

	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrExecutionFailure)
	assert.Equal(t, ReplyTurnFailure, reply.Text)

	s := f.state(t)
	assert.Empty(t, s.History)
	assert.Empty(t, s.LastSuccessfulParams)
	assert.False(t, s.HasPending())
}

func TestPanicInsideTurnBecomesFailureReply(t *testing.T) {
	f := newFixture(t)
	f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}
	f.narrator.panicMsg = "boom"

	reply, err := f.engine.ProcessTurn(context.Background(), convID, "top salesperson last month")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn panicked")
	assert.Equal(t, ReplyTurnFailure, reply.Text)
	assert.Empty(t, f.state(t).History)
}

func TestStoreFailuresStillProduceAReply(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.loadErr = errx.WrapRedis(errors.New("connection reset"))

		reply, err := f.engine.ProcessTurn(context.Background(), convID, "top salesperson last month")

		require.Error(t, err)
		assert.Equal(t, ReplyTurnFailure, reply.Text)
	})

	t.Run("save failure keeps the answer", func(t *testing.T) {
		f := newFixture(t)
		f.retriever.byText = []catalog.TemplateID{"top_salesperson_flexible_period"}
		f.store.saveErr = errx.WrapRedis(errors.New("connection reset"))

		reply, err := f.engine.ProcessTurn(context.Background(), convID, "top salesperson last month")

		require.Error(t, err)
		assert.Equal(t, "Here is what I found.", reply.Text, "the user still gets the answer when only persistence failed")
	})
}

func TestMissingParamsPromptPhrasing(t *testing.T) {
	tests := []struct {
		name    string
		missing []string
		want    string
	}{
		{
			name:    "single state",
			missing: []string{catalog.ParamStateID},
			want:    "Which state are you interested in? Please provide the state code (e.g., 'RJ', 'MH', 'BH').",
		},
		{
			name:    "single category",
			missing: []string{catalog.ParamBusinessCategory},
			want:    "Which business unit? You can say 'FMEG', 'Wires & Cables', 'Switchgear' or their export variant.",
		},
		{
			name:    "both dates collapse",
			missing: []string{catalog.ParamStartDate, catalog.ParamEndDate},
			want:    "Which time period should I look at?",
		},
		{
			name:    "two mixed",
			missing: []string{catalog.ParamStateID, catalog.ParamBusinessCategory},
			want:    "I need two more details: the state id (state code (e.g., 'BH', 'RJ', 'MH')) and the business category (business unit (e.g., 'FMEG', 'Wires & Cables', 'Wiring Devices & Switchgear')).",
		},
		{
			name:    "three",
			missing: []string{catalog.ParamBusinessCategory, catalog.ParamStartDate, catalog.ParamEndDate},
			want:    "I need a few more details: the business category (business unit (e.g., 'FMEG', 'Wires & Cables', 'Wiring Devices & Switchgear')), the start date (start date (e.g., 'last month', 'January 1 2024', '2024-01-01')), and the end date (end date (e.g., 'today', 'December 31 2024', '2024-12-31')).",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, missingParamsPrompt(tt.missing))
		})
	}
}

func TestQueryContextSummary(t *testing.T) {
	tests := []struct {
		name   string
		params catalog.ParameterSet
		want   string
	}{
		{
			name:   "no filters",
			params: catalog.ParameterSet{catalog.ParamN: 5, catalog.ParamSort: "DESC"},
			want:   "No specific filters",
		},
		{
			name: "full filter set in fixed order",
			params: catalog.ParameterSet{
				catalog.ParamStateID:          "RJ",
				catalog.ParamBusinessCategory: "'FMEG'",
				catalog.ParamSalesType:        "export",
				catalog.ParamStartDate:        "2025-07-01",
				catalog.ParamEndDate:          "2025-09-30",
			},
			want: "State: RJ | Category: FMEG | Sales Type: Export | Period: Jul 2025 to Sep 2025",
		},
		{
			name: "single month period",
			params: catalog.ParameterSet{
				catalog.ParamStartDate: "2025-10-01",
				catalog.ParamEndDate:   "2025-10-31",
			},
			want: "Period: October 2025",
		},
		{
			name: "unparseable dates pass through",
			params: catalog.ParameterSet{
				catalog.ParamStartDate: "start of time",
				catalog.ParamEndDate:   "now",
			},
			want: "Period: start of time to now",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryContextSummary(tt.params))
		})
	}
}

func TestNarrationQuestionRewrites(t *testing.T) {
	base := func() *model.DialogueState {
		s := model.NewDialogueState()
		s.LastQueryContext = "top 5 salespeople last month"
		s.OriginalQuestion = "sales performance by state last month"
		s.CollectedParams = catalog.ParameterSet{catalog.ParamN: 2, catalog.ParamSort: model.SortAscending}
		return s
	}

	t.Run("short follow-up names direction and count", func(t *testing.T) {
		got := narrationQuestion(base(), "bottom 2", true)
		assert.Equal(t, "Show lowest 2 performer(s) (bottom 2)", got)
	})

	t.Run("ordinal follow-ups are left alone", func(t *testing.T) {
		got := narrationQuestion(base(), "who was 2nd", true)
		assert.Equal(t, "who was 2nd", got)
	})

	t.Run("short fresh answer carries the original question", func(t *testing.T) {
		got := narrationQuestion(base(), "Rajasthan", false)
		assert.Equal(t, "sales performance by state last month (Rajasthan)", got)
	})

	t.Run("long utterances pass through", func(t *testing.T) {
		q := "show me the complete sales performance for every state this year"
		got := narrationQuestion(base(), q, false)
		assert.Equal(t, q, got)
	})
}
