package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/rxrag/internal/drug"
	"github.com/raphaelgruber/rxrag/internal/fhir"
	"github.com/raphaelgruber/rxrag/internal/llm"
	"github.com/raphaelgruber/rxrag/internal/memory"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	action models.Action
	err    error
}

func (f *fakeRouter) Route(context.Context, string) (models.Action, error) {
	return f.action, f.err
}

type countingRecords struct {
	src   fhir.RecordSource
	loads int
}

func (c *countingRecords) LoadBundle(ctx context.Context, patientID string) (*fhir.Bundle, error) {
	c.loads++
	return c.src.LoadBundle(ctx, patientID)
}

type fakeMatcher struct {
	byCode map[string]models.CatalogEntry
	byName map[string]models.CatalogEntry
	err    error
	calls  int
}

func (f *fakeMatcher) MatchMedication(_ context.Context, med *fhir.Medication) (*models.CatalogEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.byCode[med.Code.FirstCoding().Code]; ok {
		return &e, nil
	}
	return nil, drug.ErrNoMatch
}

func (f *fakeMatcher) MatchName(_ context.Context, name string) (*models.CatalogEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.byName[strings.ToLower(name)]; ok {
		return &e, nil
	}
	return nil, fmt.Errorf("%w: %s", drug.ErrNoMatch, name)
}

type fakeKnowledge struct {
	texts map[string]string
	gets  int
}

func (f *fakeKnowledge) Get(_ context.Context, slug string) (string, error) {
	f.gets++
	if t, ok := f.texts[slug]; ok {
		return t, nil
	}
	return models.NoKnowledgeText, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	err      error
	requests []llm.AnswerRequest
}

func (f *fakeGenerator) Answer(_ context.Context, req llm.AnswerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return "answer " + fmt.Sprint(len(f.requests)), nil
}

func (f *fakeGenerator) last(t *testing.T) llm.AnswerRequest {
	t.Helper()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

var (
	metforminEntry   = models.CatalogEntry{ID: "1", Slug: "metformin-acme", Code: "6809", Name: "Metformin"}
	ondansetronEntry = models.CatalogEntry{ID: "2", Slug: "ondansetron-zofran", Code: "26225", Name: "Ondansetron"}
)

type harness struct {
	router    *fakeRouter
	records   *countingRecords
	matcher   *fakeMatcher
	knowledge *fakeKnowledge
	gen       *fakeGenerator
	sessions  *memory.Registry
	metrics   *metrics.Collector
	assistant *Assistant
}

func newHarness(action models.Action) *harness {
	h := &harness{
		router:  &fakeRouter{action: action},
		records: &countingRecords{src: fhir.NewDirSource("../fhir/testdata")},
		matcher: &fakeMatcher{
			byCode: map[string]models.CatalogEntry{"6809": metforminEntry, "26225": ondansetronEntry},
			byName: map[string]models.CatalogEntry{"metformin": metforminEntry},
		},
		knowledge: &fakeKnowledge{texts: map[string]string{
			"metformin-acme":     "Indications: Type 2 diabetes",
			"ondansetron-zofran": "Indications: Chemotherapy-induced nausea",
		}},
		gen:      &fakeGenerator{},
		sessions: memory.NewRegistry(10, time.Minute, nil),
		metrics:  metrics.NewCollector(),
	}
	h.assistant = NewAssistant(Deps{
		Router:    h.router,
		Records:   h.records,
		Matcher:   h.matcher,
		Knowledge: h.knowledge,
		Generator: h.gen,
		Sessions:  h.sessions,
		Metrics:   h.metrics,
	})
	return h
}

func fetch(categories ...models.Category) models.FetchRecords {
	return models.FetchRecords{PatientID: "emily", Categories: categories}
}

func TestInferAllergies(t *testing.T) {
	h := newHarness(fetch(models.CategoryAllergies))

	res, err := h.assistant.Infer(context.Background(), "s1", "What allergies do I have?")
	require.NoError(t, err)
	assert.Equal(t, models.SourceFHIR, res.Source)
	assert.Equal(t, "answer 1", res.Response)

	req := h.gen.last(t)
	assert.Equal(t, "What allergies do I have?", req.Prompt)
	assert.Contains(t, req.Context, "Allergy: Penicillin")
	assert.Contains(t, req.Context, "rash")
	assert.NotContains(t, req.Context, drug.InfoHeading)
	assert.True(t, req.Introduce)

	assert.Equal(t, memory.Exchange{Prompt: "What allergies do I have?", Response: "answer 1"}, h.sessions.Get("s1").Last())
}

func TestInferJoinsCategories(t *testing.T) {
	h := newHarness(fetch(models.CategoryGeneralInfo, models.CategoryConditions))

	_, err := h.assistant.Infer(context.Background(), "s1", "Tell me about myself")
	require.NoError(t, err)
	assert.Equal(t,
		"Patient: Emily Wilson, Gender: female, DOB: 1996-03-15\n\n2024-11-02: Hodgkin lymphoma [active]",
		h.gen.last(t).Context)
}

func TestInferNoCategories(t *testing.T) {
	h := newHarness(fetch())

	_, err := h.assistant.Infer(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, NoDataFound, h.gen.last(t).Context)
}

func TestInferMedicationDosage(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	ctx := context.Background()

	_, err := h.assistant.Infer(ctx, "s1", "What's the dosage of Metformin?")
	require.NoError(t, err)

	got := h.gen.last(t).Context
	assert.Contains(t, got, "(status:")
	assert.Contains(t, got, "--- Drug Information ---")
	assert.Contains(t, got, "Metformin:\nIndications: Type 2 diabetes")
	assert.NotContains(t, got, "Ondansetron:\n", "not named in the prompt")
	assert.True(t, h.sessions.Get("s1").AlreadyMentioned("metformin"))
}

func TestInferDoesNotRepeatDrugKnowledge(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	ctx := context.Background()

	_, err := h.assistant.Infer(ctx, "s1", "What's the dosage of Metformin?")
	require.NoError(t, err)
	require.Contains(t, h.gen.last(t).Context, "Metformin:")

	_, err = h.assistant.Infer(ctx, "s1", "Is Metformin a pill I take daily?")
	require.NoError(t, err)
	second := h.gen.last(t)
	assert.NotContains(t, second.Context, "Metformin:")
	assert.NotContains(t, second.Context, drug.InfoHeading)
	assert.False(t, second.Introduce)

	_, err = h.assistant.Infer(ctx, "s1", "Any side effect from Ondansetron or Metformin?")
	require.NoError(t, err)
	third := h.gen.last(t).Context
	assert.Contains(t, third, "Ondansetron:\nIndications: Chemotherapy-induced nausea")
	assert.NotContains(t, third, "Metformin:")
}

func TestInferSessionsAreIsolated(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	ctx := context.Background()

	_, err := h.assistant.Infer(ctx, "a", "What's the dosage of Metformin?")
	require.NoError(t, err)
	_, err = h.assistant.Infer(ctx, "b", "What's the dosage of Metformin?")
	require.NoError(t, err)
	assert.Contains(t, h.gen.last(t).Context, "Metformin:")

	assert.True(t, h.assistant.ResetSession("a"))
	_, err = h.assistant.Infer(ctx, "a", "What's the dosage of Metformin?")
	require.NoError(t, err)
	assert.Contains(t, h.gen.last(t).Context, "Metformin:")
	assert.Equal(t, 2, h.assistant.Sessions())
}

func TestInferWithoutKeywordSkipsDrugs(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))

	_, err := h.assistant.Infer(context.Background(), "s1", "Tell me about Metformin")
	require.NoError(t, err)
	assert.NotContains(t, h.gen.last(t).Context, drug.InfoHeading)
	assert.Zero(t, h.matcher.calls)
}

func TestInferCustomNameExtractor(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	h.assistant = NewAssistant(Deps{
		Router:       h.router,
		Records:      h.records,
		Matcher:      h.matcher,
		Knowledge:    h.knowledge,
		Generator:    h.gen,
		Sessions:     h.sessions,
		ExtractNames: func(p string) []string { return strings.Fields(p) },
	})

	_, err := h.assistant.Infer(context.Background(), "s1", "dosage of metformin")
	require.NoError(t, err)
	assert.Contains(t, h.gen.last(t).Context, "Metformin:")
}

func TestInferGenerationFailureLeavesMemory(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	h.gen.err = errors.New("model unavailable")

	_, err := h.assistant.Infer(context.Background(), "s1", "What's the dosage of Metformin?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "model unavailable")

	mem := h.sessions.Get("s1")
	assert.False(t, mem.AlreadyMentioned("metformin"))
	assert.Equal(t, memory.Exchange{}, mem.Last())
	assert.Equal(t, int64(1), h.metrics.Count(metrics.CountFailures))
}

func TestInferRecordNotFound(t *testing.T) {
	h := newHarness(models.FetchRecords{PatientID: "nobody", Categories: []models.Category{models.CategoryAllergies}})

	_, err := h.assistant.Infer(context.Background(), "s1", "What allergies do I have?")
	assert.ErrorIs(t, err, fhir.ErrRecordNotFound)
	assert.Empty(t, h.gen.requests)
}

func TestInferRoutingErrorPropagates(t *testing.T) {
	h := newHarness(nil)
	routeErr := errors.New("routing failed: bad json")
	h.router.err = routeErr

	_, err := h.assistant.Infer(context.Background(), "s1", "?")
	assert.Same(t, routeErr, err)
	assert.Zero(t, h.records.loads)
}

func TestInferMatcherFailurePropagates(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	h.matcher.err = errors.New("database is locked")

	_, err := h.assistant.Infer(context.Background(), "s1", "What's the dosage of Metformin?")
	assert.ErrorContains(t, err, "database is locked")
	assert.Empty(t, h.gen.requests)
}

func TestInferLookupDrug(t *testing.T) {
	h := newHarness(models.LookupDrug{DrugName: "Metformin"})

	res, err := h.assistant.Infer(context.Background(), "s1", "Tell me about metformin")
	require.NoError(t, err)
	assert.Equal(t, models.SourceDrug, res.Source)
	assert.Equal(t, "Metformin:\nIndications: Type 2 diabetes", h.gen.last(t).Context)
	assert.Equal(t, res.Response, h.sessions.Get("s1").Last().Response)
}

func TestInferLookupDrugNoMatch(t *testing.T) {
	h := newHarness(models.LookupDrug{DrugName: "Unobtainium"})

	res, err := h.assistant.Infer(context.Background(), "s1", "What is Unobtainium?")
	require.NoError(t, err)
	assert.Equal(t, models.Result{Source: models.SourceDrug, Response: "Sorry, I couldn't find info on 'Unobtainium'."}, res)
	assert.Empty(t, h.gen.requests)
	assert.Zero(t, h.knowledge.gets)
}

func TestInferLookupDrugWithoutName(t *testing.T) {
	h := newHarness(models.LookupDrug{DrugName: "  "})

	res, err := h.assistant.Infer(context.Background(), "s1", "Tell me about a drug")
	require.NoError(t, err)
	assert.Equal(t, models.Result{Source: models.SourceDrug, Response: NoDrugName}, res)
	assert.Zero(t, h.matcher.calls)
}

func TestInferUnknown(t *testing.T) {
	h := newHarness(models.Unknown{})

	res, err := h.assistant.Infer(context.Background(), "", "What's the weather?")
	require.NoError(t, err)
	assert.Equal(t, models.Result{Source: models.SourceNone, Response: "Sorry, I didn't understand your request."}, res)
	assert.Zero(t, h.records.loads)
	assert.Zero(t, h.matcher.calls)
	assert.Zero(t, h.knowledge.gets)
	assert.Empty(t, h.gen.requests)
}

func TestInferRecordsMetrics(t *testing.T) {
	h := newHarness(fetch(models.CategoryAllergies))
	_, err := h.assistant.Infer(context.Background(), "s1", "allergies?")
	require.NoError(t, err)

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests)
	require.NotNil(t, snap.RecordLoad)
	require.NotNil(t, snap.Inference)
}

func TestSessionDescribesMemory(t *testing.T) {
	h := newHarness(fetch(models.CategoryCurrentMedications))
	ctx := context.Background()

	_, ok := h.assistant.Session("s1")
	assert.False(t, ok)

	_, err := h.assistant.Infer(ctx, "s1", "Any side effect from Ondansetron or Metformin?")
	require.NoError(t, err)

	info, ok := h.assistant.Session("s1")
	require.True(t, ok)
	assert.Equal(t, "s1", info.SessionID)
	assert.Equal(t, []string{"metformin", "ondansetron"}, info.Mentioned)
	assert.Equal(t, "Any side effect from Ondansetron or Metformin?", info.LastPrompt)
	assert.Equal(t, "answer 1", info.LastResponse)

	assert.True(t, h.assistant.DropSession("s1"))
	assert.False(t, h.assistant.DropSession("s1"))
	_, ok = h.assistant.Session("s1")
	assert.False(t, ok)
	assert.Zero(t, h.assistant.Sessions())
}
