package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/raphaelgruber/rxrag/internal/app"
	"github.com/raphaelgruber/rxrag/internal/config"
	"github.com/raphaelgruber/rxrag/internal/llm"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel routes with a fixed reply and answers with the context it was given.
type scriptedModel struct {
	mu       sync.Mutex
	route    string
	contexts []string
}

func (m *scriptedModel) GenerateJSON(context.Context, string) (string, error) {
	return m.route, nil
}

func (m *scriptedModel) Answer(_ context.Context, req llm.AnswerRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = append(m.contexts, req.Context)
	return "answer", nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		LLMProvider:      config.ProviderOllama,
		LLMModel:         "test",
		RouterModel:      "test",
		DefaultPatientID: "emily",
		FHIRDataDir:      "../fhir/testdata",
		DrugDBPath:       filepath.Join(t.TempDir(), "drugs.db"),
		CacheSize:        8,
	}
}

func newApp(t *testing.T, cfg config.Config, model *scriptedModel) (*app.App, *int) {
	t.Helper()
	builds := 0
	factory := func(context.Context, config.Config, *metrics.Collector) (app.Model, error) {
		builds++
		return model, nil
	}
	a, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.WithModelFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	_, err = a.DB().SeedFromFile(context.Background(), "../db/testdata/catalog.yaml")
	require.NoError(t, err)
	return a, &builds
}

func TestNewDoesNotBuildModel(t *testing.T) {
	_, builds := newApp(t, testConfig(t), &scriptedModel{})
	assert.Zero(t, *builds)
}

func TestAssistantEndToEnd(t *testing.T) {
	model := &scriptedModel{route: `{"name": "get_fhir_resources", "arguments": {"categories": ["currentMedications"]}}`}
	a, builds := newApp(t, testConfig(t), model)
	ctx := context.Background()

	assistant, err := a.Assistant(ctx)
	require.NoError(t, err)
	again, err := a.Assistant(ctx)
	require.NoError(t, err)
	assert.Same(t, assistant, again)
	assert.Equal(t, 1, *builds)

	result, err := assistant.Infer(ctx, "s1", "What is the dosage of Metformin?")
	require.NoError(t, err)
	assert.Equal(t, models.Result{Source: models.SourceFHIR, Response: "answer"}, result)

	require.Len(t, model.contexts, 1)
	got := model.contexts[0]
	assert.Contains(t, got, "Metformin (status: active)")
	assert.Contains(t, got, "--- Drug Information ---")
	assert.Contains(t, got, "Metformin:\nIndications: Type 2 diabetes mellitus")
	assert.Equal(t, 1, a.Knowledge().Len())
	assert.Equal(t, int64(1), a.Metrics().Count(metrics.CountRequests))
}

func TestAssistantSeparateRouterModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.RouterModel = "tiny"

	var names []string
	factory := app.WithModelFactory(func(_ context.Context, c config.Config, _ *metrics.Collector) (app.Model, error) {
		names = append(names, c.LLMModel)
		return &scriptedModel{}, nil
	})
	a, err := app.New(context.Background(), cfg, nil, factory)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Assistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "tiny"}, names)
}

func TestAssistantModelError(t *testing.T) {
	boom := errors.New("no provider")
	a, err := app.New(context.Background(), testConfig(t), nil,
		app.WithModelFactory(func(context.Context, config.Config, *metrics.Collector) (app.Model, error) {
			return nil, boom
		}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Assistant(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestWipeData(t *testing.T) {
	a, _ := newApp(t, testConfig(t), &scriptedModel{})
	ctx := context.Background()

	_, err := a.Knowledge().Get(ctx, "metformin-acme-pharma")
	require.NoError(t, err)
	require.NoError(t, a.WipeData(ctx))

	assert.Zero(t, a.Knowledge().Len())
	stats, err := a.DB().Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Medications)
}
