package db_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphaelgruber/rxrag/internal/db"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*db.Client, *metrics.Collector) {
	t.Helper()
	ctx := context.Background()
	mc := metrics.NewCollector()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, err := db.NewClient(ctx, db.Config{Path: filepath.Join(t.TempDir(), "drugs", "drugs.db")}, logger, mc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.InitSchema(ctx))
	return client, mc
}

func seededClient(t *testing.T) *db.Client {
	t.Helper()
	client, _ := newTestClient(t)
	n, err := client.SeedFromFile(context.Background(), "testdata/catalog.yaml")
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return client
}

func TestNewClientRequiresPath(t *testing.T) {
	_, err := db.NewClient(context.Background(), db.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.InitSchema(context.Background()))
}

func TestFindByCode(t *testing.T) {
	client := seededClient(t)
	ctx := context.Background()

	entry, err := client.FindByCode(ctx, "6809")
	require.NoError(t, err)
	assert.Equal(t, "Metformin", entry.Name)
	assert.Equal(t, "metformin-acme-pharma", entry.Slug)
	assert.Equal(t, "500 mg", entry.Strength)
	assert.NotEmpty(t, entry.ID)

	_, err = client.FindByCode(ctx, "000")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestFindByNameSubstring(t *testing.T) {
	client := seededClient(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"first row wins", "metformin", "Metformin"},
		{"case insensitive", "METFORMIN er", "Metformin ER"},
		{"inner substring", "dansetr", "Ondansetron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := client.FindByNameSubstring(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entry.Name)
		})
	}

	_, err := client.FindByNameSubstring(ctx, "unobtainium")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestFindByNameSubstringEscapesWildcards(t *testing.T) {
	client := seededClient(t)
	_, err := client.FindByNameSubstring(context.Background(), "%")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGetKnowledge(t *testing.T) {
	client := seededClient(t)
	ctx := context.Background()

	k, err := client.GetKnowledge(ctx, "ondansetron-zofran-labs")
	require.NoError(t, err)
	assert.Equal(t, "Prevention of chemotherapy-induced nausea and vomiting.", k.Indications)
	assert.Equal(t, "Headache, constipation.", k.SideEffects)
	assert.Empty(t, k.Interactions)

	_, err = client.GetKnowledge(ctx, "lisinopril-cardio-inc")
	assert.ErrorIs(t, err, db.ErrNotFound, "entry without a knowledge row")

	_, err = client.GetKnowledge(ctx, "nope")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpsertMedicationUpdatesBySlug(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.UpsertMedication(ctx, models.CatalogEntry{Name: "Aspirin", Manufacturer: "Bayer", Code: "1191"},
		&models.Knowledge{Indications: "Pain"})
	require.NoError(t, err)
	assert.Equal(t, "aspirin-bayer", first.Slug)

	second, err := client.UpsertMedication(ctx, models.CatalogEntry{Name: "Aspirin", Manufacturer: "Bayer", Code: "1191", Strength: "81 mg"},
		&models.Knowledge{Indications: "Pain and fever"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same slug keeps the row id")

	entry, err := client.FindByCode(ctx, "1191")
	require.NoError(t, err)
	assert.Equal(t, "81 mg", entry.Strength)

	k, err := client.GetKnowledge(ctx, "aspirin-bayer")
	require.NoError(t, err)
	assert.Equal(t, "Pain and fever", k.Indications)

	_, err = client.UpsertMedication(ctx, models.CatalogEntry{Name: "!!!"}, nil)
	assert.Error(t, err)
}

func TestSeedEmptyInput(t *testing.T) {
	client, _ := newTestClient(t)
	n, err := client.Seed(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = client.Seed(context.Background(), strings.NewReader("medications: [unclosed"))
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	client := seededClient(t)

	st, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.Medications)
	assert.Equal(t, 3, st.WithKnowledge)
	assert.Equal(t, 4, st.Coded)
	assert.True(t, strings.HasSuffix(st.Path, "drugs.db"))
}

func TestQueriesRecordMetrics(t *testing.T) {
	client, mc := newTestClient(t)
	_, _ = client.FindByCode(context.Background(), "x")
	_, _ = client.FindByNameSubstring(context.Background(), "x")

	snap := mc.Snapshot()
	require.NotNil(t, snap.CatalogQuery)
	assert.Equal(t, int64(2), snap.CatalogQuery.Count)
}

func TestWipeData(t *testing.T) {
	client := seededClient(t)
	ctx := context.Background()
	require.NoError(t, client.WipeData(ctx))

	st, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Medications)
}
