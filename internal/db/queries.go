package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// Stats holds catalog statistics.
type Stats struct {
	Path          string `json:"path"`
	SizeBytes     int64  `json:"size_bytes"`
	Medications   int    `json:"medications"`
	WithKnowledge int    `json:"with_knowledge"`
	Coded         int    `json:"coded"`
}

const selectEntry = `SELECT id, slug_id, fhir_code, name, manufacturer, strength, form, route FROM medication`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.CatalogEntry, error) {
	var id string
	var slug, code, name, manufacturer, strength, form, route sql.NullString
	if err := row.Scan(&id, &slug, &code, &name, &manufacturer, &strength, &form, &route); err != nil {
		return nil, err
	}
	return &models.CatalogEntry{
		ID:           id,
		Slug:         slug.String,
		Code:         code.String,
		Name:         name.String,
		Manufacturer: manufacturer.String,
		Strength:     strength.String,
		Form:         form.String,
		Route:        route.String,
	}, nil
}

func (c *Client) observe(start time.Time) {
	c.metrics.RecordTiming(metrics.OpCatalogQuery, time.Since(start))
}

// FindByCode returns the first medication whose terminology code equals code.
func (c *Client) FindByCode(ctx context.Context, code string) (*models.CatalogEntry, error) {
	defer c.observe(time.Now())

	row := c.db.QueryRowContext(ctx, selectEntry+` WHERE fhir_code = ? ORDER BY rowid LIMIT 1`, code)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("code %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find by code: %w", err)
	}
	return entry, nil
}

// FindByNameSubstring returns the first medication (in insertion order) whose
// name contains name, compared case-insensitively.
func (c *Client) FindByNameSubstring(ctx context.Context, name string) (*models.CatalogEntry, error) {
	defer c.observe(time.Now())

	pattern := "%" + escapeLike(strings.ToLower(name)) + "%"
	row := c.db.QueryRowContext(ctx, selectEntry+` WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY rowid LIMIT 1`, pattern)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("name %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return entry, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetKnowledge returns the knowledge record of the medication with the given slug.
func (c *Client) GetKnowledge(ctx context.Context, slug string) (*models.Knowledge, error) {
	defer c.observe(time.Now())

	var k [5]sql.NullString
	err := c.db.QueryRowContext(ctx, `
		SELECT k.indications, k.contraindications, k.side_effects, k.interactions, k.warnings
		FROM medication_knowledge k
		JOIN medication m ON m.id = k.medication_id
		WHERE m.slug_id = ?`, slug).Scan(&k[0], &k[1], &k[2], &k[3], &k[4])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get knowledge: %w", err)
	}
	return &models.Knowledge{
		Indications:       k[0].String,
		Contraindications: k[1].String,
		SideEffects:       k[2].String,
		Interactions:      k[3].String,
		Warnings:          k[4].String,
	}, nil
}

// UpsertMedication inserts or updates a medication keyed by slug, and
// replaces its knowledge record when k is non-nil. A missing ID is generated.
// Returns the stored entry.
func (c *Client) UpsertMedication(ctx context.Context, e models.CatalogEntry, k *models.Knowledge) (*models.CatalogEntry, error) {
	if e.Slug == "" {
		e.Slug = models.Slugify(e.Name, e.Manufacturer)
	}
	if e.Slug == "" {
		return nil, fmt.Errorf("upsert medication: name or slug required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO medication (id, slug_id, fhir_code, name, manufacturer, strength, form, route, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug_id) DO UPDATE SET
			fhir_code = excluded.fhir_code,
			name = excluded.name,
			manufacturer = excluded.manufacturer,
			strength = excluded.strength,
			form = excluded.form,
			route = excluded.route,
			last_updated = excluded.last_updated
		RETURNING id`,
		e.ID, e.Slug, e.Code, e.Name, e.Manufacturer, e.Strength, e.Form, e.Route, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upsert medication: %w", err)
	}
	e.ID = id

	if k != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO medication_knowledge (medication_id, indications, contraindications, side_effects, interactions, warnings)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(medication_id) DO UPDATE SET
				indications = excluded.indications,
				contraindications = excluded.contraindications,
				side_effects = excluded.side_effects,
				interactions = excluded.interactions,
				warnings = excluded.warnings`,
			id, k.Indications, k.Contraindications, k.SideEffects, k.Interactions, k.Warnings)
		if err != nil {
			return nil, fmt.Errorf("upsert knowledge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &e, nil
}

// Stats returns catalog statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Path: c.cfg.Path}
	if info, err := os.Stat(c.cfg.Path); err == nil {
		st.SizeBytes = info.Size()
	}

	err := c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM medication),
			(SELECT COUNT(*) FROM medication_knowledge),
			(SELECT COUNT(*) FROM medication WHERE fhir_code IS NOT NULL AND fhir_code != '')`,
	).Scan(&st.Medications, &st.WithKnowledge, &st.Coded)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
