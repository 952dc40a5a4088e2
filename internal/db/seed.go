package db

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/rxrag/internal/models"
)

// SeedFile is the YAML layout of a catalog fixture.
type SeedFile struct {
	Medications []SeedMedication `yaml:"medications"`
}

// SeedMedication is one catalog row plus its optional knowledge record.
type SeedMedication struct {
	ID           string            `yaml:"id"`
	Slug         string            `yaml:"slug"`
	Code         string            `yaml:"code"`
	Name         string            `yaml:"name"`
	Manufacturer string            `yaml:"manufacturer"`
	Strength     string            `yaml:"strength"`
	Form         string            `yaml:"form"`
	Route        string            `yaml:"route"`
	Knowledge    *models.Knowledge `yaml:"knowledge"`
}

// Entry converts the seed row to a catalog entry.
func (s SeedMedication) Entry() models.CatalogEntry {
	return models.CatalogEntry{
		ID:           s.ID,
		Slug:         s.Slug,
		Code:         s.Code,
		Name:         s.Name,
		Manufacturer: s.Manufacturer,
		Strength:     s.Strength,
		Form:         s.Form,
		Route:        s.Route,
	}
}

// Seed upserts every medication of a YAML fixture in file order.
// Returns the number of medications written.
func (c *Client) Seed(ctx context.Context, r io.Reader) (int, error) {
	var f SeedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	for i, m := range f.Medications {
		if _, err := c.UpsertMedication(ctx, m.Entry(), m.Knowledge); err != nil {
			return i, fmt.Errorf("seed %q: %w", m.Name, err)
		}
	}
	c.logger.Info("catalog seeded", "medications", len(f.Medications))
	return len(f.Medications), nil
}

// SeedFromFile opens path and seeds the catalog from it.
func (c *Client) SeedFromFile(ctx context.Context, path string) (int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed: %w", err)
	}
	defer fh.Close()
	return c.Seed(ctx, fh)
}
