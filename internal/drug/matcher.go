// Package drug resolves patient medications against the drug catalog and
// serves memoized catalog knowledge.
package drug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/db"
	"github.com/raphaelgruber/rxrag/internal/fhir"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// ErrNoMatch is returned when neither code nor name resolves to a usable
// catalog entry.
var ErrNoMatch = errors.New("no catalog match")

// Catalog is the read surface of the drug catalog.
// Lookups that find nothing return an error wrapping db.ErrNotFound.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*models.CatalogEntry, error)
	FindByNameSubstring(ctx context.Context, name string) (*models.CatalogEntry, error)
	GetKnowledge(ctx context.Context, slug string) (*models.Knowledge, error)
}

// Matcher resolves medications to catalog entries: exact code first, then
// case-insensitive name substring. The first catalog row wins.
type Matcher struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(catalog Catalog, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{catalog: catalog, logger: logger}
}

// MatchMedication resolves a Medication resource using the code and display
// of its first coding, falling back to the concept text for the name.
func (m *Matcher) MatchMedication(ctx context.Context, med *fhir.Medication) (*models.CatalogEntry, error) {
	if med == nil {
		return nil, ErrNoMatch
	}
	return m.match(ctx, med.Code.FirstCoding().Code, med.Code.BestDisplay())
}

// MatchName resolves a bare drug name.
func (m *Matcher) MatchName(ctx context.Context, name string) (*models.CatalogEntry, error) {
	return m.match(ctx, "", name)
}

func (m *Matcher) match(ctx context.Context, code, name string) (*models.CatalogEntry, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)

	if code != "" {
		entry, err := m.catalog.FindByCode(ctx, code)
		if ok, err := usable(entry, err); err != nil {
			return nil, err
		} else if ok {
			m.logger.Debug("matched by code", "code", code, "slug", entry.Slug)
			return entry, nil
		}
	}

	if name != "" {
		entry, err := m.catalog.FindByNameSubstring(ctx, name)
		if ok, err := usable(entry, err); err != nil {
			return nil, err
		} else if ok {
			m.logger.Debug("matched by name", "name", name, "slug", entry.Slug)
			return entry, nil
		}
	}

	return nil, fmt.Errorf("%w (code %q, name %q)", ErrNoMatch, code, name)
}

// usable reports whether a catalog result is a match. Not-found is a miss;
// any other error is an infrastructure failure. Entries without a slug
// cannot be looked up and count as a miss.
func usable(entry *models.CatalogEntry, err error) (bool, error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("catalog lookup: %w", err)
	case entry == nil || entry.Slug == "":
		return false, nil
	}
	return true, nil
}
