package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrRecordNotFound indicates no bundle exists for the requested patient.
var ErrRecordNotFound = errors.New("record not found")

// RecordSource loads a patient's bundle.
type RecordSource interface {
	LoadBundle(ctx context.Context, patientID string) (*Bundle, error)
}

// DirSource reads bundles from <dir>/<patientID>.json.
type DirSource struct {
	dir string
}

// NewDirSource creates a record source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir returns the source directory.
func (s *DirSource) Dir() string {
	return s.dir
}

// LoadBundle reads and decodes the patient's bundle file.
func (s *DirSource) LoadBundle(ctx context.Context, patientID string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patientID = strings.TrimSpace(patientID)
	if patientID == "" || patientID != filepath.Base(patientID) || strings.HasPrefix(patientID, ".") {
		return nil, fmt.Errorf("%w: invalid patient id %q", ErrRecordNotFound, patientID)
	}

	path := filepath.Join(s.dir, patientID+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no bundle for patient %q at %s", ErrRecordNotFound, patientID, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	return &b, nil
}
