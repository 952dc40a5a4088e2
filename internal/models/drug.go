package models

import "strings"

// NoKnowledgeText is returned when a catalog entry has no knowledge record.
const NoKnowledgeText = "No detailed information found."

// CatalogEntry is a medication record from the drug catalog.
type CatalogEntry struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Code         string `json:"code,omitempty"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Strength     string `json:"strength,omitempty"`
	Form         string `json:"form,omitempty"`
	Route        string `json:"route,omitempty"`
}

// Knowledge holds the narrative label sections for one catalog entry.
type Knowledge struct {
	Indications       string `json:"indications,omitempty" yaml:"indications"`
	Contraindications string `json:"contraindications,omitempty" yaml:"contraindications"`
	SideEffects       string `json:"side_effects,omitempty" yaml:"side_effects"`
	Interactions      string `json:"interactions,omitempty" yaml:"interactions"`
	Warnings          string `json:"warnings,omitempty" yaml:"warnings"`
}

// Format renders the non-empty sections one per line.
// An entirely empty record renders as NoKnowledgeText.
func (k Knowledge) Format() string {
	sections := []struct {
		label string
		value string
	}{
		{"Indications", k.Indications},
		{"Contraindications", k.Contraindications},
		{"Side Effects", k.SideEffects},
		{"Interactions", k.Interactions},
		{"Warnings", k.Warnings},
	}

	var lines []string
	for _, s := range sections {
		if v := strings.TrimSpace(s.value); v != "" {
			lines = append(lines, s.label+": "+v)
		}
	}
	if len(lines) == 0 {
		return NoKnowledgeText
	}
	return strings.Join(lines, "\n")
}
