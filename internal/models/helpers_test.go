package models

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"lowercase", []string{"metformin"}, "metformin"},
		{"name and manufacturer", []string{"Metformin", "Acme Pharma"}, "metformin-acme-pharma"},
		{"special chars collapsed", []string{"Tylenol, Extra Strength!"}, "tylenol-extra-strength"},
		{"numbers preserved", []string{"Vitamin D3", "1000 IU"}, "vitamin-d3-1000-iu"},
		{"consecutive separators", []string{"a  --  b"}, "a-b"},
		{"empty", []string{""}, ""},
		{"only special chars", []string{"!@#$%"}, ""},
		{"unicode stripped", []string{"café"}, "caf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in...)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
