package service

import (
	"regexp"
	"strings"
)

// MedicationKeywords mark a prompt as medication-related when any appears
// as a case-insensitive substring.
var MedicationKeywords = []string{"drug", "med", "side effect", "dosage", "pill", "prescription"}

// IsMedicationRelated reports whether prompt contains a medication keyword.
func IsMedicationRelated(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, kw := range MedicationKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

// DrugNameExtractor returns candidate drug names mentioned in a prompt.
type DrugNameExtractor func(prompt string) []string

var capitalizedToken = regexp.MustCompile(`\b[A-Z][A-Za-z]{2,}\b`)

// CapitalizedTokens is the default extractor: every alphabetic token that
// starts with an uppercase letter and is at least three letters long.
// It misses lowercase mentions and accepts any capitalized word.
func CapitalizedTokens(prompt string) []string {
	return capitalizedToken.FindAllString(prompt, -1)
}

func candidateSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = true
		}
	}
	return set
}
