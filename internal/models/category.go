package models

// Category is one of the fixed clinical summary sections a records action may request.
type Category string

// Clinical summary categories.
const (
	CategoryGeneralInfo        Category = "generalInfo"
	CategoryAllergies          Category = "allergies"
	CategoryConditions         Category = "conditions"
	CategoryCurrentMedications Category = "currentMedications"
	CategoryObservations       Category = "observations"
	CategoryCarePlan           Category = "carePlan"
)

// AllCategories lists every valid category in canonical order.
var AllCategories = []Category{
	CategoryGeneralInfo,
	CategoryAllergies,
	CategoryConditions,
	CategoryCurrentMedications,
	CategoryObservations,
	CategoryCarePlan,
}

// ParseCategory maps a raw string to a Category.
// Matching is exact; the enum is closed.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ParseCategories converts raw strings to categories, silently dropping
// unrecognized values and duplicates. First-seen order is preserved.
func ParseCategories(raw []string) []Category {
	out := make([]Category, 0, len(raw))
	seen := make(map[Category]bool, len(raw))
	for _, s := range raw {
		c, ok := ParseCategory(s)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// CategoryNames returns the string form of every valid category.
func CategoryNames() []string {
	names := make([]string, len(AllCategories))
	for i, c := range AllCategories {
		names[i] = string(c)
	}
	return names
}
