package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/models"
)

// FunctionDef describes one routable function to the classifier.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// FunctionDefs returns the JSON schemas of the two routable functions.
func FunctionDefs() []FunctionDef {
	return []FunctionDef{
		{
			Name:        models.FunctionFetchRecords,
			Description: "Fetch patient-specific FHIR data categories",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"patient": map[string]any{"type": "string", "description": "The patient identifier"},
					"categories": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": models.CategoryNames()},
						"description": "Which FHIR categories to retrieve",
					},
				},
				"required": []string{"patient", "categories"},
			},
		},
		{
			Name:        models.FunctionLookupDrug,
			Description: "Look up information for a given drug",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drug_name": map[string]any{"type": "string", "description": "Name of the drug to look up"},
				},
				"required": []string{"drug_name"},
			},
		},
	}
}

// BuildInstruction renders the classification prompt for a user prompt.
func BuildInstruction(prompt, defaultPatientID string) string {
	var b strings.Builder
	b.WriteString("You are a clinical assistant. Based on the user's prompt, choose exactly ONE function:\n")
	fmt.Fprintf(&b, "- %s(patient, categories)\n", models.FunctionFetchRecords)
	fmt.Fprintf(&b, "- %s(drug_name)\n\n", models.FunctionLookupDrug)
	b.WriteString("Respond ONLY with JSON in this exact format:\n")
	b.WriteString("{\n  \"name\": \"<function name>\",\n  \"arguments\": {<arguments JSON>}\n}\n")
	b.WriteString("Do not provide any other explanation or text.\n\n")
	fmt.Fprintf(&b, "Use '%s' as the patient identifier by default.\n", defaultPatientID)
	fmt.Fprintf(&b, "Allowed categories for FHIR are: %s.\n\n", strings.Join(models.CategoryNames(), ", "))

	b.WriteString("Available functions:\n")
	for _, def := range FunctionDefs() {
		data, _ := json.MarshalIndent(def, "", "  ")
		b.Write(data)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nUser prompt: %s\n\n", prompt)
	b.WriteString("Respond with ONLY the JSON object specifying the chosen function and arguments.")
	return b.String()
}
