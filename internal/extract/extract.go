// Package extract turns a patient bundle into plain-text category summaries.
// Every function is pure: the same bundle always yields the same text.
package extract

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/fhir"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// Sentinels returned when a category has nothing to report.
const (
	NoDemographics    = "No patient demographics found."
	NoAllergies       = "No allergies recorded."
	NoConditions      = "No conditions recorded."
	NoMedications     = "No current medications."
	NoObservations    = "No observations."
	NoCarePlan        = "No care plan activities."
	NoRelevantData    = "No relevant data found."
	unknownDate       = "unknown date"
	unknownDemography = "unknown"
)

// Summarize renders one category of the bundle.
func Summarize(b *fhir.Bundle, c models.Category) (string, error) {
	switch c {
	case models.CategoryGeneralInfo:
		return GeneralInfo(b), nil
	case models.CategoryAllergies:
		return Allergies(b), nil
	case models.CategoryConditions:
		return Conditions(b), nil
	case models.CategoryCurrentMedications:
		return CurrentMedications(b), nil
	case models.CategoryObservations:
		return Observations(b), nil
	case models.CategoryCarePlan:
		return CarePlan(b), nil
	default:
		return "", fmt.Errorf("unsupported category %q", c)
	}
}

// GeneralInfo summarizes the first Patient resource.
func GeneralInfo(b *fhir.Bundle) string {
	for _, r := range b.Resources {
		p, ok := r.(*fhir.Patient)
		if !ok {
			continue
		}
		gender := orDefault(p.Gender, unknownDemography)
		dob := orDefault(p.BirthDate, unknownDemography)
		return fmt.Sprintf("Patient: %s, Gender: %s, DOB: %s", p.FullName(), gender, dob)
	}
	return NoDemographics
}

// Allergies lists each AllergyIntolerance with its reaction manifestations.
func Allergies(b *fhir.Bundle) string {
	var lines []string
	for _, r := range b.Resources {
		a, ok := r.(*fhir.AllergyIntolerance)
		if !ok {
			continue
		}
		line := "Allergy: " + orDefault(a.Code.BestText(), "unspecified substance")
		if m := manifestations(a); len(m) > 0 {
			line += " (reaction: " + strings.Join(m, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return joinOr(lines, NoAllergies)
}

func manifestations(a *fhir.AllergyIntolerance) []string {
	var out []string
	for _, rx := range a.Reaction {
		for _, m := range rx.Manifestation {
			if t := m.BestText(); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// Conditions lists each Condition with its onset date.
func Conditions(b *fhir.Bundle) string {
	var lines []string
	for _, r := range b.Resources {
		c, ok := r.(*fhir.Condition)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s: %s", orDefault(c.OnsetDateTime, unknownDate), c.Code.BestText())
		if c.ClinicalStatus != nil {
			if s := c.ClinicalStatus.BestText(); s != "" {
				line += " [" + s + "]"
			} else if code := c.ClinicalStatus.FirstCoding().Code; code != "" {
				line += " [" + code + "]"
			}
		}
		lines = append(lines, line)
	}
	return joinOr(lines, NoConditions)
}

// CurrentMedications lists each MedicationStatement with its resolved drug name.
func CurrentMedications(b *fhir.Bundle) string {
	idx := fhir.NewMedicationIndex(b)

	var lines []string
	for _, r := range b.Resources {
		s, ok := r.(*fhir.MedicationStatement)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s (status: %s", idx.MedicationName(s), s.Status)
		if start := statementStart(s); start != "" {
			line += ", since " + start
		}
		lines = append(lines, line+")")
	}
	return joinOr(lines, NoMedications)
}

func statementStart(s *fhir.MedicationStatement) string {
	if s.EffectivePeriod != nil && s.EffectivePeriod.Start != "" {
		return s.EffectivePeriod.Start
	}
	return s.EffectiveDateTime
}

// Observations lists single-valued observations and every component of
// multi-valued ones. Entries without a usable value are skipped.
func Observations(b *fhir.Bundle) string {
	var lines []string
	for _, r := range b.Resources {
		o, ok := r.(*fhir.Observation)
		if !ok {
			continue
		}
		lines = append(lines, observationLines(o)...)
	}
	return joinOr(lines, NoObservations)
}

func observationLines(o *fhir.Observation) []string {
	when := o.EffectiveDateTime
	if when == "" {
		when = o.Issued
	}

	var lines []string
	if v := valueText(o.ValueQuantity, o.ValueString, o.ValueCodeableConcept); v != "" {
		if name := o.Code.BestDisplay(); name != "" {
			lines = append(lines, formatMeasurement(when, name, v))
		}
	}
	for _, c := range o.Component {
		name := c.Code.BestText()
		v := valueText(c.ValueQuantity, c.ValueString, c.ValueCodeableConcept)
		if name == "" || v == "" {
			continue
		}
		lines = append(lines, formatMeasurement(when, name, v))
	}
	return lines
}

func valueText(q *fhir.Quantity, s string, cc *fhir.CodeableConcept) string {
	if v := q.String(); v != "" {
		return v
	}
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	if cc != nil {
		return cc.BestText()
	}
	return ""
}

func formatMeasurement(when, name, value string) string {
	if when == "" {
		return fmt.Sprintf("%s = %s", name, value)
	}
	return fmt.Sprintf("%s: %s = %s", when, name, value)
}

// CarePlan lists every planned activity.
func CarePlan(b *fhir.Bundle) string {
	var lines []string
	for _, r := range b.Resources {
		cp, ok := r.(*fhir.CarePlan)
		if !ok {
			continue
		}
		for _, act := range cp.Activity {
			if act.Detail == nil {
				continue
			}
			var txt string
			if act.Detail.Code != nil {
				txt = act.Detail.Code.BestText()
			}
			if txt == "" {
				txt = strings.TrimSpace(act.Detail.Description)
			}
			if txt == "" {
				continue
			}
			lines = append(lines, "CarePlan: "+txt)
		}
	}
	return joinOr(lines, NoCarePlan)
}

// SummarizeBundle renders a single timeline of observations and medication
// statements across the whole bundle, in bundle order.
func SummarizeBundle(b *fhir.Bundle) string {
	idx := fhir.NewMedicationIndex(b)

	var lines []string
	for _, r := range b.Resources {
		switch res := r.(type) {
		case *fhir.Observation:
			lines = append(lines, observationLines(res)...)
		case *fhir.MedicationStatement:
			lines = append(lines, fmt.Sprintf("%s: %s (status: %s)", orDefault(statementStart(res), unknownDate), idx.MedicationName(res), res.Status))
		}
	}
	return joinOr(lines, NoRelevantData)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinOr(lines []string, sentinel string) string {
	if len(lines) == 0 {
		return sentinel
	}
	return strings.Join(lines, "\n")
}
