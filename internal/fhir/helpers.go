package fhir

import (
	"strconv"
	"strings"
)

// UnknownMedication is the name used when a statement's drug cannot be resolved.
const UnknownMedication = "Unknown medication"

// FirstCoding returns the first coding, or the zero value.
func (c CodeableConcept) FirstCoding() Coding {
	if len(c.Coding) == 0 {
		return Coding{}
	}
	return c.Coding[0]
}

// BestText prefers the concept's own text, then the first coding display.
func (c CodeableConcept) BestText() string {
	if t := strings.TrimSpace(c.Text); t != "" {
		return t
	}
	return strings.TrimSpace(c.FirstCoding().Display)
}

// BestDisplay prefers the first coding display, then the concept text.
// Medication codes carry the drug name in the coding display.
func (c CodeableConcept) BestDisplay() string {
	if d := strings.TrimSpace(c.FirstCoding().Display); d != "" {
		return d
	}
	return strings.TrimSpace(c.Text)
}

// String renders "value unit", or "" when the value is missing.
func (q *Quantity) String() string {
	if q == nil || q.Value == nil {
		return ""
	}
	v := strconv.FormatFloat(*q.Value, 'f', -1, 64)
	if q.Unit == "" {
		return v
	}
	return v + " " + q.Unit
}

// FullName joins given and family names, falling back to the text form.
func (p *Patient) FullName() string {
	if len(p.Name) == 0 {
		return ""
	}
	n := p.Name[0]
	full := strings.TrimSpace(strings.Join(append(append([]string{}, n.Given...), n.Family), " "))
	if full == "" {
		return strings.TrimSpace(n.Text)
	}
	return full
}

const medURNPrefix = "urn:uuid:med-"

// MedicationIndex resolves medication references against the Medication
// resources of a bundle.
type MedicationIndex struct {
	byID        map[string]*Medication
	byComposite map[string]*Medication
	byURN       map[string]*Medication
}

// NewMedicationIndex indexes every Medication in the bundle by id,
// "Medication/<id>" and "urn:uuid:<id>". Later duplicates do not replace
// earlier ones.
func NewMedicationIndex(b *Bundle) *MedicationIndex {
	idx := &MedicationIndex{
		byID:        make(map[string]*Medication),
		byComposite: make(map[string]*Medication),
		byURN:       make(map[string]*Medication),
	}
	for _, m := range b.Medications() {
		if m.ID == "" {
			continue
		}
		putFirst(idx.byID, m.ID, m)
		putFirst(idx.byComposite, string(KindMedication)+"/"+m.ID, m)
		putFirst(idx.byURN, "urn:uuid:"+m.ID, m)
	}
	return idx
}

func putFirst(m map[string]*Medication, key string, med *Medication) {
	if _, ok := m[key]; !ok {
		m[key] = med
	}
}

// Resolve looks a reference string up by id, then composite key, then URN.
// URN references of the form "urn:uuid:med-<id>" also resolve to <id>.
func (idx *MedicationIndex) Resolve(ref string) (*Medication, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if m, ok := idx.byID[ref]; ok {
		return m, true
	}
	if m, ok := idx.byComposite[ref]; ok {
		return m, true
	}
	if m, ok := idx.byURN[ref]; ok {
		return m, true
	}
	if id, ok := strings.CutPrefix(ref, medURNPrefix); ok && id != "" {
		if m, ok := idx.byID[id]; ok {
			return m, true
		}
	}
	return nil, false
}

// MedicationName resolves the display name of a statement's drug: inline
// concept first, then the referenced Medication, then the reference display,
// else UnknownMedication.
func (idx *MedicationIndex) MedicationName(s *MedicationStatement) string {
	if s.MedicationCodeableConcept != nil {
		if t := s.MedicationCodeableConcept.BestText(); t != "" {
			return t
		}
	}
	if s.MedicationReference != nil {
		if m, ok := idx.Resolve(s.MedicationReference.Reference); ok {
			if name := m.Code.BestDisplay(); name != "" {
				return name
			}
		}
		if d := strings.TrimSpace(s.MedicationReference.Display); d != "" {
			return d
		}
	}
	return UnknownMedication
}
