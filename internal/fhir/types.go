// Package fhir models the subset of FHIR resources the pipeline reads from a
// patient bundle, and loads bundles from a record source.
package fhir

import (
	"encoding/json"
	"fmt"
)

// Kind is a FHIR resourceType.
type Kind string

// Resource kinds the pipeline understands.
const (
	KindPatient             Kind = "Patient"
	KindAllergyIntolerance  Kind = "AllergyIntolerance"
	KindCondition           Kind = "Condition"
	KindMedicationStatement Kind = "MedicationStatement"
	KindMedication          Kind = "Medication"
	KindObservation         Kind = "Observation"
	KindCarePlan            Kind = "CarePlan"
)

// Coding is a code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a coded value with optional human-readable text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Reference points at another resource by reference string.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Quantity is a measured amount.
type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Code  string   `json:"code,omitempty"`
}

// Period is a start/end time range.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// HumanName is a patient name.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Resource is one entry of a bundle. Implementations are the pointer types
// below; unknown kinds decode to *Other.
type Resource interface {
	ResourceKind() Kind
	ResourceID() string
}

// Patient carries demographics.
type Patient struct {
	ID        string      `json:"id,omitempty"`
	Name      []HumanName `json:"name,omitempty"`
	Gender    string      `json:"gender,omitempty"`
	BirthDate string      `json:"birthDate,omitempty"`
}

// AllergyReaction lists the manifestations of one reaction.
type AllergyReaction struct {
	Manifestation []CodeableConcept `json:"manifestation,omitempty"`
	Severity      string            `json:"severity,omitempty"`
}

// AllergyIntolerance records an allergy.
type AllergyIntolerance struct {
	ID          string            `json:"id,omitempty"`
	Code        CodeableConcept   `json:"code"`
	Criticality string            `json:"criticality,omitempty"`
	Reaction    []AllergyReaction `json:"reaction,omitempty"`
}

// Condition records a diagnosis or problem.
type Condition struct {
	ID             string           `json:"id,omitempty"`
	Code           CodeableConcept  `json:"code"`
	ClinicalStatus *CodeableConcept `json:"clinicalStatus,omitempty"`
	OnsetDateTime  string           `json:"onsetDateTime,omitempty"`
}

// MedicationStatement records a medication the patient takes. The drug is
// either an inline concept or a reference to a Medication resource.
type MedicationStatement struct {
	ID                        string           `json:"id,omitempty"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	MedicationReference       *Reference       `json:"medicationReference,omitempty"`
	EffectivePeriod           *Period          `json:"effectivePeriod,omitempty"`
	EffectiveDateTime         string           `json:"effectiveDateTime,omitempty"`
}

// Medication is a drug definition referenced by statements.
type Medication struct {
	ID   string          `json:"id,omitempty"`
	Code CodeableConcept `json:"code"`
}

// ObservationComponent is one part of a multi-value observation (e.g. a panel).
type ObservationComponent struct {
	Code                 CodeableConcept  `json:"code"`
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

// Observation is a measurement, either single-valued or a list of components.
type Observation struct {
	ID                   string                 `json:"id,omitempty"`
	Status               string                 `json:"status,omitempty"`
	Code                 CodeableConcept        `json:"code"`
	EffectiveDateTime    string                 `json:"effectiveDateTime,omitempty"`
	Issued               string                 `json:"issued,omitempty"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueString          string                 `json:"valueString,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

// CarePlanActivityDetail describes a planned activity.
type CarePlanActivityDetail struct {
	Code        *CodeableConcept `json:"code,omitempty"`
	Status      string           `json:"status,omitempty"`
	Description string           `json:"description,omitempty"`
}

// CarePlanActivity wraps an activity detail.
type CarePlanActivity struct {
	Detail *CarePlanActivityDetail `json:"detail,omitempty"`
}

// CarePlan lists planned activities.
type CarePlan struct {
	ID       string             `json:"id,omitempty"`
	Status   string             `json:"status,omitempty"`
	Title    string             `json:"title,omitempty"`
	Activity []CarePlanActivity `json:"activity,omitempty"`
}

// Other keeps resources of kinds the pipeline does not read.
type Other struct {
	Kind Kind
	ID   string
}

func (r *Patient) ResourceKind() Kind             { return KindPatient }
func (r *AllergyIntolerance) ResourceKind() Kind  { return KindAllergyIntolerance }
func (r *Condition) ResourceKind() Kind           { return KindCondition }
func (r *MedicationStatement) ResourceKind() Kind { return KindMedicationStatement }
func (r *Medication) ResourceKind() Kind          { return KindMedication }
func (r *Observation) ResourceKind() Kind         { return KindObservation }
func (r *CarePlan) ResourceKind() Kind            { return KindCarePlan }
func (r *Other) ResourceKind() Kind               { return r.Kind }

func (r *Patient) ResourceID() string             { return r.ID }
func (r *AllergyIntolerance) ResourceID() string  { return r.ID }
func (r *Condition) ResourceID() string           { return r.ID }
func (r *MedicationStatement) ResourceID() string { return r.ID }
func (r *Medication) ResourceID() string          { return r.ID }
func (r *Observation) ResourceID() string         { return r.ID }
func (r *CarePlan) ResourceID() string            { return r.ID }
func (r *Other) ResourceID() string               { return r.ID }

// Bundle is the ordered collection of a patient's resources.
type Bundle struct {
	ID        string
	Resources []Resource
}

type rawBundle struct {
	ID    string `json:"id"`
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// UnmarshalJSON decodes a FHIR Bundle, dispatching each entry on resourceType.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw rawBundle
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.ID = raw.ID
	b.Resources = make([]Resource, 0, len(raw.Entry))
	for i, e := range raw.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		res, err := DecodeResource(e.Resource)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		b.Resources = append(b.Resources, res)
	}
	return nil
}

// DecodeResource decodes a single FHIR resource JSON object.
func DecodeResource(data []byte) (Resource, error) {
	var head struct {
		ResourceType Kind   `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var res Resource
	switch head.ResourceType {
	case KindPatient:
		res = &Patient{}
	case KindAllergyIntolerance:
		res = &AllergyIntolerance{}
	case KindCondition:
		res = &Condition{}
	case KindMedicationStatement:
		res = &MedicationStatement{}
	case KindMedication:
		res = &Medication{}
	case KindObservation:
		res = &Observation{}
	case KindCarePlan:
		res = &CarePlan{}
	default:
		return &Other{Kind: head.ResourceType, ID: head.ID}, nil
	}

	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", head.ResourceType, head.ID, err)
	}
	return res, nil
}

// Medications returns the Medication resources in bundle order.
func (b *Bundle) Medications() []*Medication {
	var meds []*Medication
	for _, r := range b.Resources {
		if m, ok := r.(*Medication); ok {
			meds = append(meds, m)
		}
	}
	return meds
}
