package models

import "encoding/json"

// Source tags where an answer's context came from.
type Source string

// Result sources. SourceNone serializes as JSON null.
const (
	SourceNone Source = ""
	SourceFHIR Source = "fhir"
	SourceDrug Source = "drug"
)

// Result is the pipeline's answer to one prompt.
type Result struct {
	Source   Source
	Response string
}

type resultJSON struct {
	Source   *string `json:"source"`
	Response string  `json:"response"`
}

// MarshalJSON encodes SourceNone as null.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{Source: r.sourcePtr(), Response: r.Response})
}

// UnmarshalJSON decodes a null source as SourceNone.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Response = in.Response
	r.Source = sourceOf(in.Source)
	return nil
}

func (r Result) sourcePtr() *string {
	if r.Source == SourceNone {
		return nil
	}
	s := string(r.Source)
	return &s
}

func sourceOf(s *string) Source {
	if s == nil {
		return SourceNone
	}
	return Source(*s)
}
