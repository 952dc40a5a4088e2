package models

// Function names the router offers to the classifier.
const (
	FunctionFetchRecords = "get_fhir_resources"
	FunctionLookupDrug   = "get_drug_info"
)

// Action is the single typed instruction a prompt is routed to.
// The set of implementations is closed: FetchRecords, LookupDrug and Unknown.
type Action interface {
	action()
}

// FetchRecords asks for category summaries from a patient's record bundle.
type FetchRecords struct {
	PatientID  string
	Categories []Category
}

// LookupDrug asks for catalog knowledge about a named medication.
type LookupDrug struct {
	DrugName string
}

// Unknown is produced when the classifier picked no recognized function.
type Unknown struct{}

func (FetchRecords) action() {}
func (LookupDrug) action()   {}
func (Unknown) action()      {}
