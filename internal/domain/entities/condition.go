package entities

// Clinical status codes observed in the source data.
const (
	ClinicalStatusActive   = "active"
	ClinicalStatusResolved = "resolved"
	ClinicalStatusInactive = "inactive"
)

// Condition is one flattened Condition resource, many-to-one with Patient.
type Condition struct {
	ID             string
	PatientID      string
	Code           string
	Display        string
	ClinicalStatus string
	OnsetDate      string
}
