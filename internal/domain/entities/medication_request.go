package entities

// MedicationRequest is one flattened MedicationRequest resource.
type MedicationRequest struct {
	ID                string
	PatientID         string
	MedicationCode    string
	MedicationDisplay string
	AuthoredOn        string
	Status            string
}
