package entities

// RecordSet is the full output of one parse pass over a bundle directory:
// one flat slice per resource kind, ready for loading.
type RecordSet struct {
	Patients           []Patient
	Conditions         []Condition
	Observations       []Observation
	Encounters         []Encounter
	MedicationRequests []MedicationRequest

	// ParseErrors counts source documents that could not be decoded and
	// were skipped.
	ParseErrors int
}

// Counts returns the number of records per table, keyed by table name.
func (r *RecordSet) Counts() map[string]int {
	return map[string]int{
		"patients":            len(r.Patients),
		"conditions":          len(r.Conditions),
		"observations":        len(r.Observations),
		"encounters":          len(r.Encounters),
		"medication_requests": len(r.MedicationRequests),
	}
}

// RunSummary reports what one ingestion run produced.
type RunSummary struct {
	Loaded            map[string]int
	DroppedReferences map[string]int
	ParseErrors       int
	DatabaseSizeBytes int64
}
