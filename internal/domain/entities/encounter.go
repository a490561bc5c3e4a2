package entities

// Normalized encounter classes. The source carries v3 ActCode short codes
// (AMB, EMER, IMP, ...); anything unrecognized maps to "other".
const (
	EncounterClassAmbulatory = "ambulatory"
	EncounterClassEmergency  = "emergency"
	EncounterClassInpatient  = "inpatient"
	EncounterClassOther      = "other"
)

// Encounter is one flattened Encounter resource.
type Encounter struct {
	ID             string
	PatientID      string
	EncounterClass string
	TypeDisplay    string
	StartDate      string
	EndDate        string
}

// NormalizeEncounterClass maps a v3 ActCode to the normalized class set.
// An absent code stays absent rather than becoming "other".
func NormalizeEncounterClass(code string) string {
	switch code {
	case "":
		return ""
	case "AMB", "ambulatory":
		return EncounterClassAmbulatory
	case "EMER", "emergency":
		return EncounterClassEmergency
	case "IMP", "ACUTE", "NONAC", "inpatient":
		return EncounterClassInpatient
	default:
		return EncounterClassOther
	}
}
