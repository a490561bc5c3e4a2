package entities

// Gender values carried by Synthea Patient resources.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Patient is one flattened Patient resource. One row per subject; the whole
// table is rebuilt on every ingestion run, never updated in place.
//
// Optional fields hold the empty string when the source resource omits them;
// the load adapter writes those as SQL NULL.
type Patient struct {
	ID         string
	GivenName  string
	FamilyName string
	Gender     string
	BirthDate  string
	Race       string
	Ethnicity  string
	City       string
	State      string
}
