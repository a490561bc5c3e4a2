package repositories

import "context"

// AgeGenderBucket is one cell of the age-by-gender population pyramid.
type AgeGenderBucket struct {
	AgeGroup string `json:"age_group"`
	Gender   string `json:"gender"`
	Count    int    `json:"count"`
}

// DisplayCount counts patients or prescriptions per display text.
type DisplayCount struct {
	Display string `json:"display"`
	Count   int    `json:"count"`
}

// ValueCount counts rows per categorical value (race, state, encounter class).
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PatientMedicationLoad is one patient's unique-medication count with the
// polypharmacy flag (5 or more distinct medications).
type PatientMedicationLoad struct {
	PatientID       string `json:"patient_id"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	MedicationCount int    `json:"medication_count"`
	Polypharmacy    bool   `json:"polypharmacy"`
}

// PatientComplexity is one patient's utilization-derived complexity score.
type PatientComplexity struct {
	PatientID        string  `json:"patient_id"`
	PatientName      string  `json:"patient_name"`
	ConditionCount   int     `json:"condition_count"`
	MedicationCount  int     `json:"medication_count"`
	EncounterCount   int     `json:"encounter_count"`
	AbnormalLabCount int     `json:"abnormal_lab_count"`
	ComplexityScore  float64 `json:"complexity_score"`
}

// AnalyticsRepository is the read side consumed by the dashboard. All
// methods are plain aggregations over the live schema; they never run
// concurrently with a rebuild because the loader publishes by schema swap.
type AnalyticsRepository interface {
	AgeGenderDistribution(ctx context.Context) ([]AgeGenderBucket, error)
	TopConditions(ctx context.Context, limit int) ([]DisplayCount, error)
	RaceDistribution(ctx context.Context) ([]ValueCount, error)
	GeographicDistribution(ctx context.Context) ([]ValueCount, error)
	EncounterClassBreakdown(ctx context.Context) ([]ValueCount, error)
	TopMedications(ctx context.Context, limit int) ([]DisplayCount, error)
	PolypharmacyDistribution(ctx context.Context) ([]PatientMedicationLoad, error)
	PatientComplexityScores(ctx context.Context) ([]PatientComplexity, error)
}
