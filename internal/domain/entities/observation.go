package entities

// Observation categories the analytics layer filters on. Source categories
// outside this set (survey, social-history, ...) are kept as-is; the queries
// treat them as "other".
const (
	CategoryVitalSigns = "vital-signs"
	CategoryLaboratory = "laboratory"
)

// Observation is one flattened Observation resource, or one component of a
// multi-component resource. Component rows carry a synthesized ID
// (parent ID plus positional suffix) and inherit the parent's patient
// reference, category and effective date.
//
// Value is stored as text regardless of the source encoding; numeric values
// are cast on query.
type Observation struct {
	ID            string
	PatientID     string
	Code          string
	Display       string
	Value         string
	Unit          string
	EffectiveDate string
	Category      string
}
