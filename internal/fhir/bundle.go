// Package fhir flattens Synthea FHIR R4 bundles into the relational record
// types under internal/domain/entities. It is not a general FHIR parser: the
// bundle model below declares only the fields the ETL needs, and anything
// else in a resource is ignored on decode.
package fhir

import (
	"encoding/json"
	"io"
	"os"
)

// Bundle is one source document: a FHIR bundle wrapping the full clinical
// history of a single subject.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	Entry        []Entry `json:"entry"`
}

// Entry wraps a single resource inside a bundle.
type Entry struct {
	Resource *Resource `json:"resource"`
}

// Resource is the union of the fields read from any of the five resource
// kinds, discriminated by ResourceType. Absent fields stay nil or empty;
// the extractors treat that as "not present", never as an error.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`

	// Patient
	Name      []HumanName `json:"name"`
	Gender    string      `json:"gender"`
	BirthDate string      `json:"birthDate"`
	Address   []Address   `json:"address"`
	Extension []Extension `json:"extension"`

	// Shared by all child resources
	Subject *Reference       `json:"subject"`
	Code    *CodeableConcept `json:"code"`

	// Condition
	ClinicalStatus *CodeableConcept `json:"clinicalStatus"`
	OnsetDateTime  string           `json:"onsetDateTime"`

	// Observation
	Category             []CodeableConcept `json:"category"`
	EffectiveDateTime    string            `json:"effectiveDateTime"`
	ValueQuantity        *Quantity         `json:"valueQuantity"`
	ValueCodeableConcept *CodeableConcept  `json:"valueCodeableConcept"`
	Component            []Component       `json:"component"`

	// Encounter. Class is a bare Coding object in R4, unlike the
	// CodeableConcept lists everywhere else; keep the asymmetry.
	Class  *Coding           `json:"class"`
	Type   []CodeableConcept `json:"type"`
	Period *Period           `json:"period"`

	// MedicationRequest
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept"`
	AuthoredOn                string           `json:"authoredOn"`
	Status                    string           `json:"status"`
}

// Reference points at another resource, either urn:uuid:<id> or Type/<id>.
type Reference struct {
	Reference string `json:"reference"`
}

// CodeableConcept holds one or more coded representations of a clinical term.
type CodeableConcept struct {
	Coding []Coding `json:"coding"`
	Text   string   `json:"text"`
}

// Coding is a single code/display pair.
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Quantity is a numeric value with a unit. Value stays a json.Number so the
// source's formatting survives the trip into a TEXT column.
type Quantity struct {
	Value json.Number `json:"value"`
	Unit  string      `json:"unit"`
}

// Component is one member of a multi-component observation (e.g. the
// systolic and diastolic halves of a blood pressure panel).
type Component struct {
	Code          *CodeableConcept `json:"code"`
	ValueQuantity *Quantity        `json:"valueQuantity"`
}

// HumanName holds the pieces of a patient name the ETL keeps.
type HumanName struct {
	Given  []string `json:"given"`
	Family string   `json:"family"`
}

// Address holds the pieces of a patient address the ETL keeps.
type Address struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Extension is a node in the nested extension tree used for categorical
// patient attributes (race, ethnicity).
type Extension struct {
	URL         string      `json:"url"`
	Extension   []Extension `json:"extension"`
	ValueString string      `json:"valueString"`
}

// Period is a start/end date pair.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DecodeBundle decodes one bundle document from r.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(r)
	if err := dec.Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DecodeBundleFile decodes the bundle document at path.
func DecodeBundleFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeBundle(f)
}
