package fhir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
)

func decode(t *testing.T, raw string) *Bundle {
	t.Helper()
	b, err := DecodeBundle(strings.NewReader(raw))
	require.NoError(t, err)
	return b
}

func TestParsePatients_FullDemographics(t *testing.T) {
	b := decode(t, `{
		"resourceType": "Bundle",
		"entry": [{
			"resource": {
				"resourceType": "Patient",
				"id": "pat-1",
				"name": [{"given": ["Jane", "Q"], "family": "Doe"}],
				"gender": "female",
				"birthDate": "1980-01-01",
				"address": [{"city": "Boston", "state": "Massachusetts"}]
			}
		}]
	}`)

	patients := ParsePatients(b)
	require.Len(t, patients, 1)

	p := patients[0]
	assert.Equal(t, "pat-1", p.ID)
	assert.Equal(t, "Jane", p.GivenName)
	assert.Equal(t, "Doe", p.FamilyName)
	assert.Equal(t, entities.GenderFemale, p.Gender)
	assert.Equal(t, "1980-01-01", p.BirthDate)
	assert.Equal(t, "Boston", p.City)
	assert.Equal(t, "Massachusetts", p.State)
	assert.Empty(t, p.Race, "race absent in source must stay absent")
	assert.Empty(t, p.Ethnicity, "ethnicity absent in source must stay absent")
}

func TestParsePatients_FirstNameAndAddressWin(t *testing.T) {
	b := decode(t, `{
		"entry": [{
			"resource": {
				"resourceType": "Patient",
				"id": "pat-1",
				"name": [
					{"given": ["Official"], "family": "Name"},
					{"given": ["Maiden"], "family": "Former"}
				],
				"address": [
					{"city": "First City", "state": "FS"},
					{"city": "Second City", "state": "SS"}
				]
			}
		}]
	}`)

	patients := ParsePatients(b)
	require.Len(t, patients, 1)
	assert.Equal(t, "Official", patients[0].GivenName)
	assert.Equal(t, "First City", patients[0].City)
}

func TestParsePatients_StopsAtFirstPatient(t *testing.T) {
	b := decode(t, `{
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "pat-1"}},
			{"resource": {"resourceType": "Patient", "id": "pat-2"}}
		]
	}`)
	patients := ParsePatients(b)
	require.Len(t, patients, 1)
	assert.Equal(t, "pat-1", patients[0].ID)
}

func TestParsePatients_RaceAndEthnicityExtensions(t *testing.T) {
	b := decode(t, `{
		"entry": [{
			"resource": {
				"resourceType": "Patient",
				"id": "pat-1",
				"extension": [
					{
						"url": "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race",
						"extension": [{"url": "text", "valueString": "Asian"}]
					},
					{
						"url": "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity",
						"extension": [{"url": "text", "valueString": "Hispanic or Latino"}]
					}
				]
			}
		}]
	}`)
	patients := ParsePatients(b)
	require.Len(t, patients, 1)
	assert.Equal(t, "Asian", patients[0].Race)
	assert.Equal(t, "Hispanic or Latino", patients[0].Ethnicity)
}

func TestParseConditions(t *testing.T) {
	b := decode(t, `{
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "pat-1"}},
			{"resource": {
				"resourceType": "Condition",
				"id": "cond-1",
				"subject": {"reference": "urn:uuid:pat-1"},
				"code": {"coding": [{"code": "44054006", "display": "Diabetes"}]},
				"clinicalStatus": {"coding": [{"code": "active"}]},
				"onsetDateTime": "2015-06-01T00:00:00Z"
			}},
			{"resource": {
				"resourceType": "Condition",
				"id": "cond-2",
				"subject": {"reference": "Patient/pat-1"}
			}}
		]
	}`)

	conditions := ParseConditions(b)
	require.Len(t, conditions, 2)

	assert.Equal(t, entities.Condition{
		ID:             "cond-1",
		PatientID:      "pat-1",
		Code:           "44054006",
		Display:        "Diabetes",
		ClinicalStatus: entities.ClinicalStatusActive,
		OnsetDate:      "2015-06-01T00:00:00Z",
	}, conditions[0])

	// Absent optional fields stay empty, the record is still emitted.
	assert.Equal(t, "cond-2", conditions[1].ID)
	assert.Equal(t, "pat-1", conditions[1].PatientID)
	assert.Empty(t, conditions[1].Code)
	assert.Empty(t, conditions[1].ClinicalStatus)
}

func TestParseObservations_QuantityValue(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Observation",
			"id": "obs-q",
			"subject": {"reference": "urn:uuid:pat-1"},
			"code": {"coding": [{"code": "2339-0", "display": "Glucose"}]},
			"category": [{"coding": [{"code": "laboratory"}]}],
			"effectiveDateTime": "2020-03-01T10:00:00Z",
			"valueQuantity": {"value": 85.5, "unit": "mg/dL"}
		}}]
	}`)

	obs := ParseObservations(b)
	require.Len(t, obs, 1)
	assert.Equal(t, "obs-q", obs[0].ID)
	assert.Equal(t, "85.5", obs[0].Value)
	assert.Equal(t, "mg/dL", obs[0].Unit)
	assert.Equal(t, entities.CategoryLaboratory, obs[0].Category)
}

func TestParseObservations_CodedValue(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Observation",
			"id": "obs-c",
			"subject": {"reference": "urn:uuid:pat-1"},
			"code": {"coding": [{"code": "72166-2", "display": "Tobacco smoking status"}]},
			"valueCodeableConcept": {"coding": [{"code": "266919005", "display": "Never smoker"}]}
		}}]
	}`)

	obs := ParseObservations(b)
	require.Len(t, obs, 1)
	assert.Equal(t, "Never smoker", obs[0].Value)
	assert.Empty(t, obs[0].Unit)
}

func TestParseObservations_ComponentFanOut(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Observation",
			"id": "obs-1",
			"subject": {"reference": "urn:uuid:pat-1"},
			"code": {"coding": [{"code": "85354-9", "display": "Blood pressure panel"}]},
			"category": [{"coding": [{"code": "vital-signs"}]}],
			"effectiveDateTime": "2020-03-01T10:00:00Z",
			"component": [
				{
					"code": {"coding": [{"code": "8480-6", "display": "Systolic"}]},
					"valueQuantity": {"value": 120, "unit": "mm[Hg]"}
				},
				{
					"code": {"coding": [{"code": "8462-4", "display": "Diastolic"}]},
					"valueQuantity": {"value": 80, "unit": "mm[Hg]"}
				}
			]
		}}]
	}`)

	obs := ParseObservations(b)
	require.Len(t, obs, 2)

	assert.Equal(t, "obs-1-0", obs[0].ID)
	assert.Equal(t, "8480-6", obs[0].Code)
	assert.Equal(t, "120", obs[0].Value)
	assert.Equal(t, "obs-1-1", obs[1].ID)
	assert.Equal(t, "8462-4", obs[1].Code)
	assert.Equal(t, "80", obs[1].Value)

	for _, o := range obs {
		assert.Equal(t, "pat-1", o.PatientID)
		assert.Equal(t, entities.CategoryVitalSigns, o.Category)
		assert.Equal(t, "2020-03-01T10:00:00Z", o.EffectiveDate)
		assert.Equal(t, "mm[Hg]", o.Unit)
	}
}

func TestParseObservations_QuantityWinsOverComponents(t *testing.T) {
	// Malformed input carrying two value shapes: the fixed priority order
	// must emit the quantity row only, never both.
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Observation",
			"id": "obs-dual",
			"subject": {"reference": "urn:uuid:pat-1"},
			"valueQuantity": {"value": 7, "unit": "kg"},
			"component": [
				{"code": {"coding": [{"code": "8480-6"}]}, "valueQuantity": {"value": 120, "unit": "mm[Hg]"}}
			]
		}}]
	}`)

	obs := ParseObservations(b)
	require.Len(t, obs, 1)
	assert.Equal(t, "obs-dual", obs[0].ID)
	assert.Equal(t, "7", obs[0].Value)
	assert.Equal(t, "kg", obs[0].Unit)
}

func TestParseObservations_NoValueMarker(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Observation",
			"id": "obs-none",
			"subject": {"reference": "urn:uuid:pat-1"},
			"code": {"coding": [{"code": "1234-5", "display": "Unvalued"}]}
		}}]
	}`)

	obs := ParseObservations(b)
	require.Len(t, obs, 1)
	assert.Empty(t, obs[0].Value)
	assert.Empty(t, obs[0].Unit)
}

func TestParseEncounters(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "Encounter",
			"id": "enc-1",
			"subject": {"reference": "urn:uuid:pat-1"},
			"class": {"code": "AMB"},
			"type": [{"coding": [{"code": "185349003", "display": "Encounter for check up"}]}],
			"period": {"start": "2020-01-01T09:00:00Z", "end": "2020-01-01T09:30:00Z"}
		}}]
	}`)

	encounters := ParseEncounters(b)
	require.Len(t, encounters, 1)
	assert.Equal(t, entities.Encounter{
		ID:             "enc-1",
		PatientID:      "pat-1",
		EncounterClass: entities.EncounterClassAmbulatory,
		TypeDisplay:    "Encounter for check up",
		StartDate:      "2020-01-01T09:00:00Z",
		EndDate:        "2020-01-01T09:30:00Z",
	}, encounters[0])
}

func TestParseEncounters_MissingClassAndPeriod(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {"resourceType": "Encounter", "id": "enc-2"}}]
	}`)

	encounters := ParseEncounters(b)
	require.Len(t, encounters, 1)
	assert.Empty(t, encounters[0].EncounterClass)
	assert.Empty(t, encounters[0].StartDate)
	assert.Empty(t, encounters[0].EndDate)
}

func TestParseMedicationRequests(t *testing.T) {
	b := decode(t, `{
		"entry": [{"resource": {
			"resourceType": "MedicationRequest",
			"id": "med-1",
			"subject": {"reference": "urn:uuid:pat-1"},
			"medicationCodeableConcept": {"coding": [{"code": "310965", "display": "Ibuprofen 200 MG"}]},
			"authoredOn": "2019-05-05T00:00:00Z",
			"status": "active"
		}}]
	}`)

	meds := ParseMedicationRequests(b)
	require.Len(t, meds, 1)
	assert.Equal(t, entities.MedicationRequest{
		ID:                "med-1",
		PatientID:         "pat-1",
		MedicationCode:    "310965",
		MedicationDisplay: "Ibuprofen 200 MG",
		AuthoredOn:        "2019-05-05T00:00:00Z",
		Status:            "active",
	}, meds[0])
}

func TestParsers_SkipOtherResourceKinds(t *testing.T) {
	b := decode(t, `{
		"entry": [
			{"resource": {"resourceType": "Immunization", "id": "imm-1"}},
			{"resource": {"resourceType": "CarePlan", "id": "cp-1"}},
			{"resource": null}
		]
	}`)

	assert.Empty(t, ParsePatients(b))
	assert.Empty(t, ParseConditions(b))
	assert.Empty(t, ParseObservations(b))
	assert.Empty(t, ParseEncounters(b))
	assert.Empty(t, ParseMedicationRequests(b))
}
