package fhir

import (
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
)

// ParsePatients flattens the Patient resource of a bundle. Synthea writes
// exactly one subject per document, so scanning stops at the first match.
func ParsePatients(b *Bundle) []entities.Patient {
	var out []entities.Patient
	for _, entry := range b.Entry {
		res := entry.Resource
		if res == nil || res.ResourceType != "Patient" {
			continue
		}

		p := entities.Patient{
			ID:        res.ID,
			Gender:    res.Gender,
			BirthDate: res.BirthDate,
			Race:      ExtensionText(res, RaceExtensionMarker),
			Ethnicity: ExtensionText(res, EthnicityExtensionMarker),
		}
		if len(res.Name) > PrimaryNameIndex {
			name := res.Name[PrimaryNameIndex]
			if len(name.Given) > 0 {
				p.GivenName = name.Given[0]
			}
			p.FamilyName = name.Family
		}
		if len(res.Address) > PrimaryAddressIndex {
			addr := res.Address[PrimaryAddressIndex]
			p.City = addr.City
			p.State = addr.State
		}

		out = append(out, p)
		break
	}
	return out
}

// ParseConditions flattens every Condition resource of a bundle.
func ParseConditions(b *Bundle) []entities.Condition {
	var out []entities.Condition
	for _, entry := range b.Entry {
		res := entry.Resource
		if res == nil || res.ResourceType != "Condition" {
			continue
		}

		code, display := FirstCoding(res.Code)
		status, _ := FirstCoding(res.ClinicalStatus)

		out = append(out, entities.Condition{
			ID:             res.ID,
			PatientID:      ReferenceID(res.Subject),
			Code:           code,
			Display:        display,
			ClinicalStatus: status,
			OnsetDate:      res.OnsetDateTime,
		})
	}
	return out
}

// ParseObservations flattens every Observation resource of a bundle.
//
// An observation carries its value in one of three mutually exclusive
// shapes, checked in fixed priority order: a single quantity, a single
// coded value, or a component list. A component list fans out into one row
// per component, each with a synthesized ID and its own code/value/unit,
// inheriting the parent's patient reference, category and effective date.
// A resource with none of the three markers still yields a row with a null
// value and unit.
func ParseObservations(b *Bundle) []entities.Observation {
	var out []entities.Observation
	for _, entry := range b.Entry {
		res := entry.Resource
		if res == nil || res.ResourceType != "Observation" {
			continue
		}

		code, display := FirstCoding(res.Code)

		var category string
		if len(res.Category) > 0 {
			category, _ = CodingAt(&res.Category[0], PrimaryCodingIndex)
		}

		base := entities.Observation{
			ID:            res.ID,
			PatientID:     ReferenceID(res.Subject),
			Code:          code,
			Display:       display,
			EffectiveDate: res.EffectiveDateTime,
			Category:      category,
		}

		switch {
		case res.ValueQuantity != nil:
			base.Value = res.ValueQuantity.Value.String()
			base.Unit = res.ValueQuantity.Unit
			out = append(out, base)

		case res.ValueCodeableConcept != nil:
			_, base.Value = FirstCoding(res.ValueCodeableConcept)
			out = append(out, base)

		case len(res.Component) > 0:
			for idx, comp := range res.Component {
				row := base
				row.ID = ComponentID(res.ID, idx)
				row.Code, row.Display = FirstCoding(comp.Code)
				row.Value, row.Unit = "", ""
				if comp.ValueQuantity != nil {
					row.Value = comp.ValueQuantity.Value.String()
					row.Unit = comp.ValueQuantity.Unit
				}
				out = append(out, row)
			}

		default:
			out = append(out, base)
		}
	}
	return out
}

// ParseEncounters flattens every Encounter resource of a bundle.
func ParseEncounters(b *Bundle) []entities.Encounter {
	var out []entities.Encounter
	for _, entry := range b.Entry {
		res := entry.Resource
		if res == nil || res.ResourceType != "Encounter" {
			continue
		}

		// class is a single Coding object, not a list like type.
		var classCode string
		if res.Class != nil {
			classCode = res.Class.Code
		}

		var typeDisplay string
		if len(res.Type) > 0 {
			_, typeDisplay = CodingAt(&res.Type[0], PrimaryCodingIndex)
		}

		e := entities.Encounter{
			ID:             res.ID,
			PatientID:      ReferenceID(res.Subject),
			EncounterClass: entities.NormalizeEncounterClass(classCode),
			TypeDisplay:    typeDisplay,
		}
		if res.Period != nil {
			e.StartDate = res.Period.Start
			e.EndDate = res.Period.End
		}

		out = append(out, e)
	}
	return out
}

// ParseMedicationRequests flattens every MedicationRequest resource of a bundle.
func ParseMedicationRequests(b *Bundle) []entities.MedicationRequest {
	var out []entities.MedicationRequest
	for _, entry := range b.Entry {
		res := entry.Resource
		if res == nil || res.ResourceType != "MedicationRequest" {
			continue
		}

		code, display := FirstCoding(res.MedicationCodeableConcept)

		out = append(out, entities.MedicationRequest{
			ID:                res.ID,
			PatientID:         ReferenceID(res.Subject),
			MedicationCode:    code,
			MedicationDisplay: display,
			AuthoredOn:        res.AuthoredOn,
			Status:            res.Status,
		})
	}
	return out
}
