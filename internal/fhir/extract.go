package fhir

import (
	"fmt"
	"strings"
)

const (
	// urnUUIDPrefix is checked before the slash form when both could match.
	urnUUIDPrefix = "urn:uuid:"

	// RaceExtensionMarker and EthnicityExtensionMarker are substrings of the
	// US Core extension URLs carrying the categorical patient attributes.
	RaceExtensionMarker      = "us-core-race"
	EthnicityExtensionMarker = "us-core-ethnicity"

	// extensionTextURL tags the nested extension holding the display text.
	extensionTextURL = "text"
)

// Named tie-break indexes. The source data routinely carries multiple names,
// addresses and codings; the first entry wins everywhere.
const (
	PrimaryCodingIndex  = 0
	PrimaryNameIndex    = 0
	PrimaryAddressIndex = 0
)

// ReferenceID extracts the bare resource ID from a reference.
//
//	{"reference": "urn:uuid:92fb7efc-..."} -> "92fb7efc-..."
//	{"reference": "Patient/92fb7efc-..."}  -> "92fb7efc-..."
//
// Returns "" on a nil or empty reference.
func ReferenceID(ref *Reference) string {
	if ref == nil {
		return ""
	}
	r := ref.Reference
	if i := strings.LastIndex(r, urnUUIDPrefix); i >= 0 {
		return r[i+len(urnUUIDPrefix):]
	}
	if i := strings.LastIndex(r, "/"); i >= 0 {
		return r[i+1:]
	}
	return r
}

// CodingAt returns the (code, display) pair at index, or empty strings when
// the concept is nil or its coding list is absent, empty, or too short.
func CodingAt(cc *CodeableConcept, index int) (code, display string) {
	if cc == nil || index < 0 || index >= len(cc.Coding) {
		return "", ""
	}
	c := cc.Coding[index]
	return c.Code, c.Display
}

// FirstCoding returns the primary (code, display) pair of a concept.
func FirstCoding(cc *CodeableConcept) (code, display string) {
	return CodingAt(cc, PrimaryCodingIndex)
}

// ExtensionText walks a resource's extension tree for the categorical
// attribute tagged by urlMarker: the top-level extension whose URL contains
// the marker, then its nested extension with url "text". Ordering is not
// assumed at either level. Returns "" when any level is absent.
func ExtensionText(res *Resource, urlMarker string) string {
	if res == nil {
		return ""
	}
	for _, ext := range res.Extension {
		if !strings.Contains(ext.URL, urlMarker) {
			continue
		}
		for _, inner := range ext.Extension {
			if inner.URL == extensionTextURL {
				return inner.ValueString
			}
		}
	}
	return ""
}

// ComponentID synthesizes the row ID for one component of an exploded
// observation: the parent ID plus the component's position.
func ComponentID(parentID string, index int) string {
	return fmt.Sprintf("%s-%d", parentID, index)
}
