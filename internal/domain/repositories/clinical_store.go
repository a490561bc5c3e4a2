package repositories

import (
	"context"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
)

// ClinicalStore is the write side of the relational store. Implementations
// build the five tables in a staging area invisible to readers; Swap
// publishes the finished build atomically and Discard throws a failed one
// away. The call order is fixed: CreateSchema, LoadPatients, the child
// loads, CreateIndexes, VerifyCounts, VerifyJoin, Swap. Patients must be
// fully committed before any child load so foreign keys validate.
type ClinicalStore interface {
	CreateSchema(ctx context.Context) error
	LoadPatients(ctx context.Context, patients []entities.Patient) error
	LoadConditions(ctx context.Context, conditions []entities.Condition) error
	LoadObservations(ctx context.Context, observations []entities.Observation) error
	LoadEncounters(ctx context.Context, encounters []entities.Encounter) error
	LoadMedicationRequests(ctx context.Context, requests []entities.MedicationRequest) error
	CreateIndexes(ctx context.Context) error

	// VerifyCounts compares per-table row counts against the parser output.
	VerifyCounts(ctx context.Context, expected map[string]int) error
	// VerifyJoin runs one join across all five tables and fails unless at
	// least one row comes back.
	VerifyJoin(ctx context.Context) error

	Swap(ctx context.Context) error
	Discard(ctx context.Context) error

	DatabaseSize(ctx context.Context) (int64, error)
}
