package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/repositories"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/postgres"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
)

// insertBatchSize bounds the rows per multi-row INSERT.
const insertBatchSize = 500

// tableNames in parent-first order.
var tableNames = []string{
	"patients", "conditions", "observations", "encounters", "medication_requests",
}

// ClinicalStoreAdapter implements ClinicalStore on PostgreSQL. It builds
// everything inside a staging schema and publishes with a schema rename, so
// readers of the live schema never see a half-built store. PostgreSQL
// enforces foreign keys unconditionally, which covers the requirement to
// enable enforcement where a store defaults it off.
type ClinicalStoreAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	live    string
	staging string
}

// NewClinicalStore creates a ClinicalStore building into cfg's staging schema.
func NewClinicalStore(client *postgres.Client, cfg *config.DatabaseConfig) repositories.ClinicalStore {
	return &ClinicalStoreAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		live:    cfg.Schema,
		staging: cfg.StagingSchema(),
	}
}

// CreateSchema drops any leftover staging schema and declares the five
// tables with their foreign keys, parents first.
func (a *ClinicalStoreAdapter) CreateSchema(ctx context.Context) error {
	s := pq.QuoteIdentifier(a.staging)

	stmts := []string{
		fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s),
		fmt.Sprintf("CREATE SCHEMA %s", s),
		fmt.Sprintf(`CREATE TABLE %s.patients (
			id TEXT PRIMARY KEY,
			given_name TEXT,
			family_name TEXT,
			gender TEXT,
			birth_date TEXT,
			race TEXT,
			ethnicity TEXT,
			city TEXT,
			state TEXT
		)`, s),
		fmt.Sprintf(`CREATE TABLE %s.conditions (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES %s.patients(id) ON DELETE CASCADE,
			code TEXT,
			display TEXT,
			clinical_status TEXT,
			onset_date TEXT
		)`, s, s),
		fmt.Sprintf(`CREATE TABLE %s.observations (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES %s.patients(id) ON DELETE CASCADE,
			code TEXT,
			display TEXT,
			value TEXT,
			unit TEXT,
			effective_date TEXT,
			category TEXT
		)`, s, s),
		fmt.Sprintf(`CREATE TABLE %s.encounters (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES %s.patients(id) ON DELETE CASCADE,
			encounter_class TEXT,
			type_display TEXT,
			start_date TEXT,
			end_date TEXT
		)`, s, s),
		fmt.Sprintf(`CREATE TABLE %s.medication_requests (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES %s.patients(id) ON DELETE CASCADE,
			medication_code TEXT,
			medication_display TEXT,
			authored_on TEXT,
			status TEXT
		)`, s, s),
	}

	for _, stmt := range stmts {
		if _, err := a.client.DB().ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError("failed to create schema", err)
		}
	}

	log.Info().Str("schema", a.staging).Msg("staging schema created")
	return nil
}

// LoadPatients appends the parent table. It commits before returning, so a
// successful call guarantees children can validate their foreign keys.
func (a *ClinicalStoreAdapter) LoadPatients(ctx context.Context, patients []entities.Patient) error {
	records := make([]goqu.Record, len(patients))
	for i, p := range patients {
		records[i] = goqu.Record{
			"id":          p.ID,
			"given_name":  nullable(p.GivenName),
			"family_name": nullable(p.FamilyName),
			"gender":      nullable(p.Gender),
			"birth_date":  nullable(p.BirthDate),
			"race":        nullable(p.Race),
			"ethnicity":   nullable(p.Ethnicity),
			"city":        nullable(p.City),
			"state":       nullable(p.State),
		}
	}
	return a.loadTable(ctx, "patients", records)
}

// LoadConditions appends the conditions table.
func (a *ClinicalStoreAdapter) LoadConditions(ctx context.Context, conditions []entities.Condition) error {
	records := make([]goqu.Record, len(conditions))
	for i, c := range conditions {
		records[i] = goqu.Record{
			"id":              c.ID,
			"patient_id":      c.PatientID,
			"code":            nullable(c.Code),
			"display":         nullable(c.Display),
			"clinical_status": nullable(c.ClinicalStatus),
			"onset_date":      nullable(c.OnsetDate),
		}
	}
	return a.loadTable(ctx, "conditions", records)
}

// LoadObservations appends the observations table.
func (a *ClinicalStoreAdapter) LoadObservations(ctx context.Context, observations []entities.Observation) error {
	records := make([]goqu.Record, len(observations))
	for i, o := range observations {
		records[i] = goqu.Record{
			"id":             o.ID,
			"patient_id":     o.PatientID,
			"code":           nullable(o.Code),
			"display":        nullable(o.Display),
			"value":          nullable(o.Value),
			"unit":           nullable(o.Unit),
			"effective_date": nullable(o.EffectiveDate),
			"category":       nullable(o.Category),
		}
	}
	return a.loadTable(ctx, "observations", records)
}

// LoadEncounters appends the encounters table.
func (a *ClinicalStoreAdapter) LoadEncounters(ctx context.Context, encounters []entities.Encounter) error {
	records := make([]goqu.Record, len(encounters))
	for i, e := range encounters {
		records[i] = goqu.Record{
			"id":              e.ID,
			"patient_id":      e.PatientID,
			"encounter_class": nullable(e.EncounterClass),
			"type_display":    nullable(e.TypeDisplay),
			"start_date":      nullable(e.StartDate),
			"end_date":        nullable(e.EndDate),
		}
	}
	return a.loadTable(ctx, "encounters", records)
}

// LoadMedicationRequests appends the medication_requests table.
func (a *ClinicalStoreAdapter) LoadMedicationRequests(ctx context.Context, requests []entities.MedicationRequest) error {
	records := make([]goqu.Record, len(requests))
	for i, m := range requests {
		records[i] = goqu.Record{
			"id":                 m.ID,
			"patient_id":         m.PatientID,
			"medication_code":    nullable(m.MedicationCode),
			"medication_display": nullable(m.MedicationDisplay),
			"authored_on":        nullable(m.AuthoredOn),
			"status":             nullable(m.Status),
		}
	}
	return a.loadTable(ctx, "medication_requests", records)
}

// loadTable inserts records in batches inside one transaction.
func (a *ClinicalStoreAdapter) loadTable(ctx context.Context, table string, records []goqu.Record) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	target := goqu.S(a.staging).Table(table)
	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := make([]interface{}, 0, end-start)
		for _, r := range records[start:end] {
			batch = append(batch, r)
		}

		query, args, err := a.db.Insert(target).Rows(batch...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to build insert for %s", table), err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to load %s", table), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to commit %s load", table), err)
	}

	log.Info().Str("table", table).Int("rows", len(records)).Msg("table loaded")
	return nil
}

// CreateIndexes builds indexes on every foreign key and on the columns the
// analytics queries filter on.
func (a *ClinicalStoreAdapter) CreateIndexes(ctx context.Context) error {
	s := pq.QuoteIdentifier(a.staging)

	indexes := []struct{ name, table, column string }{
		{"idx_conditions_patient_id", "conditions", "patient_id"},
		{"idx_observations_patient_id", "observations", "patient_id"},
		{"idx_encounters_patient_id", "encounters", "patient_id"},
		{"idx_medication_requests_patient_id", "medication_requests", "patient_id"},
		{"idx_observations_code", "observations", "code"},
		{"idx_observations_category", "observations", "category"},
		{"idx_conditions_code", "conditions", "code"},
		{"idx_encounters_class", "encounters", "encounter_class"},
	}

	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s.%s (%s)",
			pq.QuoteIdentifier(idx.name), s, pq.QuoteIdentifier(idx.table), pq.QuoteIdentifier(idx.column))
		if _, err := a.client.DB().ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to create index %s", idx.name), err)
		}
	}

	log.Info().Int("indexes", len(indexes)).Msg("indexes created")
	return nil
}

// VerifyCounts recounts every table and compares against the parser output.
func (a *ClinicalStoreAdapter) VerifyCounts(ctx context.Context, expected map[string]int) error {
	for _, table := range tableNames {
		query, args, err := a.db.From(goqu.S(a.staging).Table(table)).
			Select(goqu.COUNT("*")).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build count query", err)
		}

		var got int
		if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&got); err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to count %s", table), err)
		}

		want := expected[table]
		if got != want {
			return apperrors.NewVerificationError(
				fmt.Sprintf("row count mismatch for %s: expected %d, got %d", table, want, got))
		}
		log.Info().Str("table", table).Int("rows", got).Msg("row count verified")
	}
	return nil
}

// VerifyJoin joins all five tables through the patient key and requires at
// least one row back, proving the foreign keys are reachable.
func (a *ClinicalStoreAdapter) VerifyJoin(ctx context.Context) error {
	s := a.staging
	query, args, err := a.db.From(goqu.S(s).Table("patients").As("p")).
		LeftJoin(goqu.S(s).Table("conditions").As("c"),
			goqu.On(goqu.I("p.id").Eq(goqu.I("c.patient_id")))).
		LeftJoin(goqu.S(s).Table("observations").As("o"),
			goqu.On(goqu.I("p.id").Eq(goqu.I("o.patient_id")))).
		LeftJoin(goqu.S(s).Table("encounters").As("e"),
			goqu.On(goqu.I("p.id").Eq(goqu.I("e.patient_id")))).
		LeftJoin(goqu.S(s).Table("medication_requests").As("m"),
			goqu.On(goqu.I("p.id").Eq(goqu.I("m.patient_id")))).
		Select(
			goqu.I("p.id"),
			goqu.L("COUNT(DISTINCT c.id)").As("condition_count"),
			goqu.L("COUNT(DISTINCT o.id)").As("observation_count"),
			goqu.L("COUNT(DISTINCT e.id)").As("encounter_count"),
			goqu.L("COUNT(DISTINCT m.id)").As("medication_count"),
		).
		GroupBy(goqu.I("p.id")).
		Limit(5).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build join probe", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to run join probe", err)
	}
	defer rows.Close()

	probed := 0
	for rows.Next() {
		var id string
		var conditions, observations, encounters, medications int
		if err := rows.Scan(&id, &conditions, &observations, &encounters, &medications); err != nil {
			return apperrors.NewInternalError("failed to scan join probe", err)
		}
		probed++
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewInternalError("join probe iteration failed", err)
	}

	if probed == 0 {
		return apperrors.NewVerificationError("join probe returned no rows: foreign keys unreachable")
	}
	log.Info().Int("sampled", probed).Msg("join reachability verified")
	return nil
}

// Swap publishes the staging schema as the live schema in one transaction.
// DDL is transactional in PostgreSQL, so readers switch atomically.
func (a *ClinicalStoreAdapter) Swap(ctx context.Context) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin swap transaction", err)
	}
	defer tx.Rollback()

	live := pq.QuoteIdentifier(a.live)
	staging := pq.QuoteIdentifier(a.staging)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", live)); err != nil {
		return apperrors.NewInternalError("failed to drop live schema", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER SCHEMA %s RENAME TO %s", staging, live)); err != nil {
		return apperrors.NewInternalError("failed to rename staging schema", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit schema swap", err)
	}

	log.Info().Str("schema", a.live).Msg("live schema swapped in")
	return nil
}

// Discard drops the staging schema, leaving any live schema untouched.
func (a *ClinicalStoreAdapter) Discard(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(a.staging))
	if _, err := a.client.DB().ExecContext(ctx, stmt); err != nil {
		return apperrors.NewInternalError("failed to drop staging schema", err)
	}
	return nil
}

// DatabaseSize returns the size of the current database in bytes.
func (a *ClinicalStoreAdapter) DatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	err := a.client.DB().QueryRowContext(ctx, "SELECT pg_database_size(current_database())").Scan(&size)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read database size", err)
	}
	return size, nil
}

// nullable maps the empty string to SQL NULL. Field absence in the source is
// stored as NULL, never as a guessed default.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
