package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/repositories"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/postgres"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
)

// AnalyticsAdapter implements AnalyticsRepository over the live schema.
// Dates are TEXT in the store, so ages are derived by casting birth_date
// inside the query, matching how the downstream charts consume them.
type AnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	schema string
}

// NewAnalyticsAdapter creates an analytics repository reading cfg's live schema.
func NewAnalyticsAdapter(client *postgres.Client, cfg *config.DatabaseConfig) repositories.AnalyticsRepository {
	return &AnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		schema: cfg.Schema,
	}
}

func (a *AnalyticsAdapter) table(name string) goqu.Expression {
	return goqu.S(a.schema).Table(name)
}

// AgeGenderDistribution buckets patients into ten-year age bands per gender.
func (a *AnalyticsAdapter) AgeGenderDistribution(ctx context.Context) ([]repositories.AgeGenderBucket, error) {
	ages := a.db.From(goqu.S(a.schema).Table("patients")).
		Select(
			goqu.I("gender"),
			goqu.L("EXTRACT(YEAR FROM age(birth_date::date))::int").As("age"),
		).
		Where(goqu.I("birth_date").IsNotNull()).
		As("patient_ages")

	query, args, err := a.db.From(ages).
		Select(
			goqu.L(`CASE
				WHEN age BETWEEN 0 AND 10 THEN '0-10'
				WHEN age BETWEEN 11 AND 20 THEN '11-20'
				WHEN age BETWEEN 21 AND 30 THEN '21-30'
				WHEN age BETWEEN 31 AND 40 THEN '31-40'
				WHEN age BETWEEN 41 AND 50 THEN '41-50'
				WHEN age BETWEEN 51 AND 60 THEN '51-60'
				WHEN age BETWEEN 61 AND 70 THEN '61-70'
				WHEN age BETWEEN 71 AND 80 THEN '71-80'
				ELSE '81+'
			END`).As("age_group"),
			goqu.I("gender"),
			goqu.COUNT("*").As("count"),
		).
		GroupBy(goqu.I("age_group"), goqu.I("gender")).
		Order(goqu.I("age_group").Asc(), goqu.I("gender").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build age/gender query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query age/gender distribution", err)
	}
	defer rows.Close()

	var out []repositories.AgeGenderBucket
	for rows.Next() {
		var b repositories.AgeGenderBucket
		var gender sql.NullString
		if err := rows.Scan(&b.AgeGroup, &gender, &b.Count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan age/gender bucket", err)
		}
		b.Gender = gender.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// TopConditions ranks conditions by distinct patient count.
func (a *AnalyticsAdapter) TopConditions(ctx context.Context, limit int) ([]repositories.DisplayCount, error) {
	query, args, err := a.db.From(a.table("conditions")).
		Select(goqu.I("display"), goqu.L("COUNT(DISTINCT patient_id)").As("count")).
		Where(goqu.I("display").IsNotNull()).
		GroupBy(goqu.I("display")).
		Order(goqu.I("count").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build top conditions query", err)
	}
	return a.queryDisplayCounts(ctx, query, args)
}

// TopMedications ranks medications by prescription count.
func (a *AnalyticsAdapter) TopMedications(ctx context.Context, limit int) ([]repositories.DisplayCount, error) {
	query, args, err := a.db.From(a.table("medication_requests")).
		Select(goqu.I("medication_display"), goqu.COUNT("*").As("count")).
		Where(goqu.I("medication_display").IsNotNull()).
		GroupBy(goqu.I("medication_display")).
		Order(goqu.I("count").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build top medications query", err)
	}
	return a.queryDisplayCounts(ctx, query, args)
}

// RaceDistribution counts patients per recorded race.
func (a *AnalyticsAdapter) RaceDistribution(ctx context.Context) ([]repositories.ValueCount, error) {
	return a.valueCounts(ctx, "patients", "race")
}

// GeographicDistribution counts patients per state.
func (a *AnalyticsAdapter) GeographicDistribution(ctx context.Context) ([]repositories.ValueCount, error) {
	return a.valueCounts(ctx, "patients", "state")
}

// EncounterClassBreakdown counts encounters per normalized class.
func (a *AnalyticsAdapter) EncounterClassBreakdown(ctx context.Context) ([]repositories.ValueCount, error) {
	return a.valueCounts(ctx, "encounters", "encounter_class")
}

// PolypharmacyDistribution counts distinct medications per patient, flagging
// five or more as polypharmacy.
func (a *AnalyticsAdapter) PolypharmacyDistribution(ctx context.Context) ([]repositories.PatientMedicationLoad, error) {
	query, args, err := a.db.From(goqu.S(a.schema).Table("patients").As("p")).
		LeftJoin(goqu.S(a.schema).Table("medication_requests").As("m"),
			goqu.On(goqu.I("p.id").Eq(goqu.I("m.patient_id")))).
		Select(
			goqu.I("p.id"),
			goqu.I("p.given_name"),
			goqu.I("p.family_name"),
			goqu.L("COUNT(DISTINCT m.medication_display)").As("medication_count"),
		).
		GroupBy(goqu.I("p.id"), goqu.I("p.given_name"), goqu.I("p.family_name")).
		Order(goqu.I("medication_count").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build polypharmacy query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query polypharmacy distribution", err)
	}
	defer rows.Close()

	var out []repositories.PatientMedicationLoad
	for rows.Next() {
		var r repositories.PatientMedicationLoad
		var given, family sql.NullString
		if err := rows.Scan(&r.PatientID, &given, &family, &r.MedicationCount); err != nil {
			return nil, apperrors.NewInternalError("failed to scan polypharmacy row", err)
		}
		r.GivenName = given.String
		r.FamilyName = family.String
		r.Polypharmacy = r.MedicationCount >= 5
		out = append(out, r)
	}
	return out, rows.Err()
}

// abnormalLabPredicate flags out-of-range values for the lab codes the risk
// view tracks: glucose (2339-0, 2345-7), cholesterol (2093-3), BMI (39156-5),
// systolic/diastolic pressure (8480-6, 8462-4), HbA1c (4548-4).
const abnormalLabPredicate = `
	code IN ('2339-0', '2345-7', '2093-3', '39156-5', '8480-6', '8462-4', '4548-4')
	AND value ~ '^[0-9.]+$'
	AND (
		(code IN ('2339-0', '2345-7') AND (value::numeric < 70 OR value::numeric > 100))
		OR (code = '2093-3' AND value::numeric >= 200)
		OR (code = '39156-5' AND (value::numeric < 18.5 OR value::numeric > 24.9))
		OR (code = '8480-6' AND value::numeric >= 120)
		OR (code = '8462-4' AND value::numeric >= 80)
		OR (code = '4548-4' AND value::numeric >= 5.7)
	)`

// PatientComplexityScores weighs active conditions, distinct medications,
// encounter volume and abnormal labs into one score per patient.
func (a *AnalyticsAdapter) PatientComplexityScores(ctx context.Context) ([]repositories.PatientComplexity, error) {
	s := pq.QuoteIdentifier(a.schema)
	query := fmt.Sprintf(`
		WITH patient_conditions AS (
			SELECT patient_id, COUNT(DISTINCT display) AS condition_count
			FROM %[1]s.conditions
			WHERE clinical_status = 'active'
			GROUP BY patient_id
		),
		patient_medications AS (
			SELECT patient_id, COUNT(DISTINCT medication_display) AS medication_count
			FROM %[1]s.medication_requests
			GROUP BY patient_id
		),
		patient_encounters AS (
			SELECT patient_id, COUNT(*) AS encounter_count
			FROM %[1]s.encounters
			GROUP BY patient_id
		),
		patient_abnormal_labs AS (
			SELECT patient_id, COUNT(DISTINCT code) AS abnormal_lab_count
			FROM %[1]s.observations
			WHERE %[2]s
			GROUP BY patient_id
		)
		SELECT
			p.id,
			COALESCE(p.given_name, '') || ' ' || COALESCE(p.family_name, '') AS patient_name,
			COALESCE(pc.condition_count, 0),
			COALESCE(pm.medication_count, 0),
			COALESCE(pe.encounter_count, 0),
			COALESCE(pal.abnormal_lab_count, 0),
			(COALESCE(pc.condition_count, 0) * 2 +
			 COALESCE(pm.medication_count, 0) * 1.5 +
			 COALESCE(pe.encounter_count, 0) * 0.5 +
			 COALESCE(pal.abnormal_lab_count, 0) * 3) AS complexity_score
		FROM %[1]s.patients p
		LEFT JOIN patient_conditions pc ON p.id = pc.patient_id
		LEFT JOIN patient_medications pm ON p.id = pm.patient_id
		LEFT JOIN patient_encounters pe ON p.id = pe.patient_id
		LEFT JOIN patient_abnormal_labs pal ON p.id = pal.patient_id
		ORDER BY complexity_score DESC`, s, abnormalLabPredicate)

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query complexity scores", err)
	}
	defer rows.Close()

	var out []repositories.PatientComplexity
	for rows.Next() {
		var r repositories.PatientComplexity
		if err := rows.Scan(
			&r.PatientID, &r.PatientName, &r.ConditionCount, &r.MedicationCount,
			&r.EncounterCount, &r.AbnormalLabCount, &r.ComplexityScore,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan complexity row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *AnalyticsAdapter) valueCounts(ctx context.Context, table, column string) ([]repositories.ValueCount, error) {
	query, args, err := a.db.From(a.table(table)).
		Select(goqu.I(column), goqu.COUNT("*").As("count")).
		Where(goqu.I(column).IsNotNull()).
		GroupBy(goqu.I(column)).
		Order(goqu.I("count").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to build %s/%s query", table, column), err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to query %s distribution", column), err)
	}
	defer rows.Close()

	var out []repositories.ValueCount
	for rows.Next() {
		var v repositories.ValueCount
		if err := rows.Scan(&v.Value, &v.Count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan value count", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (a *AnalyticsAdapter) queryDisplayCounts(ctx context.Context, query string, args []interface{}) ([]repositories.DisplayCount, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query display counts", err)
	}
	defer rows.Close()

	var out []repositories.DisplayCount
	for rows.Next() {
		var d repositories.DisplayCount
		if err := rows.Scan(&d.Display, &d.Count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan display count", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
