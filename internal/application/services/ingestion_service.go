package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/repositories"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
)

// Phase names the steps of one ingestion run. The success path is linear;
// PhaseFailed is reachable from every step.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseParse        Phase = "parse"
	PhaseSchemaCreate Phase = "schema_create"
	PhaseLoadParent   Phase = "load_parent"
	PhaseLoadChildren Phase = "load_children"
	PhaseIndexCreate  Phase = "index_create"
	PhaseVerify       Phase = "verify"
	PhaseSwap         Phase = "swap"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// BundleParser produces one RecordSet from a directory of bundle documents.
type BundleParser interface {
	ParseDir(ctx context.Context, dir string) (*entities.RecordSet, error)
}

// IngestionService rebuilds the relational store from a batch of source
// documents. Each run starts from an empty staging area and either publishes
// a complete store or leaves the previous one untouched.
type IngestionService struct {
	parser BundleParser
	store  repositories.ClinicalStore
	logger *zerolog.Logger
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(parser BundleParser, store repositories.ClinicalStore, logger *zerolog.Logger) *IngestionService {
	return &IngestionService{parser: parser, store: store, logger: logger}
}

// Run executes one full ingestion over dir. On any failure after schema
// creation the staging schema is discarded, so no partial store persists.
func (s *IngestionService) Run(ctx context.Context, dir string) (*entities.RunSummary, error) {
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Info().Str("dir", dir).Msg("ingestion run starting")

	phase := PhaseParse
	set, err := s.parser.ParseDir(ctx, dir)
	if err != nil {
		return nil, s.fail(phase, err)
	}
	if len(set.Patients) == 0 {
		return nil, s.fail(phase, apperrors.NewValidationError("no patient records parsed from source directory"))
	}

	dropped := s.filterUnresolvable(set, &logger)

	staged := false
	defer func() {
		if staged {
			if derr := s.store.Discard(context.WithoutCancel(ctx)); derr != nil {
				logger.Warn().Err(derr).Msg("failed to discard staging schema")
			}
		}
	}()

	phase = PhaseSchemaCreate
	if err := s.store.CreateSchema(ctx); err != nil {
		return nil, s.fail(phase, err)
	}
	staged = true

	phase = PhaseLoadParent
	if err := s.store.LoadPatients(ctx, set.Patients); err != nil {
		return nil, s.fail(phase, err)
	}

	phase = PhaseLoadChildren
	if err := s.store.LoadConditions(ctx, set.Conditions); err != nil {
		return nil, s.fail(phase, err)
	}
	if err := s.store.LoadObservations(ctx, set.Observations); err != nil {
		return nil, s.fail(phase, err)
	}
	if err := s.store.LoadEncounters(ctx, set.Encounters); err != nil {
		return nil, s.fail(phase, err)
	}
	if err := s.store.LoadMedicationRequests(ctx, set.MedicationRequests); err != nil {
		return nil, s.fail(phase, err)
	}

	phase = PhaseIndexCreate
	if err := s.store.CreateIndexes(ctx); err != nil {
		return nil, s.fail(phase, err)
	}

	phase = PhaseVerify
	if err := s.store.VerifyCounts(ctx, set.Counts()); err != nil {
		return nil, s.fail(phase, err)
	}
	if err := s.store.VerifyJoin(ctx); err != nil {
		return nil, s.fail(phase, err)
	}

	phase = PhaseSwap
	if err := s.store.Swap(ctx); err != nil {
		return nil, s.fail(phase, err)
	}
	staged = false

	size, err := s.store.DatabaseSize(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read database size")
	}

	summary := &entities.RunSummary{
		Loaded:            set.Counts(),
		DroppedReferences: dropped,
		ParseErrors:       set.ParseErrors,
		DatabaseSizeBytes: size,
	}
	logger.Info().
		Interface("loaded", summary.Loaded).
		Interface("dropped_references", summary.DroppedReferences).
		Int("parse_errors", summary.ParseErrors).
		Int64("db_size_bytes", summary.DatabaseSizeBytes).
		Msg("ingestion run complete")

	return summary, nil
}

// filterUnresolvable drops child rows whose patient reference is absent or
// does not match a parsed Patient. The store keeps patient_id NOT NULL with
// an enforced foreign key, so such rows could never load; dropping them with
// a warning keeps the rest of the batch, consistent with the per-document
// partial-failure policy.
func (s *IngestionService) filterUnresolvable(set *entities.RecordSet, logger *zerolog.Logger) map[string]int {
	known := make(map[string]struct{}, len(set.Patients))
	for _, p := range set.Patients {
		known[p.ID] = struct{}{}
	}
	resolvable := func(id string) bool {
		_, ok := known[id]
		return id != "" && ok
	}

	dropped := make(map[string]int, 4)

	conditions := set.Conditions[:0]
	for _, c := range set.Conditions {
		if resolvable(c.PatientID) {
			conditions = append(conditions, c)
		} else {
			dropped["conditions"]++
		}
	}
	set.Conditions = conditions

	observations := set.Observations[:0]
	for _, o := range set.Observations {
		if resolvable(o.PatientID) {
			observations = append(observations, o)
		} else {
			dropped["observations"]++
		}
	}
	set.Observations = observations

	encounters := set.Encounters[:0]
	for _, e := range set.Encounters {
		if resolvable(e.PatientID) {
			encounters = append(encounters, e)
		} else {
			dropped["encounters"]++
		}
	}
	set.Encounters = encounters

	medications := set.MedicationRequests[:0]
	for _, m := range set.MedicationRequests {
		if resolvable(m.PatientID) {
			medications = append(medications, m)
		} else {
			dropped["medication_requests"]++
		}
	}
	set.MedicationRequests = medications

	for table, n := range dropped {
		if n > 0 {
			logger.Warn().Str("table", table).Int("rows", n).
				Msg("dropping rows with unresolvable patient reference")
		}
	}
	return dropped
}

func (s *IngestionService) fail(phase Phase, err error) error {
	s.logger.Error().Err(err).Str("phase", string(phase)).Msg("ingestion run failed")
	return fmt.Errorf("ingestion failed in phase %s: %w", phase, err)
}
