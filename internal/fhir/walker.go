package fhir

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/entities"
)

// progressEvery controls how often the walker reports file progress.
const progressEvery = 50

// Walker scans a directory of bundle documents and runs every resource
// parser over each one. Documents are independent, so decoding and parsing
// fan out across a bounded worker pool; a document that fails to decode is
// logged and skipped while the rest of the batch proceeds.
type Walker struct {
	workers int
	logger  *zerolog.Logger
}

// NewWalker creates a walker with the given parallelism.
func NewWalker(workers int, logger *zerolog.Logger) *Walker {
	if workers <= 0 {
		workers = 1
	}
	return &Walker{workers: workers, logger: logger}
}

// ParseDir parses every *.json bundle under dir into one RecordSet.
// The only fatal error is an unreadable directory; per-document failures
// are counted in the returned set's ParseErrors.
func (w *Walker) ParseDir(ctx context.Context, dir string) (*entities.RecordSet, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	w.logger.Info().Int("files", len(paths)).Str("dir", dir).Msg("scanning bundle directory")

	var (
		set       entities.RecordSet
		mu        sync.Mutex
		processed int64
		failed    int64
	)

	pathChan := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathChan {
				w.parseFile(path, &set, &mu, &failed)
				if n := atomic.AddInt64(&processed, 1); n%progressEvery == 0 {
					w.logger.Info().Int64("processed", n).Int("total", len(paths)).Msg("parsing bundles")
				}
			}
		}()
	}

feed:
	for _, path := range paths {
		select {
		case pathChan <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(pathChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set.ParseErrors = int(failed)
	w.logger.Info().
		Int("patients", len(set.Patients)).
		Int("conditions", len(set.Conditions)).
		Int("observations", len(set.Observations)).
		Int("encounters", len(set.Encounters)).
		Int("medication_requests", len(set.MedicationRequests)).
		Int("parse_errors", set.ParseErrors).
		Msg("bundle parsing complete")

	return &set, nil
}

func (w *Walker) parseFile(path string, set *entities.RecordSet, mu *sync.Mutex, failed *int64) {
	bundle, err := DecodeBundleFile(path)
	if err != nil {
		atomic.AddInt64(failed, 1)
		w.logger.Warn().Err(err).Str("file", path).Msg("skipping unparseable bundle")
		return
	}

	patients := ParsePatients(bundle)
	conditions := ParseConditions(bundle)
	observations := ParseObservations(bundle)
	encounters := ParseEncounters(bundle)
	medications := ParseMedicationRequests(bundle)

	mu.Lock()
	set.Patients = append(set.Patients, patients...)
	set.Conditions = append(set.Conditions, conditions...)
	set.Observations = append(set.Observations, observations...)
	set.Encounters = append(set.Encounters, encounters...)
	set.MedicationRequests = append(set.MedicationRequests, medications...)
	mu.Unlock()
}
