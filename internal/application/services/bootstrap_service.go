package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/retry"
)

// BootstrapService fetches and unpacks the source archive ahead of an
// ingestion run. Both steps are idempotent by file-existence check, so a
// re-run skips whatever is already in place.
type BootstrapService struct {
	client     *resty.Client
	archiveURL string
	dataDir    string
	logger     *zerolog.Logger
}

// NewBootstrapService creates a bootstrap service for cfg's archive URL.
func NewBootstrapService(cfg *config.DataConfig, logger *zerolog.Logger) *BootstrapService {
	client := resty.New().
		SetTimeout(5 * time.Minute).
		SetRetryCount(0) // retries handled by pkg/retry for logging consistency

	return &BootstrapService{
		client:     client,
		archiveURL: cfg.ArchiveURL,
		dataDir:    cfg.Dir,
		logger:     logger,
	}
}

// EnsureData downloads the archive if missing and extracts it if not yet
// extracted. Errors precede the pipeline and never abort a run that already
// has data on disk; callers decide whether a failure is fatal.
func (s *BootstrapService) EnsureData(ctx context.Context) error {
	archivePath, err := s.download(ctx)
	if err != nil {
		return err
	}
	return s.extract(archivePath)
}

// archivePath is where the zip lands: next to the bundle directory, named
// after the final URL segment.
func (s *BootstrapService) archivePath() string {
	name := s.archiveURL[strings.LastIndex(s.archiveURL, "/")+1:]
	return filepath.Join(filepath.Dir(s.dataDir), name)
}

func (s *BootstrapService) download(ctx context.Context) (string, error) {
	path := s.archivePath()

	if _, err := os.Stat(path); err == nil {
		s.logger.Info().Str("archive", path).Msg("archive already present, skipping download")
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.NewInternalError("failed to create data directory", err)
	}

	s.logger.Info().Str("url", s.archiveURL).Msg("downloading source archive")

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.MaxTotalTimeout = 15 * time.Minute
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("archive download failed, retrying")
	}

	err := retry.Do(ctx, cfg, "archive download", func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetOutput(path).
			Get(s.archiveURL)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("unexpected status %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		os.Remove(path)
		return "", apperrors.NewExternalError("archive download failed", err)
	}

	s.logger.Info().Str("archive", path).Msg("archive downloaded")
	return path, nil
}

func (s *BootstrapService) extract(archivePath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperrors.NewExternalError("failed to open archive", err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return apperrors.NewValidationError("archive is empty")
	}

	destDir := filepath.Dir(s.dataDir)

	// Existence of the first member means a previous run extracted already.
	first := filepath.Join(destDir, filepath.Clean(reader.File[0].Name))
	if _, err := os.Stat(first); err == nil {
		s.logger.Info().Str("dir", destDir).Msg("archive already extracted, skipping")
		return nil
	}

	s.logger.Info().Str("archive", archivePath).Str("dir", destDir).Msg("extracting archive")

	for _, f := range reader.File {
		if err := s.extractFile(f, destDir); err != nil {
			return err
		}
	}

	s.logger.Info().Int("files", len(reader.File)).Msg("archive extracted")
	return nil
}

func (s *BootstrapService) extractFile(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(f.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return apperrors.NewValidationError(fmt.Sprintf("archive member escapes destination: %s", f.Name))
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return apperrors.NewInternalError("failed to create extraction directory", err)
	}

	src, err := f.Open()
	if err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to open archive member %s", f.Name), err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create %s", target), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to extract %s", f.Name), err)
	}
	return nil
}
