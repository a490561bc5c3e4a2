package services

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
)

// zipArchive builds an in-memory zip with the given member names and bodies.
func zipArchive(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newBootstrap(t *testing.T, url, dataDir string) *BootstrapService {
	t.Helper()
	logger := zerolog.Nop()
	return NewBootstrapService(&config.DataConfig{ArchiveURL: url, Dir: dataDir}, &logger)
}

func TestEnsureData_DownloadsAndExtracts(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"fhir/bundle-1.json": `{"resourceType": "Bundle"}`,
		"fhir/bundle-2.json": `{"resourceType": "Bundle"}`,
	})

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	dataDir := filepath.Join(root, "fhir")
	svc := newBootstrap(t, srv.URL+"/sample.zip", dataDir)

	require.NoError(t, svc.EnsureData(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.FileExists(t, filepath.Join(root, "sample.zip"))
	assert.FileExists(t, filepath.Join(dataDir, "bundle-1.json"))
	assert.FileExists(t, filepath.Join(dataDir, "bundle-2.json"))
}

func TestEnsureData_SkipsWhenAlreadyFetched(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"fhir/bundle-1.json": `{"resourceType": "Bundle"}`,
	})

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	svc := newBootstrap(t, srv.URL+"/sample.zip", filepath.Join(root, "fhir"))

	require.NoError(t, svc.EnsureData(context.Background()))
	require.NoError(t, svc.EnsureData(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second run must reuse the downloaded archive")
}

func TestEnsureData_RetriesServerErrors(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"fhir/bundle-1.json": `{"resourceType": "Bundle"}`,
	})

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	svc := newBootstrap(t, srv.URL+"/sample.zip", filepath.Join(root, "fhir"))

	require.NoError(t, svc.EnsureData(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.FileExists(t, filepath.Join(root, "fhir", "bundle-1.json"))
}

func TestEnsureData_FailsAfterExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := t.TempDir()
	svc := newBootstrap(t, srv.URL+"/sample.zip", filepath.Join(root, "fhir"))

	err := svc.EnsureData(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.NoFileExists(t, filepath.Join(root, "sample.zip"), "partial download must be cleaned up")
}

func TestEnsureData_RejectsEscapingArchiveMembers(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../outside.json")
	require.NoError(t, err)
	_, err = f.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	root := t.TempDir()
	archivePath := filepath.Join(root, "sample.zip")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	// Archive already on disk, so EnsureData goes straight to extraction.
	svc := newBootstrap(t, "http://unused.invalid/sample.zip", filepath.Join(root, "fhir"))

	err = svc.EnsureData(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "outside.json"))
}

func TestEnsureData_SkipsExtractionWhenPresent(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"fhir/bundle-1.json": `{"resourceType": "Bundle"}`,
	})

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.zip"), archive, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "fhir"), 0o755))

	marker := filepath.Join(root, "fhir", "bundle-1.json")
	require.NoError(t, os.WriteFile(marker, []byte("sentinel"), 0o644))

	svc := newBootstrap(t, "http://unused.invalid/sample.zip", filepath.Join(root, "fhir"))
	require.NoError(t, svc.EnsureData(context.Background()))

	body, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(body), "existing extraction must not be overwritten")
}
