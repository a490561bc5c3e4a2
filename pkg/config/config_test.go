package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DatabaseConfig(t *testing.T) {
	os.Setenv("DB_HOST", "pg.test")
	os.Setenv("DB_SCHEMA", "clinical")
	defer func() {
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_SCHEMA")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "pg.test", cfg.Database.Host)
	assert.Equal(t, "clinical", cfg.Database.Schema)
	assert.Equal(t, "clinical_staging", cfg.Database.StagingSchema())
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DB_HOST")
	os.Unsetenv("DB_SCHEMA")
	os.Unsetenv("FHIR_DATA_DIR")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "fhir", cfg.Database.Schema)
	assert.Equal(t, "data/raw/fhir", cfg.Data.Dir)
	assert.Equal(t, 4, cfg.Data.Workers)
	assert.Contains(t, cfg.Data.ArchiveURL, "synthea_sample_data_fhir_r4")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Database: "fhir_pipeline", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=fhir_pipeline sslmode=disable",
		cfg.DatabaseDSN(),
	)
}
