package postgres_test

import (
	"os"
	"strconv"
	"testing"

	"assetsearch/config"
	"assetsearch/pkg/storage/postgres"

	"github.com/stretchr/testify/require"
)

// go test -v --run TestCreateDatabase
func TestCreateDatabase(t *testing.T) {
	host := os.Getenv("ASSETSEARCH_TEST_PGHOST")
	if host == "" {
		t.Skip("ASSETSEARCH_TEST_PGHOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("ASSETSEARCH_TEST_PGPORT"))
	if port == 0 {
		port = 5432
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("ASSETSEARCH_TEST_PGUSER"),
		Password: os.Getenv("ASSETSEARCH_TEST_PGPASSWORD"),
		DBName:   "assetsearch_create_test",
		SSLMode:  "disable",
	}

	require.NoError(t, postgres.CreateDatabase(cfg))
	require.NoError(t, postgres.CreateDatabase(cfg), "second call finds the existing database")
}
