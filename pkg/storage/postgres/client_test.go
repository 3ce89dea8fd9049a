package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"
	"assetsearch/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to ASSETSEARCH_TEST_DSN, e.g.
// "host=localhost port=5432 user=postgres password=yourpw dbname=assetsearch_test sslmode=disable".
func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	dsn := os.Getenv("ASSETSEARCH_TEST_DSN")
	if dsn == "" {
		t.Skip("ASSETSEARCH_TEST_DSN not set")
	}

	client, err := postgres.NewClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.AutoMigrate())
	require.NoError(t, client.DB.Exec("TRUNCATE asset_record, quote_record").Error)
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	assert.Error(t, err)
}

// go test -v --run ^TestAssetCRUD$
func TestAssetCRUD(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, client.IsHealthy(ctx))

	require.NoError(t, client.UpsertAssets(ctx, []catalog.AssetRecord{
		{ID: "1", Symbol: "AAPL", Name: "Apple", Exchange: "NASDAQ", AssetType: "stock"},
		{ID: "2", Symbol: "SPY", Name: "SPDR S&P 500", Exchange: "NYSE", AssetType: "etf"},
	}))
	require.NoError(t, client.UpsertAssets(ctx, []catalog.AssetRecord{
		{ID: "1", Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", AssetType: "stock"},
	}))

	all, err := client.ListAssets(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Apple Inc.", all[0].Name, "upsert replaces by asset id")

	limited, err := client.ListAssets(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// go test -v --run ^TestQuoteLatest$
func TestQuoteLatest(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	_, err := client.LatestQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, postgres.ErrQuoteNotFound)

	older := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	for _, q := range []pricing.Quote{
		{Symbol: "AAPL", Price: decimal.RequireFromString("187.00"), Currency: "USD", AsOf: older},
		{Symbol: "aapl", Price: decimal.RequireFromString("189.25"), Currency: "usd", AsOf: newer},
		{Symbol: "AAPL", Price: decimal.RequireFromString("1.00"), Currency: "USD", AsOf: newer},
	} {
		require.NoError(t, client.InsertQuote(ctx, q))
	}

	got, err := client.LatestQuote(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("189.25")), "duplicate as_of is skipped, got %s", got.Price)
	assert.True(t, got.AsOf.Equal(newer))
}
