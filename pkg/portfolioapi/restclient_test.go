package portfolioapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"assetsearch/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestGetAssets
func TestGetAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "symbol": "AAPL", "name": "Apple Inc.", "exchange": "NASDAQ", "asset_type": "stock"},
			{"id": "b-2", "symbol": "SPY", "name": "SPDR S&P 500", "exchange": "NYSE", "asset_type": "etf"},
			{"id": 3, "name": "missing symbol"}
		]`))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL+"/", 5*time.Second, "tok", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assets, err := client.GetAssets(ctx, 500)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	assert.Equal(t, catalog.AssetRecord{
		ID: "1", Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", AssetType: "stock",
	}, assets[0])
	assert.Equal(t, catalog.AssetID("b-2"), assets[1].ID)
	assert.False(t, assets[2].Valid())
}

func TestGetAssetsNoLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	assets, err := NewRESTClient(srv.URL, time.Second, "", nil).GetAssets(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

// go test -v --run TestGetQuote
func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/quotes/AAPL":
			_, _ = w.Write([]byte(`{"symbol":"AAPL","price":189.25,"currency":"USD","as_of":"2026-10-19T14:30:00Z"}`))
		case "/quotes/BRK%2FB":
			_, _ = w.Write([]byte(`{"symbol":"BRK/B","price":"452.10","currency":"USD","as_of":"2026-10-19T14:30:00Z"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, time.Second, "", nil)

	q, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "189.25", q.Price.String())
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC), q.AsOf.UTC())

	q, err = client.GetQuote(context.Background(), "BRK/B")
	require.NoError(t, err)
	assert.Equal(t, "452.1", q.Price.String(), "string prices decode too")
}

func TestNon200IsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance\n"))
	}))
	defer srv.Close()

	_, err := NewRESTClient(srv.URL, time.Second, "", nil).GetQuote(context.Background(), "AAPL")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "maintenance", apiErr.Body)
}

func TestSingleAttemptAndDecodeFailure(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n.Add(1)
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewRESTClient(srv.URL, time.Second, "", nil).GetAssets(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.EqualValues(t, 1, n.Load())
}

func TestContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewRESTClient(srv.URL, 5*time.Second, "", nil).GetAssets(ctx, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
