package portfolioapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"
	"assetsearch/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response is kept in APIError.
const maxErrorBody = 4 << 10

// RESTClient talks to the portfolio backend. It satisfies catalog.Fetcher
// and pricing.Fetcher.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRESTClient(baseURL string, timeout time.Duration, token string, log *zap.Logger) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.OrNop(log).Named("portfolioapi"),
	}
}

// GetAssets fetches the catalog with a single bounded request.
func (c *RESTClient) GetAssets(ctx context.Context, limit int) ([]catalog.AssetRecord, error) {
	endpoint := c.baseURL + "/assets"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	var result AssetListResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetQuote fetches the latest quote for symbol.
func (c *RESTClient) GetQuote(ctx context.Context, symbol string) (pricing.Quote, error) {
	endpoint := c.baseURL + "/quotes/" + url.PathEscape(symbol)

	var result QuoteResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return pricing.Quote{}, err
	}
	return result.toQuote(), nil
}

func (c *RESTClient) getJSON(ctx context.Context, endpoint string, out any) error {
	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("request failed",
			zap.String("url", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("request ok",
		zap.String("url", endpoint),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
