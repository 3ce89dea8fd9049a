package devserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/metrics"
	"assetsearch/internal/pricing"
	"assetsearch/logger"
	"assetsearch/pkg/portfolioapi"
	"assetsearch/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Store is what the dev backend serves from. *postgres.PostgresClient
// satisfies it.
type Store interface {
	ListAssets(ctx context.Context, limit int) ([]catalog.AssetRecord, error)
	LatestQuote(ctx context.Context, symbol string) (pricing.Quote, error)
	IsHealthy(ctx context.Context) bool
}

// Server exposes the asset and quote endpoints the client expects.
type Server struct {
	store  Store
	logger *zap.Logger
	engine *gin.Engine
}

func New(store Store, mode string, log *zap.Logger) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{
		store:  store,
		logger: logger.OrNop(log).Named("devserver"),
		engine: gin.New(),
	}

	// symbols like BRK/B arrive escaped and must stay one path segment
	s.engine.UseRawPath = true
	s.engine.UnescapePathValues = true

	s.engine.Use(gin.Recovery(), s.observe)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/assets", s.getAssets)
	s.engine.GET("/quotes/:symbol", s.getQuote)
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev backend listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	metrics.DevServerRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("request_id", c.GetHeader("X-Request-ID")),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Server) getAssets(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	assets, err := s.store.ListAssets(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list assets failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	if assets == nil {
		assets = []catalog.AssetRecord{}
	}
	c.JSON(http.StatusOK, portfolioapi.AssetListResponse(assets))
}

func (s *Server) getQuote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	q, err := s.store.LatestQuote(c.Request.Context(), symbol)
	if errors.Is(err, postgres.ErrQuoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quote for " + symbol})
		return
	}
	if err != nil {
		s.logger.Error("latest quote failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote unavailable"})
		return
	}

	c.JSON(http.StatusOK, portfolioapi.QuoteResponse{
		Symbol:   q.Symbol,
		Price:    q.Price,
		Currency: q.Currency,
		AsOf:     q.AsOf,
	})
}

func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if !s.store.IsHealthy(ctx) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
