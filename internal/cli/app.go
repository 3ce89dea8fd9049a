package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"assetsearch/config"
	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"
	"assetsearch/internal/search"
	"assetsearch/logger"
	"assetsearch/pkg/portfolioapi"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config.yaml (default: search ./config, ../config, ../../config)")
	verbose    = flag.Bool("v", false, "Log at the configured level instead of warn")
)

// Register adds the assetsearch subcommands to c.
func Register(c *subcommands.Commander) {
	c.Register(&searchCmd{}, "catalog")
	c.Register(&browseCmd{}, "catalog")
	c.Register(&quoteCmd{}, "pricing")
	c.Register(&interactiveCmd{}, "")
}

// App wires one catalog cache, one price enricher and the REST client they
// share. Every command in a process works off the same App.
type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	Client *portfolioapi.RESTClient
	Cache  *catalog.AssetCache
	Prices *pricing.Enricher
}

func NewApp(cfg *config.Config, log *zap.Logger) *App {
	log = logger.OrNop(log)
	client := portfolioapi.NewRESTClient(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.Token, log)

	return &App{
		Cfg:    cfg,
		Log:    log,
		Client: client,
		Cache: catalog.New(client, catalog.Options{
			Limit:        cfg.Cache.Limit,
			TTL:          cfg.Cache.TTL,
			FetchTimeout: cfg.Cache.FetchTimeout,
		}, log),
		Prices: pricing.NewEnricher(client, pricing.Options{
			Timeout:         cfg.Pricing.Timeout,
			DefaultCurrency: cfg.Pricing.DefaultCurrency,
		}, log),
	}
}

// openApp loads the config named by -config and builds the App.
func openApp() (*App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if !*verbose {
		cfg.Log.Level = "warn"
	}

	log, err := logger.New(cfg.Log, "assetsearch")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return NewApp(cfg, log), nil
}

func (a *App) SearchOptions() search.Options {
	return search.Options{
		Debounce:       a.Cfg.Search.Debounce,
		BlurGrace:      a.Cfg.Search.BlurGrace,
		MaxSuggestions: a.Cfg.Search.MaxSuggestions,
		BrowseLimit:    a.Cfg.Search.BrowseLimit,
		MinQueryLength: a.Cfg.Search.MinQueryLength,
	}
}

// Search preloads the catalog and prints the ranked matches for query.
func (a *App) Search(ctx context.Context, w io.Writer, query string, limit int) error {
	if err := a.Cache.Preload(ctx); err != nil {
		return err
	}

	results := a.Cache.FilterAssets(query, limit)
	if len(results) == 0 {
		fmt.Fprintf(w, "No results found for '%s'.\n", query)
		return nil
	}
	return printAssets(w, results)
}

// Browse preloads the catalog and prints the first limit assets alphabetically.
func (a *App) Browse(ctx context.Context, w io.Writer, limit int) error {
	if err := a.Cache.Preload(ctx); err != nil {
		return err
	}

	results := a.Cache.Browse(limit)
	if len(results) == 0 {
		fmt.Fprintln(w, "The catalog is empty.")
		return nil
	}
	return printAssets(w, results)
}

// Quote prints the latest price for symbol.
func (a *App) Quote(ctx context.Context, w io.Writer, symbol string) error {
	q, err := a.Prices.FetchPrice(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\t%s\t(as of %s)\n", q.Symbol, q.Display(), q.AsOf.Format("2006-01-02 15:04 MST"))
	return nil
}

func printAssets(w io.Writer, assets []catalog.AssetRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tEXCHANGE\tTYPE")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Symbol, a.Name, a.Exchange, a.AssetType)
	}
	return tw.Flush()
}
