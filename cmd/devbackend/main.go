package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"assetsearch/config"
	"assetsearch/internal/catalog"
	"assetsearch/internal/devserver"
	"assetsearch/internal/pricing"
	"assetsearch/logger"
	"assetsearch/pkg/storage/postgres"

	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config.yaml")
	seedFile   = flag.String("seed", "", "JSON fixture with assets and quotes to load before serving")
	createDB   = flag.Bool("create-db", true, "Create the database if it does not exist")
)

func main() {
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log, "devbackend")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("dev backend failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, *createDB)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer db.Close()

	if *seedFile != "" {
		f, err := seed(ctx, db, *seedFile)
		if err != nil {
			return err
		}
		log.Info("fixture loaded",
			zap.String("file", *seedFile),
			zap.Int("assets", len(f.Assets)),
			zap.Int("quotes", len(f.Quotes)))
	}

	return devserver.New(db, cfg.Server.Mode, log).Run(ctx, cfg.Server.Addr)
}

// fixture is the -seed file layout.
type fixture struct {
	Assets []catalog.AssetRecord `json:"assets"`
	Quotes []pricing.Quote       `json:"quotes"`
}

func seed(ctx context.Context, db *postgres.PostgresClient, path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := db.UpsertAssets(ctx, f.Assets); err != nil {
		return nil, err
	}
	for _, q := range f.Quotes {
		if err := db.InsertQuote(ctx, q); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
