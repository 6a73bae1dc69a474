// Command import-pubs loads pubs from a KML export into the database.
//
//	import-pubs [-env .env.local] [-dry-run] pubs.kml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain/importer"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain/pubs"
	database "github.com/FACorreiaa/go-pubcrawl/internal/db"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading configuration")
	dryRun := flag.Bool("dry-run", false, "parse the file and report without writing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file.kml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, dryRun bool) error {
	log, err := logger.New("info", "console", zap.String("cmd", "import-pubs"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	res, err := importer.ParseKML(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	for _, s := range res.Skipped {
		log.Warn("Skipping placemark", zap.String("name", s.Name), zap.String("reason", s.Reason))
	}
	log.Info("Parsed KML", zap.Int("pubs", len(res.Pubs)), zap.Int("skipped", len(res.Skipped)))
	if dryRun || len(res.Pubs) == 0 {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	dbCfg, err := database.NewDatabaseConfig(cfg, log)
	if err != nil {
		return errors.Wrap(err, "building database config")
	}
	pool, err := database.Init(ctx, dbCfg, log)
	if err != nil {
		return errors.Wrap(err, "connecting to database")
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, log) {
		return errors.New("database is not reachable")
	}
	if err := database.RunMigrations(dbCfg.ConnectionURL, log); err != nil {
		return errors.Wrap(err, "running migrations")
	}

	n, err := pubs.NewRepository(pool, log).ImportPubs(ctx, res.Pubs)
	if err != nil {
		return errors.Wrap(err, "inserting pubs")
	}
	log.Info("Import complete", zap.Int64("inserted", n))
	return nil
}
