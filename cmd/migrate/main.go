package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/migrations"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	down := flag.Bool("down", false, "roll back the most recent migration")
	version := flag.Bool("version", false, "print the current schema version and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("open embedded migrations", "error", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.Database.URL)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			logger.Error("read version", "error", err)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return
	case *down:
		err = m.Steps(-1)
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already up to date")
		return
	}
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete")
}
