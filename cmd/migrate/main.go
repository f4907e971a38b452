package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/Rrens/crm/internal/config"
	"github.com/Rrens/crm/internal/repository/postgres"
	"github.com/Rrens/crm/internal/repository/sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|steps N|version|force V]")
	}
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	m, closeFn, err := newMigrate(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize migrations")
	}
	defer closeFn()

	if err := run(m, command, flag.Arg(1)); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No changes")
			return
		}
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}

	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Migration complete")
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, func(), error) {
	if cfg.Database.Driver == config.DriverSQLite {
		log.Info().Str("path", cfg.Database.SQLitePath).Msg("Opening SQLite database")
		db, err := sqlite.Open(context.Background(), cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		m, err := db.NewMigrate()
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return m, func() { m.Close() }, nil
	}

	log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("Connecting to PostgreSQL")
	m, err := postgres.NewMigrate(cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	return m, func() { m.Close() }, nil
}

func run(m *migrate.Migrate, command, arg string) error {
	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid step count %q", arg)
		}
		return m.Steps(n)
	case "force":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid version %q", arg)
		}
		return m.Force(v)
	case "version":
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
