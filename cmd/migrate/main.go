package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	pg "child-development-records/internal/adapters/storage/postgres"
	"child-development-records/internal/config"

	"github.com/golang-migrate/migrate/v4"
)

func main() {
	var (
		command = flag.String("command", "", "up, down, version, force")
		steps   = flag.Int("steps", 0, "pasos para up/down")
		version = flag.Int("version", 0, "versión para force")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: go run ./cmd/migrate -command [up|down|version|force] [-steps N] [-version N]")
		os.Exit(1)
	}

	cfg := config.NewConfig()
	if cfg.Database.DSN == "" {
		log.Fatal("DB_DSN is required")
	}

	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	// Close del migrator cierra también db.
	m, err := pg.NewMigrator(db)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close migrator: %v", errors.Join(srcErr, dbErr))
		}
	}()

	switch *command {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
		report(err, "migrations applied", "no migrations to apply")

	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		report(m.Steps(-n), "migrations rolled back", "no migrations to roll back")

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("current version: %d (dirty=%t)\n", v, dirty)

	case "force":
		if *version <= 0 {
			log.Fatal("-version is required for force")
		}
		if err := m.Force(*version); err != nil {
			log.Fatalf("force: %v", err)
		}
		fmt.Printf("version forced to %d\n", *version)

	default:
		log.Fatalf("unknown command: %s", *command)
	}
}

func report(err error, ok, noChange string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println(noChange)
	case err != nil:
		log.Fatalf("migration failed: %v", err)
	default:
		fmt.Println(ok)
	}
}
