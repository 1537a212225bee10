package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "database connection URL")
		path        = flag.String("path", "migrations", "path to migration files")
		command     = flag.String("command", "up", "migration command: up, down, version, force")
		forceTo     = flag.Int("force-version", -1, "version to force when command is force")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("database URL required: set -database or DATABASE_URL")
	}

	m, err := migrate.New("file://"+*path, *databaseURL)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch *command {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Println("no migrations to apply")
				return
			}
			log.Fatalf("migration up failed: %v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := m.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Println("no migrations to revert")
				return
			}
			log.Fatalf("migration down failed: %v", err)
		}
		fmt.Println("reverted one migration")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied yet")
				return
			}
			log.Fatalf("failed to read version: %v", err)
		}
		fmt.Printf("version: %d dirty: %s\n", version, strconv.FormatBool(dirty))
	case "force":
		if *forceTo < 0 {
			log.Fatal("force requires -force-version")
		}
		if err := m.Force(*forceTo); err != nil {
			log.Fatalf("force failed: %v", err)
		}
		fmt.Printf("forced version to %d\n", *forceTo)
	default:
		log.Fatalf("unknown command %q (want up, down, version, force)", *command)
	}
}
