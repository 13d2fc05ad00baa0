package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/bodymeasure/internal/storage/sqlite"
)

func migrateCommand(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: migrate up|down|version [-db file]")
	}
	sub, args := args[0], args[1:]

	fs := flag.NewFlagSet("migrate "+sub, flag.ContinueOnError)
	dbPath := fs.String("db", "bodymeasure.db", "SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch sub {
	case "up":
		if err := db.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate subcommand %q", sub)
	}

	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
