package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/bodymeasure/internal/storage/sqlite"
)

func runsCommand(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: runs list|show|delete [options]")
	}
	sub, args := args[0], args[1:]

	fs := flag.NewFlagSet("runs "+sub, flag.ContinueOnError)
	dbPath := fs.String("db", "bodymeasure.db", "SQLite database")
	limit := fs.Int("limit", 20, "Maximum runs to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlite.NewRunStore(db.DB)

	switch sub {
	case "list":
		runs, err := store.List(*limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tCREATED\tSTATUS\tSOURCE\tQUALITY\tCONFIDENCE")
		for _, r := range runs {
			quality, confidence := r.MeshQuality, r.Confidence
			if r.Status == sqlite.StatusFailed {
				quality, confidence = r.FailedStage, r.FailureKind
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.RunID, r.CreatedTime().UTC().Format(time.RFC3339),
				r.Status, r.Source, quality, confidence)
		}
		return tw.Flush()

	case "show", "delete":
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: runs %s [-db file] <run-id>", sub)
		}
		id := fs.Arg(0)
		if sub == "delete" {
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "deleted %s\n", id)
			return nil
		}
		r, err := store.Get(id)
		if err != nil {
			return err
		}
		return showRun(stdout, r)

	default:
		return fmt.Errorf("unknown runs subcommand %q", sub)
	}
}

func showRun(w io.Writer, r *sqlite.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Created\t%s\n", r.CreatedTime().UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "Source\t%s\n", r.Source)
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	fmt.Fprintf(tw, "Version\t%s (%s)\n", r.AppVersion, r.GitSHA)
	if r.Status == sqlite.StatusFailed {
		fmt.Fprintf(tw, "Failed stage\t%s\n", r.FailedStage)
		fmt.Fprintf(tw, "Failure kind\t%s\n", r.FailureKind)
		fmt.Fprintf(tw, "Error\t%s\n", r.Error)
		return tw.Flush()
	}
	if r.ReferenceHeightCm != nil {
		fmt.Fprintf(tw, "Reference height\t%.1f cm\n", *r.ReferenceHeightCm)
	}
	fmt.Fprintf(tw, "Calibration factor\t%.4f (applied=%t)\n", r.CalibrationFactor, r.CalibrationApplied)
	fmt.Fprintf(tw, "Mesh\t%d vertices, %d faces, watertight=%t\n", r.Vertices, r.Faces, r.Watertight)
	fmt.Fprintf(tw, "Quality\t%s / %s\n", r.MeshQuality, r.Confidence)
	for _, m := range r.Measurements {
		fmt.Fprintf(tw, "%s\t%.2f %s\n", m.Name.Label(), m.Value, m.Unit)
	}
	return tw.Flush()
}
