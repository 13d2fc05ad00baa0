package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/bodymeasure/internal/config"
	"github.com/banshee-data/bodymeasure/internal/mesh"
	"github.com/banshee-data/bodymeasure/internal/monitoring"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
	"github.com/banshee-data/bodymeasure/internal/pose"
	"github.com/banshee-data/bodymeasure/internal/report"
	"github.com/banshee-data/bodymeasure/internal/security"
	"github.com/banshee-data/bodymeasure/internal/storage/sqlite"
	"github.com/banshee-data/bodymeasure/internal/video"
)

type runOptions struct {
	video      string
	landmarks  string
	heightCm   *float64
	configPath string
	dbPath     string
	outDir     string
	exportMesh string
	json       bool
	html       bool
	plot       bool
	logLevel   string
}

func parseRunFlags(args []string) (*runOptions, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	o := &runOptions{}
	fs.StringVar(&o.video, "video", "", "Video file to sample frames from")
	fs.StringVar(&o.landmarks, "landmarks", "", "Landmark recording (JSON)")
	height := fs.String("height-cm", "", "Reference height in centimetres")
	fs.StringVar(&o.configPath, "config", "", "Tuning config (JSON)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to store the run in")
	fs.StringVar(&o.outDir, "out-dir", ".", "Directory for exported artifacts")
	fs.StringVar(&o.exportMesh, "export-mesh", "", "Mesh export format: ply, obj or stl")
	fs.BoolVar(&o.json, "json", false, "Write the result bundle as JSON")
	fs.BoolVar(&o.html, "html", false, "Write an HTML chart page")
	fs.BoolVar(&o.plot, "plot", false, "Write a PNG of the cross-sections")
	fs.StringVar(&o.logLevel, "log-level", "ops", "quiet, ops, diag or trace")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if o.landmarks == "" {
		if o.video != "" {
			return nil, errors.New("-video needs -landmarks: no built-in pose model is available")
		}
		return nil, errors.New("-landmarks is required")
	}
	if *height != "" {
		h, err := parseHeight(*height)
		if err != nil {
			return nil, err
		}
		o.heightCm = &h
	}
	if o.exportMesh != "" {
		if _, err := mesh.FormatFromPath("mesh." + o.exportMesh); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func parseHeight(s string) (float64, error) {
	h, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid -height-cm %q: %w", s, err)
	}
	if h <= 0 {
		return 0, fmt.Errorf("-height-cm must be positive, got %v", h)
	}
	return h, nil
}

func runCommand(args []string, stdout io.Writer) error {
	o, err := parseRunFlags(args)
	if err != nil {
		return err
	}

	level, err := monitoring.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	lw := monitoring.WritersFor(level, os.Stderr)
	pipeline.SetLogWriters(lw.Ops, lw.Diag, lw.Trace)

	tc := config.EmptyTuningConfig()
	if o.configPath != "" {
		if tc, err = config.LoadTuningConfig(o.configPath); err != nil {
			return err
		}
	}
	cfg, err := pipeline.ConfigFromTuning(tc)
	if err != nil {
		return err
	}

	rec, err := pose.Load(o.landmarks)
	if err != nil {
		return err
	}
	req := pipeline.Request{Frames: rec, Estimator: rec, ReferenceHeightCm: o.heightCm}
	source := o.landmarks
	if o.video != "" {
		vp := video.NewProvider(o.video)
		vp.FilterLowQuality = tc.GetFrameQualityFilter()
		req.Frames = vp
		source = o.video
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, runErr := pipeline.New(cfg).Run(ctx, req)

	if o.dbPath != "" {
		if err := storeRun(o.dbPath, source, o.heightCm, res, runErr); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := report.FullText(stdout, res); err != nil {
		return err
	}
	return writeArtifacts(o, source, res)
}

func storeRun(dbPath, source string, ref *float64, res *pipeline.Result, runErr error) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var run *sqlite.Run
	if runErr != nil {
		run = sqlite.NewFailedRun(source, ref, runErr)
	} else if run, err = sqlite.NewRunFromResult(source, res); err != nil {
		return err
	}
	if err := sqlite.NewRunStore(db.DB).Insert(run); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	monitoring.Logf("stored run %s (%s)", run.RunID, run.Status)
	return nil
}

func writeArtifacts(o *runOptions, source string, res *pipeline.Result) error {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	write := func(name, ext string, fn func(io.Writer) error) error {
		path, err := security.ArtifactPath(o.outDir, name, ext)
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			f.Close()
			os.Remove(path)
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", path)
		return nil
	}

	if o.exportMesh != "" {
		format := mesh.Format(strings.ToLower(o.exportMesh))
		if err := write(stem, string(format), func(w io.Writer) error {
			return mesh.Write(w, res.RefinedMesh, format)
		}); err != nil {
			return err
		}
	}
	if o.json {
		if err := write(stem, "json", func(w io.Writer) error { return report.WriteJSON(w, res) }); err != nil {
			return err
		}
	}
	if o.html {
		if err := write(stem, "html", func(w io.Writer) error { return report.WriteHTML(w, res) }); err != nil {
			return err
		}
	}
	if o.plot {
		// A flat subject has no usable cross-section; that is not fatal.
		if err := write(stem+"_slices", "png", func(w io.Writer) error { return report.WriteSlicePlot(w, res) }); err != nil {
			monitoring.Logf("skipping slice plot: %v", err)
		}
	}
	return nil
}
