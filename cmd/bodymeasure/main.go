package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/bodymeasure/internal/version"
)

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current())
		return
	}
	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "run":
		err = runCommand(args, os.Stdout)
	case "runs":
		err = runsCommand(args, os.Stdout)
	case "migrate":
		err = migrateCommand(args, os.Stdout)
	case "version":
		fmt.Println(version.Current())
	case "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `bodymeasure - body measurements from a short video of a standing person

Usage: bodymeasure <command> [options]

Commands:
  run        Run the measurement pipeline on a video or landmark recording
  runs       List, show or delete stored runs (runs list|show|delete)
  migrate    Manage the run database schema (migrate up|down|version)
  version    Show version
  help       Show this help message

Run flags:
  -landmarks <file>    Landmark recording (JSON); also the estimator for -video
  -video <file>        Video to sample frames from
  -height-cm <n>       Reference height of the subject in centimetres
  -config <file>       Tuning config (JSON)
  -db <file>           Store the run in this SQLite database
  -out-dir <dir>       Directory for exported artifacts (default .)
  -export-mesh <fmt>   Write the refined mesh as ply, obj or stl
  -json                Write the full result bundle as JSON
  -html                Write an HTML chart page
  -plot                Write a PNG of the circumference cross-sections
  -log-level <level>   quiet, ops, diag or trace (default ops)

Examples:
  bodymeasure run -landmarks subject.json -height-cm 178
  bodymeasure run -video subject.mp4 -landmarks subject.json -db runs.db -html
  bodymeasure runs list -db runs.db`)
}
