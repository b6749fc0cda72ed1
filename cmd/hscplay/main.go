package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/QEStudios/HSCReplayer/hsc"
	"github.com/QEStudios/HSCReplayer/opl"
	"github.com/QEStudios/HSCReplayer/player"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"
	"github.com/sqweek/dialog"
)

var logger *log.Logger

// Ten minutes at the default tick rate.
const defaultMaxTicks = 10 * 60 * 182 / 10

func main() {
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime)

	// Get the current working directory.
	cwd, err := os.Getwd()
	if err != nil {
		logger.Fatalf("failed to get current working directory: %v", err)
	}

	var (
		maxTicks  int
		loops     int
		imfRate   float64
		tickRate  float64
		imfType1  bool
		writeYAML bool
		dump      bool
		verbose   bool
	)
	pflag.IntVarP(&maxTicks, "ticks", "t", defaultMaxTicks, "maximum number of ticks to render")
	pflag.IntVarP(&loops, "loops", "l", 1, "stop after the song ended this many times")
	pflag.Float64VarP(&imfRate, "rate", "r", opl.DefaultIMFRate, "IMF timer rate in Hz")
	pflag.Float64Var(&tickRate, "tick-rate", opl.DefaultTickRate, "player tick rate in Hz")
	pflag.BoolVar(&imfType1, "type1", false, "write a type-1 IMF file (with length header)")
	pflag.BoolVarP(&writeYAML, "yaml", "y", false, "also export the song as YAML")
	pflag.BoolVarP(&dump, "dump", "d", false, "dump the parsed song")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "print every captured register write")
	pflag.Parse()

	if loops < 1 {
		logger.Fatalf("--loops must be at least 1, got %d", loops)
	}

	// Get the path of the HSC song.
	path, err := choosePath(cwd, pflag.Args())
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			logger.Printf("User cancelled the file dialog")
			os.Exit(1)
		}
		logger.Fatalf("failed to determine file path: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Fatalf("error opening file: %v", err)
	}
	defer file.Close()

	p := hsc.NewParser(file, logger)
	song, err := p.Parse()
	if err != nil {
		logger.Fatalf("parse error: %v", err)
	}

	fmt.Println(song)
	if dump {
		spew.Dump(song)
	}

	if writeYAML {
		out, err := song.ExportYAML()
		if err != nil {
			logger.Fatalf("export error: %v", err)
		}
		if err := os.WriteFile(outputPath(path, ".yml"), out, 0o644); err != nil {
			logger.Fatalf("Error writing YAML file: %v", err)
		}
	}

	rec, ticks := render(song, maxTicks, loops)
	logger.Printf("Rendered %d ticks, %d register writes", ticks, len(rec.Writes()))
	if verbose {
		fmt.Println(rec)
	}

	imf, err := rec.CompileIMF(opl.IMFOptions{Rate: imfRate, TickRate: tickRate, Type1: imfType1})
	if err != nil {
		logger.Fatalf("compile error: %v", err)
	}

	// Write to a .imf file in the same directory as the source file.
	if err := os.WriteFile(outputPath(path, ".imf"), imf, 0o644); err != nil {
		logger.Fatalf("Error writing output file: %v", err)
	}
}

// render plays the song into a recorder until it has ended the requested
// number of times, stopped, or run for maxTicks.
func render(song *hsc.Song, maxTicks int, loops int) (*opl.Recorder, int) {
	rec := &opl.Recorder{}
	pl := player.New(song)
	pl.Start(rec)
	rec.EndTick()

	ticks := 0
	for ticks < maxTicks && !pl.Stopped() {
		ended := pl.Loops()
		pl.Tick(rec)
		ticks++
		if pl.Loops() > ended {
			logger.Printf("Song end reached after %d ticks", ticks)
			if pl.Loops() >= loops {
				pl.Stop()
			}
		}
		if pl.Stopped() {
			pl.Silence(rec)
		}
		rec.EndTick()
	}
	if !pl.Stopped() {
		logger.Printf("Tick limit reached at order %d row %d", pl.Order(), pl.Row())
		pl.Silence(rec)
		rec.EndTick()
	}
	return rec, ticks
}

// outputPath replaces the extension of the source path.
func outputPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// choosePath returns the file path either from the command-line args
// or from an interactive file dialog.
func choosePath(cwd string, args []string) (string, error) {
	// If an argument was passed to the program, use it.
	if len(args) > 0 {
		path := args[0]
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("cannot get absolute path: %w", err)
		}
		if err := validatePath(absPath); err != nil {
			return "", fmt.Errorf("passed argument is not a valid path: %w", err)
		}
		return absPath, nil
	}

	// Otherwise open the file dialog.
	path, err := dialog.
		File().
		Title("Open HSC song").
		Filter("HSC-Tracker songs (*.hsc)", "hsc").
		SetStartDir(cwd).
		Load()
	if err != nil {
		// Propagate the error. Caller will check for dialog.ErrCancelled.
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot get absolute path: %w", err)
	}

	// Check for empty path just in case.
	if absPath == "" {
		return "", dialog.ErrCancelled
	}
	if err := validatePath(absPath); err != nil {
		return "", fmt.Errorf("dialog selection invalid: %w", err)
	}
	return absPath, nil
}

// validatePath performs simple checks to verify if a file exists or not.
func validatePath(p string) error {
	if strings.ToLower(filepath.Ext(p)) != ".hsc" {
		return fmt.Errorf("file must have .hsc extension")
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}
	return nil
}
