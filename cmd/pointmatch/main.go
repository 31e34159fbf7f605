package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"pointsetmatch/internal/logging"
	"pointsetmatch/internal/models"
	"pointsetmatch/pkg/config"
	"pointsetmatch/pkg/markups"
	"pointsetmatch/pkg/matching"
)

type options struct {
	sourcePath  string
	targetPath  string
	configPath  string
	outSource   string
	outTarget   string
	verbosity   int
	writeConfig string
}

func main() {
	// Parse command line arguments
	var opts options
	flag.StringVar(&opts.sourcePath, "source", "", "Source point list (.fcsv or x,y,z CSV)")
	flag.StringVar(&opts.targetPath, "target", "", "Target point list (.fcsv or x,y,z CSV)")
	flag.StringVar(&opts.configPath, "config", "pointmatch.yaml", "Configuration file (defaults are used if missing)")
	flag.StringVar(&opts.outSource, "out-source", "", "Write matched source points to this .fcsv file")
	flag.StringVar(&opts.outTarget, "out-target", "", "Write matched target points to this .fcsv file")
	flag.IntVar(&opts.verbosity, "v", -1, "Log verbosity (overrides the configuration file)")
	flag.StringVar(&opts.writeConfig, "write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	if opts.writeConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", opts.writeConfig)
		return
	}

	// Validate inputs
	if opts.sourcePath == "" || opts.targetPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.verbosity >= 0 {
		cfg.Logging.Verbosity = opts.verbosity
	}

	log, flush, err := logging.New(logging.Options{
		Verbosity:   cfg.Logging.Verbosity,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	if err := run(log, cfg, opts, os.Stdout); err != nil {
		log.Error(err, "point matching failed")
		flush()
		os.Exit(1)
	}
}

// run loads both point lists, matches them and prints the report
func run(log logr.Logger, cfg *config.Config, opts options, out io.Writer) error {
	cfg.Validate(log)

	source, err := loadPoints(opts.sourcePath, cfg.Input.SelectedOnly)
	if err != nil {
		return err
	}
	target, err := loadPoints(opts.targetPath, cfg.Input.SelectedOnly)
	if err != nil {
		return err
	}
	log.Info("point lists loaded", "source", source.Name, "sourcePoints", len(source.Fiducials),
		"target", target.Name, "targetPoints", len(target.Fiducials))

	matcher := matching.NewMatcher(log)
	cfg.Apply(matcher)
	matcher.SetInputSourcePoints(source.Positions())
	matcher.SetInputTargetPoints(target.Positions())

	startTime := time.Now()
	result, err := matcher.Result()
	if err != nil {
		return err
	}
	log.Info("matching completed", "duration", time.Since(startTime), "distanceError", result.DistanceError,
		"withinTolerance", result.WithinTolerance, "ambiguous", result.Ambiguous)

	rep := newReport(source, target, result, cfg.Output.IncludeTransform)
	if cfg.Output.Format == config.FormatText {
		err = rep.writeText(out)
	} else {
		err = rep.writeYAML(out)
	}
	if err != nil {
		return err
	}

	if opts.outSource != "" {
		if err := markups.WriteFile(opts.outSource, matchedList(source, result.SourceIndices, "_matched")); err != nil {
			return err
		}
	}
	if opts.outTarget != "" {
		if err := markups.WriteFile(opts.outTarget, matchedList(target, result.TargetIndices, "_matched")); err != nil {
			return err
		}
	}
	return nil
}

// loadPoints reads a list, converts it to RAS and optionally drops
// unselected points
func loadPoints(path string, selectedOnly bool) (models.FiducialList, error) {
	list, err := markups.ReadFile(path)
	if err != nil {
		return list, err
	}
	list.ToRAS()
	if selectedOnly {
		kept := list.Fiducials[:0]
		for _, f := range list.Fiducials {
			if f.Selected {
				kept = append(kept, f)
			}
		}
		list.Fiducials = kept
	}
	return list, nil
}

// matchedList picks the fiducials at indices, in order
func matchedList(list models.FiducialList, indices []int, suffix string) models.FiducialList {
	out := models.FiducialList{Name: list.Name + suffix, CoordinateSystem: list.CoordinateSystem}
	for _, i := range indices {
		out.Fiducials = append(out.Fiducials, list.Fiducials[i])
	}
	return out
}
