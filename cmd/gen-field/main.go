package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/internal/fieldgen"
	"github.com/raceops/courseflow/pkg/logger"
)

// Default generation constants.
const (
	defaultRunners    = 5000
	defaultDistanceKm = 21.1
	defaultBasePace   = 330.0
	defaultSpread     = 60.0
	defaultWaves      = 4
	defaultWaveGapSec = 120
	defaultCheckpoint = 5.0
)

func main() {
	var (
		event      = flag.String("event", "half", "Event ID for the generated field")
		runners    = flag.Int("runners", defaultRunners, "Number of runners to generate")
		distanceKm = flag.Float64("distance", defaultDistanceKm, "Event distance in kilometres")
		basePace   = flag.Float64("pace", defaultBasePace, "Median pace in seconds per kilometre")
		spread     = flag.Float64("spread", defaultSpread, "Pace spread in seconds per kilometre")
		waves      = flag.Int("waves", defaultWaves, "Number of start waves")
		waveGapSec = flag.Int("wave-gap", defaultWaveGapSec, "Gap between waves in seconds")
		checkpoint = flag.Float64("checkpoint", defaultCheckpoint, "Checkpoint spacing in kilometres")
		outputFile = flag.String("output", "-", "Output CSV file, - for stdout")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	log := logger.Get()

	spec := fieldgen.EventSpec{
		ID:                model.EventID(strings.TrimSpace(*event)),
		DistanceKm:        *distanceKm,
		Runners:           *runners,
		BasePaceSecPerKm:  *basePace,
		PaceSpreadSec:     *spread,
		StartWaves:        *waves,
		WaveGapSec:        *waveGapSec,
		CheckpointEveryKm: *checkpoint,
	}

	field, err := fieldgen.Generate(ctx, spec)
	if err != nil {
		log.Fatal(ctx, "field generation failed", logger.Error(err))
	}

	out := os.Stdout
	if *outputFile != "-" {
		f, err := os.Create(*outputFile)
		if err != nil {
			log.Fatal(ctx, "creating output file failed", logger.Error(err))
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := fieldgen.WriteCSV(out, field); err != nil {
		log.Fatal(ctx, "writing field CSV failed", logger.Error(err))
	}

	log.Info(ctx, "field written",
		logger.String("event", *event),
		logger.Int("runners", *runners),
		logger.String("output", *outputFile))
}

func showHelp() {
	os.Stdout.WriteString(`Courseflow Field Generator
==========================

Generates a synthetic runner field as a pace CSV the engine can load.

Usage:
  go run cmd/gen-field/main.go [options]

Options:
  -event string
        Event ID for the generated field (default "half")
  -runners int
        Number of runners to generate (default 5000)
  -distance float
        Event distance in kilometres (default 21.1)
  -pace float
        Median pace in seconds per kilometre (default 330)
  -spread float
        Pace spread in seconds per kilometre (default 60)
  -waves int
        Number of start waves (default 4)
  -wave-gap int
        Gap between waves in seconds (default 120)
  -checkpoint float
        Checkpoint spacing in kilometres (default 5)
  -output string
        Output CSV file, - for stdout (default "-")
  -help
        Show this help message

Examples:
  # A 5000-runner half-marathon field on stdout
  go run cmd/gen-field/main.go

  # A 10k field to a file
  go run cmd/gen-field/main.go -event 10k -distance 10 -pace 290 -runners 3000 -output 10k.csv
`)
}
