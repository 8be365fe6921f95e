// Package fieldgen generates synthetic runner fields for load tests and
// rehearsals: plausible pace curves across a spread of runner archetypes,
// written in the same CSV shape the engine loads.
package fieldgen

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/pkg/logger"
)

const randomFloatDivisor = 1000000

// Archetype cases. The mix is weighted towards steady runners, like a real
// mass-participation field.
const (
	caseSteady        = 0
	caseFader         = 1
	caseNegativeSplit = 2
	caseElite         = 3
	archetypeCount    = 4
)

// Pace shape multipliers applied to the back half of a curve.
const (
	faderSlowdown      = 1.18
	negativeSplitGain  = 0.92
	eliteBasePaceShare = 0.72 // fraction of the event's base pace
)

// EventSpec describes one synthetic event.
type EventSpec struct {
	ID                model.EventID
	DistanceKm        float64
	Runners           int
	BasePaceSecPerKm  float64 // median steady pace
	PaceSpreadSec     float64 // +/- applied around the base
	StartWaves        int     // runners are dealt into waves round-robin
	WaveGapSec        int
	CheckpointEveryKm float64
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// Generate builds the field for one event. Bibs are sequential from 1.
func Generate(ctx context.Context, spec EventSpec) ([]model.Runner, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}

	logger.Get().Info(ctx, "generating synthetic field",
		logger.String("event", string(spec.ID)),
		logger.Int("runners", spec.Runners))

	waves := spec.StartWaves
	if waves < 1 {
		waves = 1
	}

	runners := make([]model.Runner, 0, spec.Runners)
	for i := 0; i < spec.Runners; i++ {
		wave := i % waves
		offset := time.Duration(wave*spec.WaveGapSec) * time.Second

		runners = append(runners, model.Runner{
			Bib:         strconv.Itoa(i + 1),
			Event:       spec.ID,
			StartOffset: offset,
			Checkpoints: curve(spec, archetypeFor(i)),
		})
	}
	return runners, nil
}

func validate(spec EventSpec) error {
	switch {
	case spec.ID == "":
		return fmt.Errorf("%w: event id is required", ErrBadSpec)
	case spec.DistanceKm <= 0:
		return fmt.Errorf("%w: distance must be positive", ErrBadSpec)
	case spec.Runners < 1:
		return fmt.Errorf("%w: need at least one runner", ErrBadSpec)
	case spec.BasePaceSecPerKm <= 0:
		return fmt.Errorf("%w: base pace must be positive", ErrBadSpec)
	case spec.PaceSpreadSec < 0 || spec.PaceSpreadSec >= spec.BasePaceSecPerKm:
		return fmt.Errorf("%w: pace spread must be non-negative and below the base pace", ErrBadSpec)
	case spec.CheckpointEveryKm <= 0:
		return fmt.Errorf("%w: checkpoint spacing must be positive", ErrBadSpec)
	case spec.WaveGapSec < 0:
		return fmt.Errorf("%w: wave gap must not be negative", ErrBadSpec)
	}
	return nil
}

// archetypeFor deals archetypes deterministically by position so the mix is
// stable: 1 in 20 elite, then faders and negative-splitters evenly.
func archetypeFor(i int) int {
	if i%20 == 0 {
		return caseElite
	}
	switch i % 5 {
	case 1:
		return caseFader
	case 2:
		return caseNegativeSplit
	default:
		return caseSteady
	}
}

// curve builds a strictly increasing checkpoint curve for one runner.
func curve(spec EventSpec, archetype int) []model.Checkpoint {
	base := spec.BasePaceSecPerKm + (getRandomFloat()*2-1)*spec.PaceSpreadSec
	if archetype == caseElite {
		base = spec.BasePaceSecPerKm * eliteBasePaceShare
	}

	cps := []model.Checkpoint{{DistanceKm: 0, Elapsed: 0}}
	elapsed := 0.0
	for km := spec.CheckpointEveryKm; ; km += spec.CheckpointEveryKm {
		if km > spec.DistanceKm {
			km = spec.DistanceKm
		}
		prev := cps[len(cps)-1].DistanceKm
		pace := base
		if km > spec.DistanceKm/2 {
			switch archetype {
			case caseFader:
				pace = base * faderSlowdown
			case caseNegativeSplit:
				pace = base * negativeSplitGain
			}
		}
		elapsed += (km - prev) * pace
		cps = append(cps, model.Checkpoint{
			DistanceKm: km,
			Elapsed:    time.Duration(elapsed * float64(time.Second)),
		})
		if km == spec.DistanceKm {
			break
		}
	}
	return cps
}

// WriteCSV writes runners in the pace-file shape the engine loads:
//
//	event,bib,start_offset_sec,distance_km,elapsed_sec
func WriteCSV(w io.Writer, runners []model.Runner) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"event", "bib", "start_offset_sec", "distance_km", "elapsed_sec"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range runners {
		offset := strconv.FormatFloat(r.StartOffset.Seconds(), 'f', -1, 64)
		for _, cp := range r.Checkpoints {
			rec := []string{
				string(r.Event),
				r.Bib,
				offset,
				strconv.FormatFloat(cp.DistanceKm, 'f', -1, 64),
				strconv.FormatFloat(cp.Elapsed.Seconds(), 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write row for %s: %w", r.Key(), err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
