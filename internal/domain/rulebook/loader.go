package rulebook

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// fileTable mirrors the YAML shape of one schema's thresholds. Rate
// thresholds are optional as a pair; supplying only one is malformed.
type fileTable struct {
	DensityMax   []float64 `koanf:"density_max"`
	RateWarn     *float64  `koanf:"rate_warn"`
	RateCritical *float64  `koanf:"rate_critical"`
}

type fileRulebook struct {
	Version string               `koanf:"version"`
	Schemas map[string]fileTable `koanf:"schemas"`
}

// LoadFile reads and validates a rulebook YAML file. A missing or malformed
// file is a hard error; nothing is substituted.
func LoadFile(path string) (*Rulebook, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read rulebook %s: %v: %w", path, err, ErrThresholdConfig)
	}

	var raw fileRulebook
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse rulebook %s: %v: %w", path, err, ErrThresholdConfig)
	}
	if raw.Version == "" {
		return nil, fmt.Errorf("rulebook %s has no version: %w", path, ErrThresholdConfig)
	}

	tables := make(map[Schema]Table, len(raw.Schemas))
	for name, ft := range raw.Schemas {
		tbl := Table{DensityMax: ft.DensityMax}
		switch {
		case ft.RateWarn != nil && ft.RateCritical != nil:
			tbl.RatesDefined = true
			tbl.RateWarn = *ft.RateWarn
			tbl.RateCritical = *ft.RateCritical
		case ft.RateWarn != nil || ft.RateCritical != nil:
			return nil, fmt.Errorf("rulebook %s schema %q: rate_warn and rate_critical must be set together: %w",
				path, name, ErrThresholdConfig)
		}
		tables[Schema(name)] = tbl
	}
	return New(raw.Version, tables)
}
