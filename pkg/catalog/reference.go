package catalog

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

//go:embed data/*.yaml
var referenceFS embed.FS

// State is one US jurisdiction.
type State struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// NaicsEntry is one selectable healthcare industry classification. Key is the
// display identity (several entries can share a code) and Code is the
// six-digit NAICS code reported to the banking partner.
type NaicsEntry struct {
	Key      string `yaml:"key"`
	Code     string `yaml:"code"`
	Category string `yaml:"category"`
	Label    string `yaml:"label"`
}

type statesDocument struct {
	States []State `yaml:"states"`
}

type naicsDocument struct {
	Codes []NaicsEntry `yaml:"codes"`
}

var (
	loadOnce   sync.Once
	loadErr    error
	usStates   []State
	naicsCodes []NaicsEntry
)

func load() error {
	loadOnce.Do(func() {
		var states statesDocument
		if loadErr = parseReference("data/us_states.yaml", &states); loadErr != nil {
			return
		}
		var naics naicsDocument
		if loadErr = parseReference("data/naics.yaml", &naics); loadErr != nil {
			return
		}
		usStates = states.States
		naicsCodes = naics.Codes
	})
	return loadErr
}

func parseReference(path string, out any) error {
	data, err := referenceFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return nil
}

// States returns the US jurisdictions in catalog order.
func States() []State {
	if err := load(); err != nil {
		panic(err)
	}
	out := make([]State, len(usStates))
	copy(out, usStates)
	return out
}

// StateOptions adapts the state list into dropdown options.
func StateOptions() []fields.Option {
	states := States()
	opts := make([]fields.Option, 0, len(states))
	for _, s := range states {
		opts = append(opts, fields.Option{Value: s.Value, Label: s.Label})
	}
	return opts
}

// NaicsEntries returns the healthcare NAICS catalog.
func NaicsEntries() []NaicsEntry {
	if err := load(); err != nil {
		panic(err)
	}
	out := make([]NaicsEntry, len(naicsCodes))
	copy(out, naicsCodes)
	return out
}

// NaicsOptions adapts the NAICS catalog into dropdown options keyed by the
// display identity.
func NaicsOptions() []fields.Option {
	entries := NaicsEntries()
	opts := make([]fields.Option, 0, len(entries))
	for _, e := range entries {
		opts = append(opts, fields.Option{Value: e.Key, Label: e.Label})
	}
	return opts
}

// ResolveNaicsCode maps a display key to its six-digit NAICS code. Unknown
// keys pass through unchanged so hand-entered codes survive.
func ResolveNaicsCode(key string) string {
	if err := load(); err != nil {
		panic(err)
	}
	for _, e := range naicsCodes {
		if e.Key == key {
			return e.Code
		}
	}
	return key
}
