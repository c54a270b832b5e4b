package race

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/Trip2025/girobot/internal/report"
)

//go:embed fallback.yaml
var DefaultFallbackYAML []byte

// ErrEmptyFallbackChain is returned when no fallback record is available.
var ErrEmptyFallbackChain = errors.New("fallback chain is empty")

type link struct {
	stage  int
	record report.FactRecord
}

// FallbackChain holds last-known-good records keyed by stage, in ascending
// stage order. Records are only ever added, never changed.
type FallbackChain struct {
	links []link
}

// Add appends the record for stage. Stages must be added in strictly
// increasing order. A blank Stage on rec is set from stage.
func (c *FallbackChain) Add(stage int, rec report.FactRecord) error {
	if stage < 1 {
		return fmt.Errorf("fallback stage %d is not positive", stage)
	}
	if n := len(c.links); n > 0 && stage <= c.links[n-1].stage {
		return fmt.Errorf("fallback stage %d added after stage %d", stage, c.links[n-1].stage)
	}
	if strings.TrimSpace(rec.Stage) == "" {
		rec.Stage = strconv.Itoa(stage)
	}
	c.links = append(c.links, link{stage: stage, record: rec})
	return nil
}

// Len returns the number of records in the chain.
func (c *FallbackChain) Len() int { return len(c.links) }

// Stages returns the keys in ascending order.
func (c *FallbackChain) Stages() []int {
	out := make([]int, len(c.links))
	for i, l := range c.links {
		out[i] = l.stage
	}
	return out
}

// Select returns the record to report for stage. An exact key is returned
// unchanged. Otherwise the record of the greatest earlier stage is copied
// with its stage relabelled and its headline marked stale. When every key
// is later than stage the earliest record is used the same way.
func (c *FallbackChain) Select(stage int) (report.FactRecord, error) {
	if len(c.links) == 0 {
		return report.FactRecord{}, ErrEmptyFallbackChain
	}

	i := sort.Search(len(c.links), func(i int) bool { return c.links[i].stage > stage })
	var l link
	switch {
	case i > 0 && c.links[i-1].stage == stage:
		return c.links[i-1].record, nil
	case i > 0:
		l = c.links[i-1]
	default:
		l = c.links[0]
	}

	rec := l.record
	rec.Stage = strconv.Itoa(stage)
	rec.Headline = report.StaleHeadline(stage)
	return rec, nil
}

type fallbackFile struct {
	Stages []fallbackEntry `yaml:"stages" json:"stages"`
}

type fallbackEntry struct {
	Stage  int               `yaml:"stage" json:"stage"`
	Record report.FactRecord `yaml:"record" json:"record"`
}

// LoadFallbackChain reads a chain from path. Files ending in .json or
// .json5 are decoded as JSON5; anything else as YAML. An empty path loads
// the built-in chain.
func LoadFallbackChain(path string) (*FallbackChain, error) {
	if path == "" {
		return ParseFallbackChain(DefaultFallbackYAML, "yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fallback file: %w", err)
	}
	format := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		format = "json5"
	}
	chain, err := ParseFallbackChain(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chain, nil
}

// ParseFallbackChain decodes a chain in format "yaml" or "json5".
func ParseFallbackChain(data []byte, format string) (*FallbackChain, error) {
	var f fallbackFile
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	case "json5":
		err = json5.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unknown fallback format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing fallback data: %w", err)
	}

	sort.SliceStable(f.Stages, func(i, j int) bool { return f.Stages[i].Stage < f.Stages[j].Stage })

	chain := &FallbackChain{}
	for _, e := range f.Stages {
		if err := chain.Add(e.Stage, e.Record); err != nil {
			return nil, err
		}
	}
	if chain.Len() == 0 {
		return nil, ErrEmptyFallbackChain
	}
	return chain, nil
}
