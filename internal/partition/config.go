package partition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"rawmatqc/pkg/domain"
)

// DefaultRanges are used when no partition file is configured.
func DefaultRanges() []Range {
	return []Range{
		{Name: "p2015_2019", Lower: domain.MustParseDate("2015-01-01"), Upper: domain.MustParseDate("2019-12-31")},
		{Name: "p2020_2024", Lower: domain.MustParseDate("2020-01-01"), Upper: domain.MustParseDate("2024-12-31")},
		{Name: "p2025_2030", Lower: domain.MustParseDate("2025-01-01"), Upper: domain.MustParseDate("2030-12-31")},
	}
}

// DefaultRouter returns a router over DefaultRanges.
func DefaultRouter() *Router {
	r, err := NewRouter(DefaultRanges())
	if err != nil {
		panic(fmt.Sprintf("partition: default ranges invalid: %v", err))
	}
	return r
}

type fileRange struct {
	Name  string `yaml:"name"`
	Lower string `yaml:"lower"`
	Upper string `yaml:"upper"`
}

type fileConfig struct {
	Partitions []fileRange `yaml:"partitions"`
}

// Decode reads a YAML partition document:
//
//	partitions:
//	  - name: p2020_2024
//	    lower: 2020-01-01
//	    upper: 2024-12-31
func Decode(r io.Reader) (*Router, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ConfigurationError{Reason: "partition file is empty"}
		}
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("decode partition file: %v", err)}
	}
	ranges := make([]Range, 0, len(cfg.Partitions))
	for _, fr := range cfg.Partitions {
		lower, err := domain.ParseDate(fr.Lower)
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q lower bound: %v", fr.Name, err)}
		}
		upper, err := domain.ParseDate(fr.Upper)
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q upper bound: %v", fr.Name, err)}
		}
		ranges = append(ranges, Range{Name: fr.Name, Lower: lower, Upper: upper})
	}
	return NewRouter(ranges)
}

// Load builds a router from the YAML file at path, or from DefaultRanges
// when path is empty.
func Load(path string) (*Router, error) {
	if path == "" {
		return NewRouter(DefaultRanges())
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("read partition file: %v", err)}
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes the router's ranges in the format Decode accepts.
func Encode(w io.Writer, r *Router) error {
	cfg := fileConfig{}
	for _, rg := range r.Ranges() {
		cfg.Partitions = append(cfg.Partitions, fileRange{Name: rg.Name, Lower: rg.Lower.String(), Upper: rg.Upper.String()})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode partitions: %w", err)
	}
	return enc.Close()
}
