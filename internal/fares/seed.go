package fares

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the on-disk layout of reference fare data.
type Seed struct {
	Cities []Summary `yaml:"cities"`
}

// ParseSeed decodes seed YAML. Every entry must name its city.
func ParseSeed(r io.Reader) ([]Summary, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("decoding fare seed: %w", err)
	}

	for i, s := range seed.Cities {
		if CityKey(s.City) == "" {
			return nil, fmt.Errorf("fare seed entry %d: missing city", i)
		}
	}
	return seed.Cities, nil
}

// LoadSeed reads seed YAML from path and saves every city into repo.
// It returns the number of cities stored.
func LoadSeed(ctx context.Context, path string, repo Repository) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening fare seed: %w", err)
	}
	defer f.Close()

	summaries, err := ParseSeed(f)
	if err != nil {
		return 0, err
	}
	for i := range summaries {
		if err := repo.Save(ctx, &summaries[i]); err != nil {
			return i, fmt.Errorf("saving fare seed for %s: %w", summaries[i].City, err)
		}
	}
	return len(summaries), nil
}
