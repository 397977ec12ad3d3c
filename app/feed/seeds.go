package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadSeeds reads every *.yml subscription file in dir. A missing directory
// is not an error; the application simply starts with no seeds.
func LoadSeeds(dir string) ([]Seed, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find seed files: %w", err)
	}
	sort.Strings(files)

	var seeds []Seed
	for _, file := range files {
		seed, err := parseSeed(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		seeds = append(seeds, *seed)
	}
	return seeds, nil
}

func parseSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fileName := filepath.Base(path)
	seed.Name = fileName[:len(fileName)-len(".yml")]

	if seed.URL == "" {
		return nil, fmt.Errorf("feed URL is required")
	}
	if seed.UpdateInterval == 0 {
		seed.UpdateInterval = 3600
	}
	if seed.UpdateInterval < 0 {
		return nil, fmt.Errorf("update interval must be non-negative")
	}

	return &seed, nil
}
