package config

import (
	"fmt"
	"os"

	"cloudpico-sensorsim/internal/generator"

	"gopkg.in/yaml.v2"
)

// quantitiesFile is the on-disk layout of QUANTITIES_FILE.
type quantitiesFile struct {
	Quantities []generator.Quantity `yaml:"quantities"`
}

// LoadQuantities reads and validates quantity definitions from a YAML file.
func LoadQuantities(filename string) ([]generator.Quantity, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read quantities %s: %w", filename, err)
	}
	return parseQuantities(data)
}

func parseQuantities(data []byte) ([]generator.Quantity, error) {
	var f quantitiesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse quantities: %w", err)
	}
	if len(f.Quantities) == 0 {
		return nil, fmt.Errorf("quantities file defines no quantities")
	}
	seen := make(map[string]struct{}, len(f.Quantities))
	for _, q := range f.Quantities {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.Name]; dup {
			return nil, fmt.Errorf("duplicate quantity %q", q.Name)
		}
		seen[q.Name] = struct{}{}
	}
	return f.Quantities, nil
}
