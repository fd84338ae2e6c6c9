package shift

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yml
var defaultShiftsYAML []byte

type shiftCatalog struct {
	Shifts []Shift `yaml:"shifts"`
}

// DefaultShifts returns the shift catalogue seeded into a fresh database.
func DefaultShifts() ([]Shift, error) {
	return ParseShifts(defaultShiftsYAML)
}

func ParseShifts(data []byte) ([]Shift, error) {
	var catalog shiftCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse shift catalogue: %w", err)
	}
	for i := range catalog.Shifts {
		s := &catalog.Shifts[i]
		s.IsActive = true
		for _, w := range []Window{s.CheckIn, s.CheckOut} {
			if _, err := parseClock(w.Start); err != nil {
				return nil, fmt.Errorf("shift %q: %w", s.Name, err)
			}
			if _, err := parseClock(w.End); err != nil {
				return nil, fmt.Errorf("shift %q: %w", s.Name, err)
			}
		}
	}
	return catalog.Shifts, nil
}
