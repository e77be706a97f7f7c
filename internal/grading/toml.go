package grading

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrNoCriteria            = errors.New("criteria list is empty")
	ErrCriterionNameRequired = errors.New("criterion name is required")
	ErrCriterionMaxPoints    = errors.New("criterion max points must be positive")
	ErrInvalidTOML           = errors.New("failed to unmarshal criteria document")
)

// ValidateCriteria checks that a criteria set is usable for grading: at
// least one entry, every entry named, every weight positive.
func ValidateCriteria(criteria []Criterion) error {
	if len(criteria) == 0 {
		return ErrNoCriteria
	}
	for i, c := range criteria {
		if c.Name == "" {
			return fmt.Errorf("criteria entry %d: %w", i+1, ErrCriterionNameRequired)
		}
		if c.MaxPoints <= 0 {
			return fmt.Errorf("criteria entry %d (%s): %w", i+1, c.Name, ErrCriterionMaxPoints)
		}
	}
	return nil
}

// ParseCriteriaTOML decodes a criteria set from a TOML document with one
// [[criteria]] table per criterion:
//
//	[[criteria]]
//	name = "Code Correctness"
//	max_points = 40.0
//	description = "Code runs without errors"
//	rubric = ["Code executes without syntax errors"]
func ParseCriteriaTOML(data []byte) ([]Criterion, error) {
	var file struct {
		Criteria []Criterion `toml:"criteria"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	if err := ValidateCriteria(file.Criteria); err != nil {
		return nil, err
	}
	return file.Criteria, nil
}

// LoadCriteriaFile reads a criteria set from a TOML file on disk.
func LoadCriteriaFile(path string) ([]Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria file: %w", err)
	}
	return ParseCriteriaTOML(data)
}
