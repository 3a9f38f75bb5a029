// Package profile holds the immutable growth configuration shared by every
// graph of a simulation run.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chazu/tendril/pkg/scene"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid growth profile")

// Profile configures how vines grow.
type Profile struct {
	StepDistance float64 `yaml:"step_distance"`

	PrimaryWeight  float64 `yaml:"primary_weight"`
	RandomWeight   float64 `yaml:"random_weight"`
	GravityWeight  float64 `yaml:"gravity_weight"`
	AdhesionWeight float64 `yaml:"adhesion_weight"`

	MinLength      float64 `yaml:"min_length"`
	MaxLength      float64 `yaml:"max_length"`
	MaxFloatLength float64 `yaml:"max_float_length"`

	BranchingProbability float64 `yaml:"branching_probability"`
	MaxBranchesTotal     int     `yaml:"max_branches_total"`

	MaxAdhesionDistance float64      `yaml:"max_adhesion_distance"`
	CollisionMask       scene.Filter `yaml:"collision_mask"`

	// Mesh generation.
	BranchRadius     float64 `yaml:"branch_radius"`
	MeshDuringGrowth bool    `yaml:"mesh_during_growth"`
}

// Default returns the stock ivy profile.
func Default() Profile {
	return Profile{
		StepDistance:         0.1,
		PrimaryWeight:        0.5,
		RandomWeight:         0.2,
		GravityWeight:        3,
		AdhesionWeight:       0.5,
		MinLength:            1,
		MaxLength:            6,
		MaxFloatLength:       1,
		BranchingProbability: 0.25,
		MaxBranchesTotal:     64,
		MaxAdhesionDistance:  1,
		CollisionMask:        scene.FilterAll,
		BranchRadius:         0.05,
	}
}

// Load reads a YAML profile. Keys missing from the file keep their Default
// values.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile. Unknown keys are rejected.
func Parse(data []byte) (Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// FromValues builds a profile from YAML key/value pairs, as produced by a
// scene script. Missing keys keep their Default values.
func FromValues(values map[string]any) (Profile, error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return Profile{}, fmt.Errorf("encode profile values: %w", err)
	}
	return Parse(data)
}

// Marshal encodes p as YAML.
func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate reports the first problem found with p.
func (p Profile) Validate() error {
	scalars := []struct {
		name     string
		value    float64
		positive bool
	}{
		{"step_distance", p.StepDistance, true},
		{"primary_weight", p.PrimaryWeight, false},
		{"random_weight", p.RandomWeight, false},
		{"gravity_weight", p.GravityWeight, false},
		{"adhesion_weight", p.AdhesionWeight, false},
		{"min_length", p.MinLength, false},
		{"max_length", p.MaxLength, false},
		{"max_float_length", p.MaxFloatLength, true},
		{"branching_probability", p.BranchingProbability, false},
		{"max_adhesion_distance", p.MaxAdhesionDistance, true},
		{"branch_radius", p.BranchRadius, false},
	}
	for _, s := range scalars {
		if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalid, s.name)
		}
		if s.value < 0 {
			return fmt.Errorf("%w: %s is %g, must not be negative", ErrInvalid, s.name, s.value)
		}
		if s.positive && s.value == 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, s.name)
		}
	}
	if p.MinLength > p.MaxLength {
		return fmt.Errorf("%w: min_length %g exceeds max_length %g", ErrInvalid, p.MinLength, p.MaxLength)
	}
	if p.BranchingProbability > 1 {
		return fmt.Errorf("%w: branching_probability %g exceeds 1", ErrInvalid, p.BranchingProbability)
	}
	if p.MaxBranchesTotal < 1 {
		return fmt.Errorf("%w: max_branches_total must be at least 1", ErrInvalid)
	}
	return nil
}
