package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/farklesolver/internal/dice"
)

// DieConfig describes one die. Exactly one of Weights and Probabilities may be
// set; an empty entry is a fair die.
type DieConfig struct {
	Name          string    `yaml:"name,omitempty"`
	Weights       []int64   `yaml:"weights,omitempty"`
	Probabilities []float64 `yaml:"probabilities,omitempty"`
}

// DiceFile is the YAML layout of a dice model:
//
//	dice:
//	  - name: lucky
//	    weights: [2, 1, 1, 1, 1, 1]
//	  - probabilities: [0.2, 0.16, 0.16, 0.16, 0.16, 0.16]
//
// Missing trailing dice are fair.
type DiceFile struct {
	Dice []DieConfig `yaml:"dice"`
}

const probabilityTolerance = 1e-6

// LoadDiceFile reads a dice model from a YAML file.
func LoadDiceFile(path string) ([dice.NumDice]dice.Die, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [dice.NumDice]dice.Die{}, fmt.Errorf("read dice file: %w", err)
	}
	dd, err := ParseDice(data)
	if err != nil {
		return [dice.NumDice]dice.Die{}, fmt.Errorf("%s: %w", path, err)
	}
	return dd, nil
}

// ParseDice decodes a dice model from YAML.
func ParseDice(data []byte) ([dice.NumDice]dice.Die, error) {
	var f DiceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return [dice.NumDice]dice.Die{}, fmt.Errorf("parse dice: %w", err)
	}
	return f.Build()
}

// Build validates the file and returns the six dice.
func (f DiceFile) Build() ([dice.NumDice]dice.Die, error) {
	out := dice.Fair()
	if len(f.Dice) > dice.NumDice {
		return out, fmt.Errorf("%d dice given, at most %d allowed", len(f.Dice), dice.NumDice)
	}
	for i, entry := range f.Dice {
		d, err := entry.Die()
		if err != nil {
			return out, fmt.Errorf("die %d: %w", i+1, err)
		}
		out[i] = d
	}
	return out, nil
}

// Die validates the entry and builds the die.
func (s DieConfig) Die() (dice.Die, error) {
	switch {
	case s.Weights != nil && s.Probabilities != nil:
		return dice.Die{}, errors.New("both weights and probabilities given")
	case s.Weights != nil:
		return dieFromWeights(s.Weights)
	case s.Probabilities != nil:
		return dieFromProbabilities(s.Probabilities)
	}
	return dice.Uniform(), nil
}

func dieFromWeights(w []int64) (dice.Die, error) {
	if len(w) != dice.NumSides {
		return dice.Die{}, fmt.Errorf("%d weights given, want %d", len(w), dice.NumSides)
	}
	var weights [dice.NumSides]uint32
	var sum int64
	for i, v := range w {
		if v < 0 || v > math.MaxUint32 {
			return dice.Die{}, fmt.Errorf("weight %d for face %d out of range", v, i+1)
		}
		weights[i] = uint32(v)
		sum += v
	}
	if sum == 0 {
		return dice.Die{}, errors.New("weights are all zero")
	}
	return dice.FromWeights(weights), nil
}

func dieFromProbabilities(p []float64) (dice.Die, error) {
	if len(p) != dice.NumSides {
		return dice.Die{}, fmt.Errorf("%d probabilities given, want %d", len(p), dice.NumSides)
	}
	var probs [dice.NumSides]float64
	sum := 0.0
	for i, v := range p {
		if v < 0 || math.IsNaN(v) {
			return dice.Die{}, fmt.Errorf("probability %v for face %d out of range", v, i+1)
		}
		probs[i] = v
		sum += v
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return dice.Die{}, fmt.Errorf("probabilities sum to %v, want 1", sum)
	}
	return dice.New(probs), nil
}
