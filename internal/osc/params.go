package osc

import (
	"math"

	"github.com/talgya/oscillon/internal/entropy"
)

// Parameters controls one oscillator's motion. Immutable for the life of
// the oscillator — set once at creation, never updated in place.
type Parameters struct {
	BaseFrequency    float64 `json:"base_frequency" db:"base_frequency"`
	AmplitudeA1      float64 `json:"amplitude_a1" db:"amplitude_a1"`
	AmplitudeA2      float64 `json:"amplitude_a2" db:"amplitude_a2"`
	AmplitudeA3      float64 `json:"amplitude_a3" db:"amplitude_a3"`
	AmplitudeA4      float64 `json:"amplitude_a4" db:"amplitude_a4"`
	PhaseA1          float64 `json:"phase_a1" db:"phase_a1"`
	PhaseA2          float64 `json:"phase_a2" db:"phase_a2"`
	PhaseA3          float64 `json:"phase_a3" db:"phase_a3"`
	PhaseA4          float64 `json:"phase_a4" db:"phase_a4"`
	DampingFactor    float64 `json:"damping_factor" db:"damping_factor"`
	CouplingStrength float64 `json:"coupling_strength" db:"coupling_strength"`
}

// DefaultParameters returns the reference parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		BaseFrequency:    1.0,
		AmplitudeA1:      1.0,
		AmplitudeA2:      1.5,
		AmplitudeA3:      0.8,
		AmplitudeA4:      1.2,
		PhaseA1:          0,
		PhaseA2:          math.Pi / 4,
		PhaseA3:          math.Pi / 2,
		PhaseA4:          3 * math.Pi / 4,
		DampingFactor:    0.98,
		CouplingStrength: 0.1,
	}
}

// RandomParameters draws a parameter set from the documented uniform
// ranges. Damping stays at the reference value — it is a stability knob,
// not a per-particle personality trait.
func RandomParameters(src entropy.Source) Parameters {
	return Parameters{
		BaseFrequency:    entropy.Uniform(src, 0.5, 2.0),
		AmplitudeA1:      entropy.Uniform(src, 0.8, 1.2),
		AmplitudeA2:      entropy.Uniform(src, 1.0, 1.8),
		AmplitudeA3:      entropy.Uniform(src, 0.6, 1.0),
		AmplitudeA4:      entropy.Uniform(src, 1.0, 1.4),
		PhaseA1:          entropy.Uniform(src, 0, 2*math.Pi),
		PhaseA2:          entropy.Uniform(src, 0, 2*math.Pi),
		PhaseA3:          entropy.Uniform(src, 0, 2*math.Pi),
		PhaseA4:          entropy.Uniform(src, 0, 2*math.Pi),
		DampingFactor:    0.98,
		CouplingStrength: entropy.Uniform(src, 0.05, 0.15),
	}
}
