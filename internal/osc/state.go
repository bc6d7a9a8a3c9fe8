// Package osc implements a single four-axis coupled oscillator: its state
// vector, parameters, bounded history, and the fixed-step advance rule.
package osc

import "math"

// State is the four-axis state vector of one oscillator. The axis labels
// (projection, energy, spin, mass) are conventional only — the engine
// enforces no physical meaning.
type State struct {
	A1 float64 `json:"a1"` // projection
	A2 float64 `json:"a2"` // energy
	A3 float64 `json:"a3"` // spin
	A4 float64 `json:"a4"` // mass
}

// InitialState is the state every oscillator starts from.
func InitialState() State {
	return State{A1: 0, A2: 1, A3: 0, A4: 1}
}

// Magnitude returns the Euclidean norm of the state vector.
func (s State) Magnitude() float64 {
	return math.Sqrt(s.A1*s.A1 + s.A2*s.A2 + s.A3*s.A3 + s.A4*s.A4)
}
