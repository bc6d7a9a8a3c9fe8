package engine

import "github.com/talgya/oscillon/internal/osc"

// Snapshot is the aggregated read-only view of the whole simulation,
// produced atomically with respect to ticks.
type Snapshot struct {
	SimulationTime  float64                   `json:"simulation_time"`
	Running         bool                      `json:"running"`
	OscillatorCount int                       `json:"oscillator_count"`
	Oscillators     map[string]OscillatorView `json:"oscillators"`
	GlobalMetrics   GlobalMetrics             `json:"global_metrics"`
}

// OscillatorView is the per-oscillator slice of a snapshot.
type OscillatorView struct {
	ID          string         `json:"id"`
	ElapsedTime float64        `json:"elapsed_time"`
	State       osc.State      `json:"state"`
	Derived     DerivedMetrics `json:"derived"`
	Parameters  osc.Parameters `json:"parameters"`
}

// DerivedMetrics carries the scalars recomputed on every advance.
type DerivedMetrics struct {
	Stability      float64 `json:"stability"`
	EnergyTotal    float64 `json:"energy_total"`
	PhaseCoherence float64 `json:"phase_coherence"`
	Magnitude      float64 `json:"magnitude"`
}

// GlobalMetrics aggregates across the registry.
type GlobalMetrics struct {
	TotalEnergy        float64 `json:"total_energy"`
	AverageStability   float64 `json:"average_stability"`
	FPS                float64 `json:"fps"`
	GlobalCoupling     float64 `json:"global_coupling"`
	EnvironmentalNoise float64 `json:"environmental_noise"`
}

// VizFrame is the lighter projection broadcast at tick rate.
type VizFrame struct {
	Timestamp float64    `json:"timestamp"`
	Particles []Particle `json:"particles"`
}

// Particle maps one oscillator onto renderable quantities: position from
// the first three axes, mass from the fourth.
type Particle struct {
	ID             string  `json:"id"`
	Position       Vec3    `json:"position"`
	Mass           float64 `json:"mass"`
	Stability      float64 `json:"stability"`
	Energy         float64 `json:"energy"`
	Coherence      float64 `json:"coherence"`
	Magnitude      float64 `json:"magnitude"`
	ColorIntensity float64 `json:"color_intensity"`
}

// Vec3 is a renderable 3D position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HistoryEntry is one row of a history query.
type HistoryEntry struct {
	Time      float64   `json:"time"`
	State     osc.State `json:"state"`
	Magnitude float64   `json:"magnitude"`
}
