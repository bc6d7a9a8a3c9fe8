package osc

import "math"

// Harmonic multipliers: each axis oscillates at its own multiple of the
// base frequency.
const (
	harmonicA1 = 1.0
	harmonicA2 = 1.2
	harmonicA3 = 0.8
	harmonicA4 = 1.1
)

// coherenceWindow is how many recent samples feed the phase-coherence
// estimate.
const coherenceWindow = 10

// Oscillator is one four-axis particle. All mutation happens through
// Advance; the coordinator serializes access.
type Oscillator struct {
	ID     string
	Params Parameters

	ElapsedTime float64
	State       State
	History     *History

	// Derived metrics, recomputed on every advance.
	Stability      float64 // [0,1], even distribution across axes
	EnergyTotal    float64 // kinetic + coupling potential, may be negative
	PhaseCoherence float64 // [0,1], short-window smoothness of motion
}

// New creates an oscillator at the initial state with an empty history.
func New(id string, params Parameters) *Oscillator {
	return &Oscillator{
		ID:             id,
		Params:         params,
		State:          InitialState(),
		History:        NewHistory(DefaultHistoryCapacity),
		Stability:      1.0,
		PhaseCoherence: 1.0,
	}
}

// Advance moves the oscillator forward by dt. All four new axis values
// are derived from one snapshot of the prior state — no axis may observe
// another axis's already-updated value within the same step.
func (o *Oscillator) Advance(dt float64) {
	o.ElapsedTime += dt
	t := o.ElapsedTime

	omega := 2 * math.Pi * o.Params.BaseFrequency
	c := o.Params.CouplingStrength
	prev := o.State // full prior snapshot, read-before-write

	base1 := o.Params.AmplitudeA1 * math.Sin(omega*harmonicA1*t+o.Params.PhaseA1)
	base2 := o.Params.AmplitudeA2 * math.Sin(omega*harmonicA2*t+o.Params.PhaseA2)
	base3 := o.Params.AmplitudeA3 * math.Sin(omega*harmonicA3*t+o.Params.PhaseA3)
	base4 := o.Params.AmplitudeA4 * math.Sin(omega*harmonicA4*t+o.Params.PhaseA4)

	// Cross-axis coupling from the prior state. Axis 3 carries an extra
	// third-harmonic term independent of coupling strength.
	coupled1 := base1 + c*(prev.A2*0.3+prev.A4*0.2)
	coupled2 := base2 + c*(prev.A3*0.4+prev.A1*0.1)
	coupled3 := base3 + c*(prev.A2*0.5) + 0.3*math.Sin(6*math.Pi*o.Params.BaseFrequency*t)
	coupled4 := base4 + c*(prev.A1*0.15)

	d := o.Params.DampingFactor
	o.State = State{
		A1: coupled1 * d,
		A2: coupled2 * d,
		A3: coupled3 * d,
		A4: coupled4 * d,
	}

	o.Stability = o.computeStability()
	o.EnergyTotal = o.computeEnergy()
	o.PhaseCoherence = o.computeCoherence()

	o.History.Append(t, o.State)
}

// computeStability measures how evenly the magnitude is spread across the
// four axes: 1 when each axis carries a quarter of it, falling toward 0
// as one axis dominates.
func (o *Oscillator) computeStability() float64 {
	m := o.State.Magnitude()
	if m == 0 {
		return 0
	}
	balance := 1.0 -
		math.Abs(0.25-math.Abs(o.State.A1)/m) -
		math.Abs(0.25-math.Abs(o.State.A2)/m) -
		math.Abs(0.25-math.Abs(o.State.A3)/m) -
		math.Abs(0.25-math.Abs(o.State.A4)/m)
	return clamp01(balance)
}

// computeEnergy sums a kinetic term with a coupling potential over cyclic
// adjacent-axis products. The potential can pull the total negative.
func (o *Oscillator) computeEnergy() float64 {
	s := o.State
	kinetic := 0.5 * (s.A1*s.A1 + s.A2*s.A2 + s.A3*s.A3 + s.A4*s.A4)
	potential := 0.25 * o.Params.CouplingStrength *
		(s.A1*s.A2 + s.A2*s.A3 + s.A3*s.A4 + s.A4*s.A1)
	return kinetic + potential
}

// computeCoherence estimates short-window smoothness from the most recent
// retained samples. With fewer than coherenceWindow samples the estimate
// stays at 1.
func (o *Oscillator) computeCoherence() float64 {
	if o.History.Len() < coherenceWindow {
		return 1.0
	}
	recent := o.History.Recent(coherenceWindow)

	var sum float64
	for i := 1; i < len(recent); i++ {
		prev, curr := recent[i-1].State, recent[i].State
		sum += math.Abs(curr.A1-prev.A1) +
			math.Abs(curr.A2-prev.A2) +
			math.Abs(curr.A3-prev.A3) +
			math.Abs(curr.A4-prev.A4)
	}
	avg := sum / float64(len(recent)-1)
	return clamp01(1.0 - avg/4.0)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
