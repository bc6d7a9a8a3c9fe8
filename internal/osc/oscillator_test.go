package osc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdvanceReferenceStep checks one step against hand-computed values
// for the reference parameter set.
func TestAdvanceReferenceStep(t *testing.T) {
	t.Parallel()

	o := New("ref", DefaultParameters())
	require.Equal(t, State{A1: 0, A2: 1, A3: 0, A4: 1}, o.State)

	o.Advance(0.016)

	assert.InDelta(t, 0.1474, o.State.A1, 1e-3)
	assert.InDelta(t, 1.1570, o.State.A2, 1e-3)
	assert.InDelta(t, 0.9178, o.State.A3, 1e-3)
	assert.InDelta(t, 0.7347, o.State.A4, 1e-3)

	// Fewer than 10 retained samples: coherence stays at 1.
	assert.Equal(t, 1.0, o.PhaseCoherence)
	assert.Equal(t, 1, o.History.Len())

	// Stability recomputed from the new state per the balance formula.
	m := o.State.Magnitude()
	expected := 1.0 -
		math.Abs(0.25-math.Abs(o.State.A1)/m) -
		math.Abs(0.25-math.Abs(o.State.A2)/m) -
		math.Abs(0.25-math.Abs(o.State.A3)/m) -
		math.Abs(0.25-math.Abs(o.State.A4)/m)
	expected = math.Max(0, math.Min(1, expected))
	assert.InDelta(t, expected, o.Stability, 1e-12)
}

// TestAdvanceReadsPriorStateOnly verifies the coupling terms consume one
// consistent snapshot of the pre-update state: a step from a state with a
// distinctive axis mix must match values derived from that prior state,
// not from any partially-updated axis.
func TestAdvanceReadsPriorStateOnly(t *testing.T) {
	t.Parallel()

	p := DefaultParameters()
	o := New("prior", p)
	o.State = State{A1: 2, A2: -3, A3: 5, A4: -7}
	o.ElapsedTime = 1.0

	prev := o.State
	o.Advance(0.016)

	t2 := 1.016
	omega := 2 * math.Pi * p.BaseFrequency
	c := p.CouplingStrength
	d := p.DampingFactor

	want1 := (p.AmplitudeA1*math.Sin(omega*1.0*t2+p.PhaseA1) + c*(prev.A2*0.3+prev.A4*0.2)) * d
	want2 := (p.AmplitudeA2*math.Sin(omega*1.2*t2+p.PhaseA2) + c*(prev.A3*0.4+prev.A1*0.1)) * d
	want3 := (p.AmplitudeA3*math.Sin(omega*0.8*t2+p.PhaseA3) + c*(prev.A2*0.5) + 0.3*math.Sin(6*math.Pi*p.BaseFrequency*t2)) * d
	want4 := (p.AmplitudeA4*math.Sin(omega*1.1*t2+p.PhaseA4) + c*(prev.A1*0.15)) * d

	assert.InDelta(t, want1, o.State.A1, 1e-12)
	assert.InDelta(t, want2, o.State.A2, 1e-12)
	assert.InDelta(t, want3, o.State.A3, 1e-12)
	assert.InDelta(t, want4, o.State.A4, 1e-12)
}

// TestDerivedMetricBounds runs a long trajectory and checks the invariant
// ranges of every derived scalar.
func TestDerivedMetricBounds(t *testing.T) {
	t.Parallel()

	o := New("bounds", DefaultParameters())
	for i := 0; i < 2000; i++ {
		o.Advance(0.016)

		assert.GreaterOrEqual(t, o.State.Magnitude(), 0.0)
		assert.GreaterOrEqual(t, o.Stability, 0.0)
		assert.LessOrEqual(t, o.Stability, 1.0)
		assert.GreaterOrEqual(t, o.PhaseCoherence, 0.0)
		assert.LessOrEqual(t, o.PhaseCoherence, 1.0)
	}
}

// TestDeterministicTrajectory advances two oscillators with identical
// parameters through the same dt sequence and expects identical states.
func TestDeterministicTrajectory(t *testing.T) {
	t.Parallel()

	a := New("a", DefaultParameters())
	b := New("b", DefaultParameters())

	dts := []float64{0.016, 0.01, 0.02, 0.016, 0.033, 0.008}
	for i := 0; i < 200; i++ {
		dt := dts[i%len(dts)]
		a.Advance(dt)
		b.Advance(dt)
	}

	assert.InDelta(t, a.State.A1, b.State.A1, 1e-9)
	assert.InDelta(t, a.State.A2, b.State.A2, 1e-9)
	assert.InDelta(t, a.State.A3, b.State.A3, 1e-9)
	assert.InDelta(t, a.State.A4, b.State.A4, 1e-9)
	assert.InDelta(t, a.EnergyTotal, b.EnergyTotal, 1e-9)
	assert.InDelta(t, a.Stability, b.Stability, 1e-9)
}

// TestEnergyDecomposition checks the kinetic plus cyclic-potential split.
func TestEnergyDecomposition(t *testing.T) {
	t.Parallel()

	o := New("energy", DefaultParameters())
	o.Advance(0.016)

	s := o.State
	kinetic := 0.5 * (s.A1*s.A1 + s.A2*s.A2 + s.A3*s.A3 + s.A4*s.A4)
	potential := 0.25 * o.Params.CouplingStrength *
		(s.A1*s.A2 + s.A2*s.A3 + s.A3*s.A4 + s.A4*s.A1)
	assert.InDelta(t, kinetic+potential, o.EnergyTotal, 1e-12)
}

// TestZeroMagnitudeStability pins the degenerate all-zero state to
// stability 0 rather than a division fault.
func TestZeroMagnitudeStability(t *testing.T) {
	t.Parallel()

	o := New("zero", DefaultParameters())
	o.State = State{}
	assert.Equal(t, 0.0, o.computeStability())
}

// TestPhaseCoherenceWarmup verifies the coherence estimate only engages
// once ten samples are retained, then stays within bounds.
func TestPhaseCoherenceWarmup(t *testing.T) {
	t.Parallel()

	o := New("warmup", DefaultParameters())
	for i := 0; i < 9; i++ {
		o.Advance(0.016)
		assert.Equal(t, 1.0, o.PhaseCoherence, "advance %d", i+1)
	}

	for i := 0; i < 50; i++ {
		o.Advance(0.016)
	}
	assert.GreaterOrEqual(t, o.PhaseCoherence, 0.0)
	assert.LessOrEqual(t, o.PhaseCoherence, 1.0)
}

// TestElapsedTimeMonotonic checks elapsed time accumulates the dt
// sequence exactly.
func TestElapsedTimeMonotonic(t *testing.T) {
	t.Parallel()

	o := New("time", DefaultParameters())
	var total float64
	for i := 0; i < 100; i++ {
		o.Advance(0.016)
		total += 0.016
		assert.InDelta(t, total, o.ElapsedTime, 1e-9)
	}
}
