package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/oscillon/internal/entropy"
	"github.com/talgya/oscillon/internal/osc"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(entropy.NewSeeded(42))
}

func TestCreateExplicitAndSynthesizedIDs(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	id, err := c.Create("alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", id)

	generated, err := c.Create("", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, generated)
	assert.NotEqual(t, "alpha", generated)

	assert.Equal(t, 2, c.Count())
}

func TestCreateDuplicateIDRejected(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	_, err := c.Create("alpha", nil)
	require.NoError(t, err)

	_, err = c.Create("alpha", nil)
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, c.Count())
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	_, err := c.Create("alpha", nil)
	require.NoError(t, err)

	assert.False(t, c.Remove("missing"))

	// Registry unaffected by the miss.
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.OscillatorCount)

	assert.True(t, c.Remove("alpha"))
	assert.False(t, c.Remove("alpha"))
}

func TestEmptyRegistrySnapshot(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	snap := c.Snapshot()

	assert.Equal(t, 0, snap.OscillatorCount)
	assert.Equal(t, 0.0, snap.GlobalMetrics.AverageStability)
	assert.Equal(t, 0.0, snap.GlobalMetrics.TotalEnergy)
	assert.Empty(t, snap.Oscillators)
}

func TestResetClearsRegistry(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	for i := 0; i < 5; i++ {
		_, err := c.Create(fmt.Sprintf("p%d", i), nil)
		require.NoError(t, err)
	}
	c.Start()
	for i := 0; i < 10; i++ {
		c.Tick()
	}

	c.Reset()

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.OscillatorCount)
	assert.Equal(t, 0.0, snap.SimulationTime)
	assert.False(t, snap.Running)
}

func TestTickNoopWhileStopped(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	_, err := c.Create("alpha", nil)
	require.NoError(t, err)

	c.Tick()

	snap := c.Snapshot()
	assert.Equal(t, 0.0, snap.SimulationTime)
	assert.Equal(t, 0.0, snap.Oscillators["alpha"].ElapsedTime)
}

// TestGlobalCouplingZeroSum verifies the pairwise exchange conserves the
// summed a2 and a3 across each pair, before any individual advance runs.
func TestGlobalCouplingZeroSum(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	p := osc.DefaultParameters()

	require.NoError(t, c.Restore("one", p, osc.State{A1: 0.1, A2: 1.4, A3: -0.2, A4: 1}, 0))
	require.NoError(t, c.Restore("two", p, osc.State{A1: -0.3, A2: 0.6, A3: 0.9, A4: 1}, 0))
	require.NoError(t, c.Restore("three", p, osc.State{A1: 0.5, A2: -0.8, A3: 0.4, A4: 1}, 0))

	var sumA2, sumA3 float64
	for _, o := range c.oscillators {
		sumA2 += o.State.A2
		sumA3 += o.State.A3
	}

	c.applyGlobalCoupling()

	var afterA2, afterA3 float64
	for _, o := range c.oscillators {
		afterA2 += o.State.A2
		afterA3 += o.State.A3
	}

	assert.InDelta(t, sumA2, afterA2, 1e-12)
	assert.InDelta(t, sumA3, afterA3, 1e-12)
}

// TestDeterministicRuns drives two coordinators with the same seed, the
// same population, and noise and coupling disabled, expecting identical
// trajectories.
func TestDeterministicRuns(t *testing.T) {
	t.Parallel()

	zero := 0.0
	run := func() Snapshot {
		c := NewCoordinator(entropy.NewSeeded(7))
		c.UpdateConfig(ConfigPatch{GlobalCoupling: &zero, EnvironmentalNoise: &zero})

		p := osc.DefaultParameters()
		_, err := c.Create("solo", &p)
		require.NoError(t, err)

		c.Start()
		for i := 0; i < 500; i++ {
			c.Tick()
		}
		return c.Snapshot()
	}

	first := run()
	second := run()

	v1 := first.Oscillators["solo"]
	v2 := second.Oscillators["solo"]
	assert.InDelta(t, v1.State.A1, v2.State.A1, 1e-9)
	assert.InDelta(t, v1.State.A2, v2.State.A2, 1e-9)
	assert.InDelta(t, v1.State.A3, v2.State.A3, 1e-9)
	assert.InDelta(t, v1.State.A4, v2.State.A4, 1e-9)
	assert.InDelta(t, v1.Derived.EnergyTotal, v2.Derived.EnergyTotal, 1e-9)
	assert.InDelta(t, first.SimulationTime, second.SimulationTime, 1e-9)
}

func TestUpdateConfigClamping(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	coupling := 2.5
	noise := -0.3
	rate := 500
	effective := c.UpdateConfig(ConfigPatch{
		GlobalCoupling:     &coupling,
		EnvironmentalNoise: &noise,
		UpdateRate:         &rate,
	})

	assert.Equal(t, MaxGlobalCoupling, effective.GlobalCoupling)
	assert.Equal(t, MinEnvironmentalNoise, effective.EnvironmentalNoise)
	assert.Equal(t, MaxUpdateRate, effective.UpdateRate)

	// Partial patch leaves other fields untouched.
	inRange := 0.3
	effective = c.UpdateConfig(ConfigPatch{GlobalCoupling: &inRange})
	assert.Equal(t, 0.3, effective.GlobalCoupling)
	assert.Equal(t, MaxUpdateRate, effective.UpdateRate)

	assert.Equal(t, time.Second/time.Duration(MaxUpdateRate), c.StepInterval())
}

func TestSnapshotAggregates(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	p := osc.DefaultParameters()
	for i := 0; i < 3; i++ {
		_, err := c.Create(fmt.Sprintf("p%d", i), &p)
		require.NoError(t, err)
	}

	c.Start()
	for i := 0; i < 20; i++ {
		c.Tick()
	}

	snap := c.Snapshot()
	require.Equal(t, 3, snap.OscillatorCount)

	var energy, stability float64
	for _, view := range snap.Oscillators {
		energy += view.Derived.EnergyTotal
		stability += view.Derived.Stability
		assert.GreaterOrEqual(t, view.Derived.Magnitude, 0.0)
	}
	assert.InDelta(t, energy, snap.GlobalMetrics.TotalEnergy, 1e-9)
	assert.InDelta(t, stability/3, snap.GlobalMetrics.AverageStability, 1e-9)
}

func TestVisualizationSnapshot(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	p := osc.DefaultParameters()
	require.NoError(t, c.Restore("viz", p, osc.State{A1: 0.5, A2: -3.0, A3: 0.25, A4: 1.1}, 1.0))

	frame := c.VisualizationSnapshot()
	require.Len(t, frame.Particles, 1)

	particle := frame.Particles[0]
	assert.Equal(t, "viz", particle.ID)
	assert.Equal(t, Vec3{X: 0.5, Y: -3.0, Z: 0.25}, particle.Position)
	assert.Equal(t, 1.1, particle.Mass)
	// |a2|/2 clamped to 1.
	assert.Equal(t, 1.0, particle.ColorIntensity)
}

func TestHistoryQuery(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	p := osc.DefaultParameters()
	_, err := c.Create("h", &p)
	require.NoError(t, err)

	c.Start()
	for i := 0; i < 30; i++ {
		c.Tick()
	}

	entries, err := c.History("h", 10)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Time, entries[i-1].Time)
	}
	for _, e := range entries {
		assert.InDelta(t, e.State.Magnitude(), e.Magnitude, 1e-12)
	}

	// Asking for more than retained returns everything retained.
	entries, err = c.History("h", 1000)
	require.NoError(t, err)
	assert.Len(t, entries, 30)

	_, err = c.History("missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartStopPreserveState(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	_, err := c.Create("alpha", nil)
	require.NoError(t, err)

	c.Start()
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	mid := c.Snapshot()
	require.Greater(t, mid.SimulationTime, 0.0)

	c.Stop()
	c.Tick()
	after := c.Snapshot()
	assert.Equal(t, mid.SimulationTime, after.SimulationTime)
	assert.False(t, after.Running)

	c.Start()
	c.Tick()
	assert.Greater(t, c.Snapshot().SimulationTime, mid.SimulationTime)
}

func TestFPSAccounting(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	_, err := c.Create("alpha", nil)
	require.NoError(t, err)

	// Fake clock: each tick appears to take 100 ms.
	base := time.Now()
	ticks := 0
	c.now = func() time.Time {
		return base.Add(time.Duration(ticks) * 100 * time.Millisecond)
	}

	c.Start()
	for i := 0; i < 11; i++ {
		ticks++
		c.Tick()
	}

	snap := c.Snapshot()
	assert.InDelta(t, 10.0, snap.GlobalMetrics.FPS, 1.0)
}
