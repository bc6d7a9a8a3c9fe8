// Package engine owns the simulation registry and the tick machinery:
// global pairwise coupling, noise-scaled per-oscillator advances, derived
// aggregates, and the fixed-cadence scheduler that drives it all.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/oscillon/internal/entropy"
	"github.com/talgya/oscillon/internal/osc"
)

// Config bounds. Values outside these ranges are clamped, not rejected.
const (
	MinGlobalCoupling     = 0.0
	MaxGlobalCoupling     = 1.0
	MinEnvironmentalNoise = 0.0
	MaxEnvironmentalNoise = 0.1
	MinUpdateRate         = 10
	MaxUpdateRate         = 120
)

// Defaults for a fresh coordinator.
const (
	DefaultGlobalCoupling     = 0.05
	DefaultEnvironmentalNoise = 0.01
	DefaultUpdateRate         = 60
)

// Config is the mutable global configuration, post-clamping.
type Config struct {
	GlobalCoupling     float64 `json:"global_coupling"`
	EnvironmentalNoise float64 `json:"environmental_noise"`
	UpdateRate         int     `json:"update_rate"`
}

// ConfigPatch updates configuration; nil fields are left untouched.
type ConfigPatch struct {
	GlobalCoupling     *float64 `json:"global_coupling"`
	EnvironmentalNoise *float64 `json:"environmental_noise"`
	UpdateRate         *int     `json:"update_rate"`
}

// Coordinator owns the oscillator registry and runs ticks over it.
//
// Single-writer discipline: one mutex guards every mutation and every
// snapshot, so readers never observe a partial tick. Within a tick the
// global coupling pass and the per-oscillator advances run sequentially
// in registry insertion order, which keeps runs reproducible under a
// seeded entropy source.
type Coordinator struct {
	mu sync.Mutex

	oscillators map[string]*osc.Oscillator
	order       []string // insertion order, drives deterministic iteration

	simulationTime float64
	running        bool

	globalCoupling     float64
	environmentalNoise float64
	updateRate         int
	dt                 float64

	rng entropy.Source
	now func() time.Time // injectable clock for FPS accounting

	tickCount   int
	fpsWindowAt time.Time
	fps         float64
}

// NewCoordinator creates a stopped, empty coordinator drawing randomness
// from src.
func NewCoordinator(src entropy.Source) *Coordinator {
	c := &Coordinator{
		oscillators:        make(map[string]*osc.Oscillator),
		globalCoupling:     DefaultGlobalCoupling,
		environmentalNoise: DefaultEnvironmentalNoise,
		updateRate:         DefaultUpdateRate,
		rng:                src,
		now:                time.Now,
	}
	c.dt = 1.0 / float64(c.updateRate)
	c.fpsWindowAt = c.now()
	return c
}

// Create registers a new oscillator and returns its id. An empty id gets
// a synthesized unique one; an explicit id that is already registered
// fails with ErrAlreadyExists. Nil params means a randomized draw from
// the documented ranges.
func (c *Coordinator) Create(id string, params *osc.Parameters) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		id = "particle-" + uuid.NewString()
	} else if _, ok := c.oscillators[id]; ok {
		return "", fmt.Errorf("create %q: %w", id, ErrAlreadyExists)
	}

	var p osc.Parameters
	if params != nil {
		p = *params
	} else {
		p = osc.RandomParameters(c.rng)
	}

	c.oscillators[id] = osc.New(id, p)
	c.order = append(c.order, id)
	return id, nil
}

// Restore rebuilds an oscillator from persisted state. The history starts
// empty; phase coherence re-warms over the next few ticks.
func (c *Coordinator) Restore(id string, params osc.Parameters, state osc.State, elapsed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.oscillators[id]; ok {
		return fmt.Errorf("restore %q: %w", id, ErrAlreadyExists)
	}

	o := osc.New(id, params)
	o.State = state
	o.ElapsedTime = elapsed
	c.oscillators[id] = o
	c.order = append(c.order, id)
	return nil
}

// RestoreClock sets the simulation clock when resuming a persisted run.
func (c *Coordinator) RestoreClock(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simulationTime = t
}

// Remove destroys the oscillator and its history. Returns false, not an
// error, when the id is absent.
func (c *Coordinator) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.oscillators[id]; !ok {
		return false
	}
	delete(c.oscillators, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Start lets subsequent ticks advance the simulation. No state is reset.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
}

// Stop pauses ticking. No state is reset.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Reset stops the simulation, zeroes simulation time, and destroys every
// oscillator.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.simulationTime = 0
	c.running = false
	c.oscillators = make(map[string]*osc.Oscillator)
	c.order = nil
}

// Running reports whether ticks currently advance the simulation.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Count returns the number of registered oscillators.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.oscillators)
}

// Tick advances the whole simulation by one step. No-op while stopped.
//
// Order within a tick is load-bearing: simulation time first, then the
// pairwise global coupling pass over pre-advance state, then each
// oscillator's own advance with a noise-scaled dt, then FPS accounting.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.simulationTime += c.dt
	c.applyGlobalCoupling()

	for _, id := range c.order {
		noise := entropy.Normal(c.rng, 1.0, c.environmentalNoise)
		c.oscillators[id].Advance(c.dt * noise)
	}

	c.updateFPS()
}

// applyGlobalCoupling exchanges energy (a2) and spin (a3) between every
// unordered pair of oscillators. Each exchange is zero-sum: the pair's
// summed a2 and summed a3 are unchanged. Quadratic in registry size,
// accepted at the intended scale of tens of oscillators.
// Caller holds the lock.
func (c *Coordinator) applyGlobalCoupling() {
	if len(c.order) < 2 {
		return
	}
	for i := 0; i < len(c.order); i++ {
		for j := i + 1; j < len(c.order); j++ {
			o1 := c.oscillators[c.order[i]]
			o2 := c.oscillators[c.order[j]]

			d2 := c.globalCoupling * (o2.State.A2 - o1.State.A2) * 0.1
			d3 := c.globalCoupling * (o2.State.A3 - o1.State.A3) * 0.05

			o1.State.A2 += d2
			o2.State.A2 -= d2
			o1.State.A3 += d3
			o2.State.A3 -= d3
		}
	}
}

// updateFPS recomputes the rolling tick-rate estimate once per wall-clock
// second. Caller holds the lock.
func (c *Coordinator) updateFPS() {
	c.tickCount++
	now := c.now()
	elapsed := now.Sub(c.fpsWindowAt).Seconds()
	if elapsed >= 1.0 {
		c.fps = float64(c.tickCount) / elapsed
		c.tickCount = 0
		c.fpsWindowAt = now
	}
}

// UpdateConfig applies the non-nil fields of patch, clamping each to its
// valid range, and returns the effective configuration.
func (c *Coordinator) UpdateConfig(patch ConfigPatch) Config {
	c.mu.Lock()
	defer c.mu.Unlock()

	if patch.GlobalCoupling != nil {
		c.globalCoupling = clampF(*patch.GlobalCoupling, MinGlobalCoupling, MaxGlobalCoupling)
	}
	if patch.EnvironmentalNoise != nil {
		c.environmentalNoise = clampF(*patch.EnvironmentalNoise, MinEnvironmentalNoise, MaxEnvironmentalNoise)
	}
	if patch.UpdateRate != nil {
		c.updateRate = clampI(*patch.UpdateRate, MinUpdateRate, MaxUpdateRate)
		c.dt = 1.0 / float64(c.updateRate)
	}
	return c.configLocked()
}

// CurrentConfig returns the effective configuration.
func (c *Coordinator) CurrentConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configLocked()
}

func (c *Coordinator) configLocked() Config {
	return Config{
		GlobalCoupling:     c.globalCoupling,
		EnvironmentalNoise: c.environmentalNoise,
		UpdateRate:         c.updateRate,
	}
}

// StepInterval returns the wall-clock period matching the configured
// update rate.
func (c *Coordinator) StepInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.dt * float64(time.Second))
}

// Snapshot builds the aggregated read-only view. Taken under the same
// lock as Tick, so it never observes a partial tick.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make(map[string]OscillatorView, len(c.oscillators))
	var totalEnergy, stabilitySum float64

	for _, id := range c.order {
		o := c.oscillators[id]
		views[id] = viewOf(o)
		totalEnergy += o.EnergyTotal
		stabilitySum += o.Stability
	}

	avgStability := 0.0
	if len(c.order) > 0 {
		avgStability = stabilitySum / float64(len(c.order))
	}

	return Snapshot{
		SimulationTime:  c.simulationTime,
		Running:         c.running,
		OscillatorCount: len(c.oscillators),
		Oscillators:     views,
		GlobalMetrics: GlobalMetrics{
			TotalEnergy:        totalEnergy,
			AverageStability:   avgStability,
			FPS:                c.fps,
			GlobalCoupling:     c.globalCoupling,
			EnvironmentalNoise: c.environmentalNoise,
		},
	}
}

// OscillatorSnapshot returns the view of a single oscillator.
func (c *Coordinator) OscillatorSnapshot(id string) (OscillatorView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.oscillators[id]
	if !ok {
		return OscillatorView{}, fmt.Errorf("oscillator %q: %w", id, ErrNotFound)
	}
	return viewOf(o), nil
}

// VisualizationSnapshot builds the lighter per-oscillator projection used
// for high-frequency transport: position from the first three axes, mass
// from the fourth.
func (c *Coordinator) VisualizationSnapshot() VizFrame {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := VizFrame{
		Timestamp: c.simulationTime,
		Particles: make([]Particle, 0, len(c.order)),
	}
	for _, id := range c.order {
		o := c.oscillators[id]
		frame.Particles = append(frame.Particles, Particle{
			ID:             id,
			Position:       Vec3{X: o.State.A1, Y: o.State.A2, Z: o.State.A3},
			Mass:           o.State.A4,
			Stability:      o.Stability,
			Energy:         o.EnergyTotal,
			Coherence:      o.PhaseCoherence,
			Magnitude:      o.State.Magnitude(),
			ColorIntensity: clampF(absF(o.State.A2)/2.0, 0, 1),
		})
	}
	return frame
}

// History returns up to the n most recent samples of one oscillator in
// chronological order.
func (c *Coordinator) History(id string, n int) ([]HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.oscillators[id]
	if !ok {
		return nil, fmt.Errorf("oscillator %q: %w", id, ErrNotFound)
	}

	samples := o.History.Recent(n)
	entries := make([]HistoryEntry, len(samples))
	for i, s := range samples {
		entries[i] = HistoryEntry{
			Time:      s.Time,
			State:     s.State,
			Magnitude: s.State.Magnitude(),
		}
	}
	return entries, nil
}

func viewOf(o *osc.Oscillator) OscillatorView {
	return OscillatorView{
		ID:          o.ID,
		ElapsedTime: o.ElapsedTime,
		State:       o.State,
		Derived: DerivedMetrics{
			Stability:      o.Stability,
			EnergyTotal:    o.EnergyTotal,
			PhaseCoherence: o.PhaseCoherence,
			Magnitude:      o.State.Magnitude(),
		},
		Parameters: o.Params,
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
