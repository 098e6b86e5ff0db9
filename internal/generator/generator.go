// Package generator synthesizes slowly varying environmental readings as a
// bounded random walk, one independent walk per quantity.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"cloudpico-sensorsim/internal/types"
)

// MaxStep is the half-width of the symmetric delta range drawn on every tick.
const MaxStep = 2.0

// Quantity is a monitored dimension with inclusive bounds.
type Quantity struct {
	Name    string  `yaml:"name"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Unit    string  `yaml:"unit"`
	Initial float64 `yaml:"initial"`
}

// DefaultQuantities is the sensor set of the emulated garden device.
func DefaultQuantities() []Quantity {
	return []Quantity{
		{Name: "temperature", Min: 20, Max: 35, Unit: "°C", Initial: 25.0},
		{Name: "humidity", Min: 40, Max: 90, Unit: "%", Initial: 65.0},
		{Name: "light", Min: 100, Max: 2000, Unit: "lux", Initial: 1000.0},
		{Name: "soil_moisture", Min: 20, Max: 80, Unit: "%", Initial: 50.0},
		{Name: "wind", Min: 0, Max: 20, Unit: "km/h", Initial: 5.0},
	}
}

// DeltaSource yields the raw perturbation applied to a quantity on each tick.
type DeltaSource interface {
	Delta() float64
}

type uniformSource struct {
	rng *rand.Rand
}

// NewUniformSource draws deltas uniformly from [-MaxStep, +MaxStep].
// A zero seed picks a random one.
func NewUniformSource(seed uint64) DeltaSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &uniformSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *uniformSource) Delta() float64 {
	return (s.rng.Float64()*2 - 1) * MaxStep
}

// Generator owns the signal state. It is not safe for concurrent use; the
// driver loop is its only caller.
type Generator struct {
	quantities []Quantity
	state      []float64
	src        DeltaSource
}

// New validates the quantities and seeds state from their initial values.
func New(quantities []Quantity, src DeltaSource) (*Generator, error) {
	if len(quantities) == 0 {
		return nil, errors.New("at least one quantity is required")
	}
	if src == nil {
		return nil, errors.New("delta source is required")
	}
	seen := make(map[string]struct{}, len(quantities))
	for _, q := range quantities {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.Name]; dup {
			return nil, fmt.Errorf("duplicate quantity %q", q.Name)
		}
		seen[q.Name] = struct{}{}
	}

	g := &Generator{
		quantities: append([]Quantity(nil), quantities...),
		state:      make([]float64, len(quantities)),
		src:        src,
	}
	for i, q := range g.quantities {
		g.state[i] = q.Initial
	}
	return g, nil
}

// Validate checks the quantity's name, bounds and initial value.
func (q Quantity) Validate() error {
	if q.Name == "" {
		return errors.New("quantity name is required")
	}
	if math.IsNaN(q.Min) || math.IsNaN(q.Max) || math.IsInf(q.Min, 0) || math.IsInf(q.Max, 0) {
		return fmt.Errorf("quantity %q: bounds must be finite", q.Name)
	}
	if q.Min > q.Max {
		return fmt.Errorf("quantity %q: min %v > max %v", q.Name, q.Min, q.Max)
	}
	if q.Initial < q.Min || q.Initial > q.Max {
		return fmt.Errorf("quantity %q: initial %v outside [%v, %v]", q.Name, q.Initial, q.Min, q.Max)
	}
	return nil
}

// Quantities returns the configured quantities in declaration order.
func (g *Generator) Quantities() []Quantity {
	return append([]Quantity(nil), g.quantities...)
}

// Tick advances every walk by one step and returns a fresh snapshot.
func (g *Generator) Tick() types.ReadingSet {
	for i, q := range g.quantities {
		g.state[i] = step(g.state[i], g.src.Delta(), q.Min, q.Max)
	}
	return g.Snapshot()
}

// Snapshot returns the current state without advancing it.
func (g *Generator) Snapshot() types.ReadingSet {
	out := make(types.ReadingSet, len(g.quantities))
	for i, q := range g.quantities {
		out[q.Name] = g.state[i]
	}
	return out
}

// step applies delta, clamps into [lo, hi] and rounds to one decimal. Clamping
// is a hard floor/ceiling: a value pushed outward stays pinned at the bound.
func step(v, delta, lo, hi float64) float64 {
	v = clamp(v+delta, lo, hi)
	r := round1(v)
	// Rounding must not leave the bounds when they are not multiples of 0.1.
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
