// Package status holds the latest tick for the local status API.
package status

import (
	"sync"
	"time"

	"cloudpico-sensorsim/internal/types"
)

type OutcomeView struct {
	Channel types.Channel `json:"channel"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
}

type Snapshot struct {
	MQTTState  string           `json:"mqtt_state"`
	Tick       uint64           `json:"tick"`
	LastTickID string           `json:"last_tick_id,omitempty"`
	At         *time.Time       `json:"at,omitempty"`
	Readings   types.ReadingSet `json:"readings"`
	Outcomes   []OutcomeView    `json:"outcomes"`
}

// Tracker keeps only the most recent tick; there is no history.
type Tracker struct {
	mu    sync.RWMutex
	state func() string
	last  Snapshot
}

// NewTracker takes a live connection state source, sampled on every read.
func NewTracker(state func() string) *Tracker {
	return &Tracker{
		state: state,
		last: Snapshot{
			Readings: types.ReadingSet{},
			Outcomes: []OutcomeView{},
		},
	}
}

func (t *Tracker) Update(tick uint64, tickID string, at time.Time, readings types.ReadingSet, outcomes []types.Outcome) {
	views := make([]OutcomeView, len(outcomes))
	for i, o := range outcomes {
		views[i] = OutcomeView{Channel: o.Channel, OK: o.OK, Error: o.ErrString()}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = Snapshot{
		Tick:       tick,
		LastTickID: tickID,
		At:         &at,
		Readings:   readings.Clone(),
		Outcomes:   views,
	}
}

// Snapshot returns a copy safe to hand to an encoder.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.last
	s.Readings = t.last.Readings.Clone()
	s.Outcomes = append([]OutcomeView(nil), t.last.Outcomes...)
	t.mu.RUnlock()

	s.MQTTState = "unknown"
	if t.state != nil {
		s.MQTTState = t.state()
	}
	return s
}
