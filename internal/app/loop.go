package app

import (
	"context"
	"log/slog"
	"time"

	"cloudpico-sensorsim/internal/metrics"
	"cloudpico-sensorsim/internal/mqtt"
	"cloudpico-sensorsim/internal/status"
	"cloudpico-sensorsim/internal/types"

	"github.com/google/uuid"
)

// Transport is the persistent channel as the loop drives it: one connect at
// startup, then Stop and Disconnect at shutdown.
type Transport interface {
	Connect(ctx context.Context) error
	State() mqtt.ConnState
	Stop()
	Disconnect()
}

type Sampler interface {
	Tick() types.ReadingSet
}

type Deliverer interface {
	Deliver(ctx context.Context, readings types.ReadingSet) []types.Outcome
}

type Reporter interface {
	Report(tickID string, readings types.ReadingSet, outcomes []types.Outcome) error
}

type Recorder interface {
	Record(ctx context.Context, tickID string, at time.Time, outcomes []types.Outcome) error
}

// Loop runs tick -> deliver -> report -> sleep until its context ends.
// Ticks never overlap.
type Loop struct {
	Sampler   Sampler
	Transport Transport
	Deliverer Deliverer
	Reporter  Reporter
	Metrics   *metrics.Metrics
	Tracker   *status.Tracker
	// Journal is optional.
	Journal Recorder
	Logger  *slog.Logger

	Interval     time.Duration
	ConnectGrace time.Duration

	newTickID func() string
	now       func() time.Time
}

// Run connects the transport, then ticks until ctx is canceled. Cancellation
// is observed between ticks; a delivery in progress runs to completion under
// its own request timeouts. On return the transport has been stopped and then
// disconnected. Run returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newTickID := l.newTickID
	if newTickID == nil {
		newTickID = uuid.NewString
	}
	now := l.now
	if now == nil {
		now = time.Now
	}

	defer func() {
		logger.Info("stopping transport")
		l.Transport.Stop()
		l.Transport.Disconnect()
	}()

	l.connect(ctx, logger)

	var tick uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tick++
		tickID := newTickID()
		at := now()

		readings := l.Sampler.Tick()
		outcomes := l.Deliverer.Deliver(context.WithoutCancel(ctx), readings)

		l.observe(ctx, logger, tick, tickID, at, readings, outcomes)

		wait := time.NewTimer(l.Interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// connect waits at most ConnectGrace for the broker. Failure is not fatal:
// ticks fall back to HTTP telemetry while the client keeps retrying.
func (l *Loop) connect(ctx context.Context, logger *slog.Logger) {
	graceCtx, cancel := context.WithTimeout(ctx, l.ConnectGrace)
	defer cancel()

	if err := l.Transport.Connect(graceCtx); err != nil {
		logger.Warn("mqtt not connected, using http telemetry until it is", "error", err)
		return
	}
	logger.Info("mqtt ready")
}

func (l *Loop) observe(ctx context.Context, logger *slog.Logger, tick uint64, tickID string, at time.Time, readings types.ReadingSet, outcomes []types.Outcome) {
	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	logger.Info("tick delivered",
		"tick", tick,
		"tick_id", tickID,
		"channels", len(outcomes),
		"failed", failed,
	)

	if l.Reporter != nil {
		if err := l.Reporter.Report(tickID, readings, outcomes); err != nil {
			logger.Warn("report", "error", err)
		}
	}

	if l.Metrics != nil {
		l.Metrics.ObserveTick(readings, outcomes)
		l.Metrics.SetMQTTConnected(usedMQTT(outcomes))
	}

	if l.Tracker != nil {
		l.Tracker.Update(tick, tickID, at, readings, outcomes)
	}

	if l.Journal != nil {
		if err := l.Journal.Record(context.WithoutCancel(ctx), tickID, at, outcomes); err != nil {
			logger.Warn("journal record", "tick_id", tickID, "error", err)
		}
	}
}

// usedMQTT reports whether the tick's telemetry went over the persistent
// channel, i.e. the transport was connected when the tick started.
func usedMQTT(outcomes []types.Outcome) bool {
	for _, o := range outcomes {
		if o.Channel == types.ChannelMQTTTelemetry {
			return true
		}
	}
	return false
}
