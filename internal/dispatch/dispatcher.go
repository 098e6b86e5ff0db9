// Package dispatch delivers one reading set per tick over independent
// channels: MQTT telemetry or its HTTP fallback, HTTP attributes, and the
// backend webhook. Channel failures are reported as outcomes, never returned.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cloudpico-sensorsim/internal/types"
)

const (
	// RequestTimeout bounds every one-shot HTTP attempt.
	RequestTimeout = 5 * time.Second

	// TelemetryTopic and TelemetryQoS are the persistent channel's publish target.
	TelemetryTopic = "v1/devices/me/telemetry"
	TelemetryQoS   = byte(1)

	// AccessTokenField is merged into the backend payload.
	AccessTokenField = "accessToken"

	maxDrain = 4 << 10
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// Publisher is the persistent transport as seen by the dispatcher.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, payload []byte) error
}

type Options struct {
	// TBBaseURL is the telemetry platform's HTTP base, e.g. https://thingsboard.cloud.
	TBBaseURL   string
	BackendURL  string
	AccessToken string
	// HTTPClient defaults to a client with RequestTimeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Dispatcher struct {
	pub    Publisher
	http   *http.Client
	logger *slog.Logger

	token         string
	telemetryURL  string
	attributesURL string
	backendURL    string
}

func New(pub Publisher, opts Options) (*Dispatcher, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if opts.AccessToken == "" {
		return nil, errors.New("access token is required")
	}
	if opts.TBBaseURL == "" || opts.BackendURL == "" {
		return nil, errors.New("telemetry base URL and backend URL are required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(opts.TBBaseURL, "/") + "/api/v1/" + url.PathEscape(opts.AccessToken)
	return &Dispatcher{
		pub:           pub,
		http:          httpClient,
		logger:        logger,
		token:         opts.AccessToken,
		telemetryURL:  base + "/telemetry",
		attributesURL: base + "/attributes",
		backendURL:    opts.BackendURL,
	}, nil
}

// Deliver attempts every channel for one reading set and returns their
// outcomes in dispatch order: MQTT telemetry or HTTP telemetry (never both),
// then attributes, then backend. The connection state is sampled once.
func (d *Dispatcher) Deliver(ctx context.Context, readings types.ReadingSet) []types.Outcome {
	connected := d.pub.IsConnected()

	outcomes := make([]types.Outcome, 3)
	var wg sync.WaitGroup
	run := func(i int, ch types.Channel, attempt func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.guard(ch, attempt)
		}()
	}

	if connected {
		run(0, types.ChannelMQTTTelemetry, func() error { return d.publish(readings) })
	} else {
		run(0, types.ChannelHTTPTelemetry, func() error { return d.post(ctx, d.telemetryURL, readings) })
	}
	run(1, types.ChannelHTTPAttributes, func() error { return d.post(ctx, d.attributesURL, readings) })
	run(2, types.ChannelBackend, func() error {
		return d.post(ctx, d.backendURL, readings.WithField(AccessTokenField, d.token))
	})

	wg.Wait()
	return outcomes
}

// guard turns an attempt's error or panic into an outcome.
func (d *Dispatcher) guard(ch types.Channel, attempt func() error) (out types.Outcome) {
	out.Channel = ch
	defer func() {
		if r := recover(); r != nil {
			out.OK = false
			out.Err = fmt.Errorf("%s: panic: %v", ch, r)
			d.logger.Error("delivery panicked", "channel", ch, "panic", r)
		}
	}()

	if err := attempt(); err != nil {
		out.Err = err
		d.logger.Warn("delivery failed", "channel", ch, "error", err)
		return out
	}
	out.OK = true
	d.logger.Debug("delivered", "channel", ch)
	return out
}

func (d *Dispatcher) publish(readings types.ReadingSet) error {
	payload, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	return d.pub.Publish(TelemetryTopic, TelemetryQoS, payload)
}

func (d *Dispatcher) post(ctx context.Context, target string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
