package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cloudpico-sensorsim/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

// ConnState is the persistent transport's connection state.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type Client struct {
	client mqtt.Client
	cfg    config.Config
	logger *slog.Logger

	// written by paho callbacks, read by the dispatcher
	state atomic.Int32

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// ThingsBoard device auth: token as username, no password.
	opts.SetUsername(cfg.AccessToken)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(cfg.MQTTKeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	return c
}

// Paho runs these callbacks on its own goroutines; they only write state.

func (c *Client) onConnect(_ mqtt.Client) {
	c.setState(Connected)
	c.logger.Info("mqtt connected", "broker", c.cfg.MQTTBroker, "port", c.cfg.MQTTPort)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.setState(Disconnected)
	c.logger.Warn("mqtt connection lost", "error", err)
}

func (c *Client) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.setState(Connecting)
	c.logger.Debug("mqtt reconnecting")
}

// Connect issues the connect request and waits for the broker's
// acknowledgment. It respects ctx and Stop(); the connect attempt keeps
// retrying in the background after ctx expires.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	c.setState(Connecting)
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				c.setState(Disconnected)
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets Connected.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Publish hands payload to the local client with the given QoS. It reports
// success as soon as the client has accepted the message; broker PUBACK is
// not awaited.
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
		// Completed synchronously: either already acked or rejected locally.
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	default:
	}

	c.logger.Debug("published", "topic", topic, "qos", qos, "bytes", len(payload))
	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// IsConnected reports whether the transport is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == Connected && c.client.IsConnected()
}

// Stop halts the client's own background work: pending and future Connect
// waits return ErrStopped. Paho's retry loop ends with Disconnect. Idempotent.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.logger.Debug("mqtt background work stopped")
	})
}

// Disconnect closes the MQTT connection. Idempotent; implies Stop.
func (c *Client) Disconnect() {
	c.Stop()

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setState(Disconnected)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}
