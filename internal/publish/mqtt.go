package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jpalmerr/envboard/internal/sampler"
	"github.com/jpalmerr/envboard/internal/sensor"
)

const (
	// DefaultTopic is the topic readings are published to.
	DefaultTopic = "envboard/readings"

	// DefaultClientID identifies the dashboard to the broker.
	DefaultClientID = "envboard"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // milliseconds
)

// Client is the subset of [mqtt.Client] the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Config describes the broker connection and publish options.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
}

// Message is the JSON payload published after each cycle.
type Message struct {
	TakenAt  time.Time        `json:"taken_at"`
	Cycle    uint64           `json:"cycle"`
	Readings []sensor.Reading `json:"readings"`
}

// NewMessage builds the payload for res.
func NewMessage(res sampler.Result) Message {
	return Message{
		TakenAt:  res.Snapshot.TakenAt,
		Cycle:    res.Snapshot.Cycle,
		Readings: res.Readings[:],
	}
}

// Publisher publishes cycle results. Publish failures are logged and never
// reported back to the cycle.
type Publisher struct {
	client   Client
	topic    string
	qos      byte
	retained bool
	logger   *slog.Logger
}

// Dial connects to cfg.Broker and returns a [Publisher] using the connection.
// The client reconnects automatically after the initial connect succeeds.
func Dial(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return New(client, cfg, logger), nil
}

// New returns a [Publisher] over an existing client.
func New(client Client, cfg Config, logger *slog.Logger) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Publisher{
		client:   client,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		logger:   logger,
	}
}

// Topic returns the topic messages are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish sends res without waiting for the broker. It has the signature of
// a cycle callback.
func (p *Publisher) Publish(res sampler.Result) {
	payload, err := json.Marshal(NewMessage(res))
	if err != nil {
		p.logger.Error("mqtt payload encoding failed", "cycle", res.Snapshot.Cycle, "error", err)
		return
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, payload)
	go p.await(token, res.Snapshot.Cycle)
}

func (p *Publisher) await(token mqtt.Token, cycle uint64) {
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", "topic", p.topic, "cycle", cycle)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", p.topic, "cycle", cycle, "error", err)
	}
}

// Close disconnects from the broker, giving in-flight messages a short
// time to complete.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectWait)
}
