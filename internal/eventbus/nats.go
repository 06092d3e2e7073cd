/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process events to NATS so other breakplan
// instances and downstream consumers see run and rule changes.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		SubjectPrefix: "breakplan.events",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus delivers events locally and mirrors them on NATS subjects
// <prefix>.<event type>. Events published by other nodes are delivered to
// local subscribers too.
type NATSBus struct {
	logger zerolog.Logger
	local  *events.Bus
	conn   *nats.Conn
	sub    *nats.Subscription
	prefix string
	nodeID string
}

// NewNATSBus connects to cfg.URL. An empty URL or an unreachable server leaves
// the bus in local-only mode.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		logger: logger.With().Str("component", "eventbus").Logger(),
		local:  events.NewBus(),
		prefix: cfg.SubjectPrefix,
		nodeID: generateNodeID(),
	}
	if nb.prefix == "" {
		nb.prefix = DefaultNATSConfig().SubjectPrefix
	}
	if cfg.URL == "" {
		nb.logger.Info().Msg("NATS not configured, using in-memory event bus")
		return nb, nil
	}

	opts := []nats.Option{
		nats.Name("breakplan-" + nb.nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS unavailable, using in-memory event bus")
		return nb, nil
	}

	sub, err := conn.Subscribe(nb.prefix+".>", nb.handleRemote)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s.>: %w", nb.prefix, err)
	}

	nb.conn = conn
	nb.sub = sub
	nb.logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nb.nodeID).Msg("NATS event bus connected")
	return nb, nil
}

// Connected reports whether events are forwarded to NATS.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventType)
}

// Unsubscribe removes a subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Publish delivers payload locally and forwards it to NATS when connected.
// Forwarding failures are logged; local delivery always happens.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event", string(eventType)).Msg("encode event")
		return
	}
	if err := nb.conn.Publish(nb.Subject(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("forward event to NATS")
	}
}

// Subject is the NATS subject an event type is published on.
func (nb *NATSBus) Subject(eventType events.EventType) string {
	return nb.prefix + "." + string(eventType)
}

func (nb *NATSBus) handleRemote(msg *nats.Msg) {
	decoded, err := unmarshalNATSMessage(msg.Data)
	if err != nil {
		nb.logger.Debug().Err(err).Str("subject", msg.Subject).Msg("drop malformed event")
		return
	}
	if decoded.NodeID == nb.nodeID {
		return
	}
	nb.local.Publish(decoded.EventType, decoded.Payload)
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("nats message without event type")
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return strings.ToLower(host) + "-" + uuid.NewString()[:8]
}
