// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify publishes content change messages to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// MessageType is the type field of every change message.
const MessageType = "content.changed"

// Change describes one saved or deleted record.
type Change struct {
	Type   string    `json:"type"`
	Record string    `json:"record"`
	ID     int64     `json:"id"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// NewChange builds a change message stamped with at in UTC.
func NewChange(record string, id int64, action string, at time.Time) Change {
	return Change{Type: MessageType, Record: record, ID: id, Action: action, At: at.UTC()}
}

// Key is the partition key of a change; all changes of one record share it.
func (c Change) Key() string {
	return c.Record + ":" + strconv.FormatInt(c.ID, 10)
}

// Publisher delivers change messages.
type Publisher interface {
	Publish(ctx context.Context, changes ...Change) error
	Close() error
}

// Config selects and configures the publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg Config, logger *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("change notifications disabled")
		return NopPublisher{}
	}
	logger.Info("change notifications enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// KafkaPublisher writes changes to a Kafka topic as JSON.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes changes in one batch, keyed by record.
func (p *KafkaPublisher) Publish(ctx context.Context, changes ...Change) error {
	if len(changes) == 0 {
		return nil
	}
	msgs, err := Messages(changes)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages encodes changes as Kafka messages.
func Messages(changes []Change) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(changes))
	for _, c := range changes {
		value, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(c.Key()),
			Value: value,
			Time:  c.At,
		})
	}
	return msgs, nil
}

// NopPublisher drops every message.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, ...Change) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// MemoryPublisher records published changes.
type MemoryPublisher struct {
	mu      sync.Mutex
	changes []Change
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends changes.
func (p *MemoryPublisher) Publish(_ context.Context, changes ...Change) error {
	p.mu.Lock()
	p.changes = append(p.changes, changes...)
	p.mu.Unlock()
	return nil
}

// Changes returns a copy of everything published so far.
func (p *MemoryPublisher) Changes() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Change(nil), p.changes...)
}

// Close does nothing.
func (p *MemoryPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
	_ Publisher = (*MemoryPublisher)(nil)
)
