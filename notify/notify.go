// Package notify publishes committed ordering changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jacentio/ordinal/order"
)

// DefaultSubjectPrefix is the subject prefix and stream name used when none is configured.
const DefaultSubjectPrefix = "ORDINAL"

// JetStream is the subset of jetstream.JetStream used by JetStreamNotifier.
type JetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var (
	_ order.Notifier = (*JetStreamNotifier)(nil)
	_ order.Notifier = (*MemoryNotifier)(nil)
)

// Options configures a JetStreamNotifier.
type Options struct {
	// SubjectPrefix is prepended to the event kind, e.g. "ORDINAL.moved".
	SubjectPrefix string

	// StreamName, when set, is created or updated to capture "<prefix>.>".
	StreamName string

	// RetryAttempts for each publish. Zero uses the client default.
	RetryAttempts int
}

// JetStreamNotifier publishes events as JSON to NATS JetStream.
type JetStreamNotifier struct {
	js   JetStream
	opts Options
}

// NewJetStreamNotifier creates a notifier and ensures its stream exists.
func NewJetStreamNotifier(ctx context.Context, js JetStream, opts Options) (*JetStreamNotifier, error) {
	if js == nil {
		return nil, errors.New("jetstream cannot be nil")
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = DefaultSubjectPrefix
	}

	if opts.StreamName != "" {
		_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     opts.StreamName,
			Subjects: []string{opts.SubjectPrefix + ".>"},
			Storage:  jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
	}

	return &JetStreamNotifier{js: js, opts: opts}, nil
}

// Subject returns the subject an event of the given kind is published to.
func (n *JetStreamNotifier) Subject(kind order.EventKind) string {
	return n.opts.SubjectPrefix + "." + string(kind)
}

// Notify publishes the event.
func (n *JetStreamNotifier) Notify(ctx context.Context, event order.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var publishOpts []jetstream.PublishOpt
	if n.opts.RetryAttempts > 0 {
		publishOpts = append(publishOpts, jetstream.WithRetryAttempts(n.opts.RetryAttempts))
	}

	subject := n.Subject(event.Kind)
	if _, err := n.js.Publish(ctx, subject, data, publishOpts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// MemoryNotifier records events in memory.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []order.Event
}

// Notify records the event.
func (m *MemoryNotifier) Notify(_ context.Context, event order.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (m *MemoryNotifier) Events() []order.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Event(nil), m.events...)
}

// Reset drops all recorded events.
func (m *MemoryNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Decode parses a published event payload.
func Decode(data []byte) (order.Event, error) {
	var event order.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return order.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
