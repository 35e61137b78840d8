// Package eventbus is an in-process, synchronous publish/subscribe registry.
// Publishing runs every handler subscribed to the topic in the caller's
// goroutine. Events are not queued or persisted.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type Topic string

const (
	TopicTransaction    Topic = "transaction"
	TopicSupport        Topic = "support"
	TopicInvestment     Topic = "investment"
	TopicProfile        Topic = "profile"
	TopicNowPaymentsIPN Topic = "nowpayments_ipn"
)

type Event struct {
	Topic   Topic
	Payload any
}

type Handler func(ctx context.Context, e Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	log      *slog.Logger
}

func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{handlers: make(map[Topic][]Handler), log: log}
}

// Subscribe registers h for topic. Multiple handlers per topic are allowed.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish invokes every handler subscribed to topic and returns once all of
// them have finished. A failing or panicking handler does not stop the
// others; their errors are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) error {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[topic]))
	copy(hs, b.handlers[topic])
	b.mu.RUnlock()

	if len(hs) == 0 {
		b.log.Debug("event published without subscribers", "topic", topic)
		return nil
	}

	e := Event{Topic: topic, Payload: payload}
	var errs []error
	for _, h := range hs {
		if err := b.run(ctx, h, e); err != nil {
			b.log.Error("event handler failed", "topic", topic, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) run(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				"topic", e.Topic,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler for %s panicked: %v", e.Topic, r)
		}
	}()
	return h(ctx, e)
}
