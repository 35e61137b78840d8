package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	relayQueueSize = 256
	relayTimeout   = 5 * time.Second
)

// Relay forwards pushes to other API instances. userID is empty for a
// broadcast.
type Relay interface {
	Publish(ctx context.Context, userID string, msg []byte) error
}

// Dispatcher pushes payloads to live connections. Delivery is fire-and-forget:
// a failing handle is logged and skipped, never retried.
type Dispatcher struct {
	reg   *Registry
	log   *slog.Logger
	relay chan relayMsg
}

type relayMsg struct {
	userID string
	msg    []byte
}

func NewDispatcher(reg *Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{reg: reg, log: log}
}

// StartRelay enables cross-instance delivery of every push. Publishes are
// queued and sent from a single goroutine until ctx is cancelled, so a slow
// relay never delays local delivery. It must be called before the dispatcher
// is shared.
func (d *Dispatcher) StartRelay(ctx context.Context, r Relay) {
	q := make(chan relayMsg, relayQueueSize)
	d.relay = q
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-q:
				pctx, cancel := context.WithTimeout(ctx, relayTimeout)
				if err := r.Publish(pctx, m.userID, m.msg); err != nil {
					d.log.Warn("relay publish failed", "user_id", m.userID, "err", err)
				}
				cancel()
			}
		}
	}()
}

// SendToUser pushes payload to every connection of userID and reports whether
// at least one local connection existed.
func (d *Dispatcher) SendToUser(userID string, payload any) bool {
	msg, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("marshal realtime payload", "user_id", userID, "err", err)
		return false
	}
	d.publish(userID, msg)
	return d.DeliverLocal(userID, msg)
}

// Broadcast pushes payload to every connected handle regardless of user.
func (d *Dispatcher) Broadcast(payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("marshal broadcast payload", "err", err)
		return
	}
	d.publish("", msg)
	d.DeliverLocal("", msg)
}

// DeliverLocal writes an already encoded message to this instance's
// connections only. An empty userID targets every connection.
func (d *Dispatcher) DeliverLocal(userID string, msg []byte) bool {
	var handles []Handle
	if userID == "" {
		handles = d.reg.All()
	} else {
		handles = d.reg.ActiveHandles(userID)
	}
	for _, h := range handles {
		if err := h.Send(msg); err != nil {
			d.log.Warn("realtime push failed", "user_id", userID, "err", err)
		}
	}
	return len(handles) > 0
}

func (d *Dispatcher) publish(userID string, msg []byte) {
	if d.relay == nil {
		return
	}
	select {
	case d.relay <- relayMsg{userID: userID, msg: msg}:
	default:
		d.log.Warn("relay queue full, dropping push", "user_id", userID)
	}
}
