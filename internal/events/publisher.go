// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/metrics"
	"github.com/tomtom215/presencesync/internal/models"
)

// DefaultSubject is the subject state changes are published on.
const DefaultSubject = "presence.state"

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// StateMessage is the wire format of one published state change.
type StateMessage struct {
	models.PresenceView
	PublishedAt time.Time `json:"published_at"`
}

// PublisherConfig configures the NATS connection.
type PublisherConfig struct {
	URL           string
	Subject       string
	Name          string
	ReconnectWait time.Duration
}

// Publisher forwards canonical state changes to NATS.
type Publisher struct {
	conn    *nats.Conn
	subject string
	now     func() time.Time

	mu      sync.Mutex
	pending *models.CanonicalState
	closed  bool
	notify  chan struct{}
}

// NewPublisher connects to NATS. The connection retries in the background
// when the server is not reachable yet.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Name == "" {
		cfg.Name = "presencesync"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("[nats] Disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("[nats] Reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Publisher{
		conn:    nc,
		subject: cfg.Subject,
		now:     time.Now,
		notify:  make(chan struct{}, 1),
	}, nil
}

// Subject returns the publish subject.
func (p *Publisher) Subject() string {
	return p.subject
}

// Notify queues state for publishing. It never blocks; a state queued
// before the previous one was sent replaces it.
func (p *Publisher) Notify(state models.CanonicalState) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = &state
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Serve publishes queued states until ctx is canceled.
// This method is designed for use with suture supervision.
func (p *Publisher) Serve(ctx context.Context) error {
	logging.Info().Str("subject", p.subject).Msg("[nats] State publisher started")
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case <-p.notify:
			p.publishPending()
		}
	}
}

func (p *Publisher) publishPending() {
	p.mu.Lock()
	state := p.pending
	p.pending = nil
	p.mu.Unlock()

	if state == nil {
		return
	}
	if err := p.Publish(*state); err != nil {
		logging.Warn().Err(err).Str("subject", p.subject).Msg("[nats] Failed to publish state")
	}
}

// Publish sends one state message immediately.
func (p *Publisher) Publish(state models.CanonicalState) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(StateMessage{PresenceView: state.View(), PublishedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	err = p.conn.PublishMsg(msg)
	metrics.RecordNATSPublish(err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

func (p *Publisher) flush() {
	if err := p.conn.FlushTimeout(time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		logging.Debug().Err(err).Msg("[nats] Flush on shutdown failed")
	}
}

// Close drains the connection. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
