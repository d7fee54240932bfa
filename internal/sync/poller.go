// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
poller.go - Presence Poller

Pull channel. Fetches the presence resource on a fixed interval regardless of
gateway health, plus on demand (startup, visibility or connectivity regain,
socket errors). Polls run one at a time on the loop goroutine; on-demand
requests that arrive while a poll is in flight are coalesced into one.
*/

package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/metrics"
	"github.com/tomtom215/presencesync/internal/models"
	"github.com/tomtom215/presencesync/internal/presence"
)

// Poll trigger reasons.
const (
	TriggerStartup     = "startup"
	TriggerInterval    = "interval"
	TriggerResync      = "resync"
	TriggerSocketError = "socket_error"
)

// PollResult is the outcome of one fetch.
type PollResult struct {
	Snapshot models.PresenceSnapshot
	Err      error
	Reason   string
}

// NotMonitored reports whether the result is the terminal rejection.
func (r PollResult) NotMonitored() bool {
	return errors.Is(r.Err, ErrNotMonitored)
}

// Poller periodically fetches presence and reports each result.
type Poller struct {
	fetcher  PresenceFetcher
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	halted   bool
	stopChan chan struct{}
	trigger  chan string
	wg       sync.WaitGroup

	onResult func(PollResult)

	// failWarn rate-limits transient failure warnings.
	failWarn rate.Sometimes
}

// NewPoller creates a poller. interval <= 0 defaults to 30s.
func NewPoller(fetcher PresenceFetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		now:      time.Now,
		trigger:  make(chan string, 1),
		failWarn: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// SetOnResult sets the callback for poll results. It must not block for long.
func (p *Poller) SetOnResult(callback func(PollResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResult = callback
}

// Start polls once immediately, then on every interval.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running || p.halted {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()

	logging.Info().Dur("interval", p.interval).Msg("[poller] Starting presence poller")

	p.wg.Add(1)
	go p.pollLoop(ctx, stop)

	return nil
}

// Trigger requests an immediate poll. It returns false when the poller is
// halted or stopped, or when a poll request is already queued.
func (p *Poller) Trigger(reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.halted {
		return false
	}
	select {
	case p.trigger <- reason:
		return true
	default:
		return false
	}
}

// Halt permanently stops polling without waiting for an in-flight fetch.
// Safe to call from the result callback.
func (p *Poller) Halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted {
		return
	}
	p.halted = true
	if p.running {
		p.running = false
		close(p.stopChan)
	}
	logging.Info().Msg("[poller] Presence poller halted")
}

// isHalted reports whether Halt was called or a terminal result was seen.
func (p *Poller) isHalted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}

// Stop stops the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.running {
		p.running = false
		close(p.stopChan)
	}
	p.mu.Unlock()

	p.wg.Wait()
	logging.Debug().Msg("[poller] Presence poller stopped")
}

func (p *Poller) pollLoop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	if !p.poll(ctx, stop, TriggerStartup) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if !p.poll(ctx, stop, TriggerInterval) {
				return
			}
		case reason := <-p.trigger:
			if !p.poll(ctx, stop, reason) {
				return
			}
		}
	}
}

// poll performs one fetch and reports it. It returns false once polling
// must end for good.
func (p *Poller) poll(ctx context.Context, stop <-chan struct{}, reason string) bool {
	select {
	case <-stop:
		return false
	default:
	}

	start := time.Now()
	data, err := p.fetcher.FetchPresence(ctx)
	result := PollResult{Reason: reason, Err: err}

	switch {
	case err == nil:
		metrics.RecordPoll("success", time.Since(start))
		result.Snapshot = presence.Decode(data, p.now())
	case errors.Is(err, ErrNotMonitored):
		metrics.RecordPoll("not_monitored", time.Since(start))
		p.Halt()
	case ctx.Err() != nil:
		return false
	default:
		metrics.RecordPoll("error", time.Since(start))
		logging.Debug().Err(err).Str("reason", reason).Msg("[poller] Presence poll failed")
		p.failWarn.Do(func() {
			logging.Warn().Err(err).Str("reason", reason).Msg("[poller] Presence poll failed, keeping last known state")
		})
	}

	p.mu.Lock()
	callback := p.onResult
	p.mu.Unlock()
	if callback != nil {
		callback(result)
	}

	return !result.NotMonitored()
}
