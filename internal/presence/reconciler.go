// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package presence

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/metrics"
	"github.com/tomtom215/presencesync/internal/models"
)

// Source identifies which channel produced a snapshot.
type Source int

const (
	// SourcePush is the gateway socket.
	SourcePush Source = iota
	// SourcePull is the HTTP poller.
	SourcePull
	// SourceCache is the local store read at startup.
	SourceCache
)

// String returns the metric label for the source.
func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePull:
		return "pull"
	case SourceCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Transition is the result of applying one snapshot.
type Transition struct {
	Next    models.CanonicalState
	Persist bool // write Next's snapshot to the store
	Changed bool // Next differs from the previous state
}

// Apply merges an incoming snapshot into the current state.
//
// Last write wins in arrival order regardless of source. Active snapshots
// become Live; an inactive one keeps the previous active snapshot on display
// as LastKnown, or yields Absent if there never was one. Unavailable is
// terminal. Re-applying the current Live snapshot is a no-op.
func Apply(current models.CanonicalState, in models.PresenceSnapshot, _ Source) Transition {
	if current.IsTerminal() {
		return Transition{Next: current}
	}

	if in.Active && in.Valid() {
		if current.Kind == models.StateLive && current.Snapshot != nil && current.Snapshot.Equal(in) {
			return Transition{Next: current}
		}
		next := models.LiveState(in)
		return Transition{Next: next, Persist: true, Changed: true}
	}

	prev, ok := current.LastActive()
	if !ok {
		next := models.AbsentState()
		return Transition{Next: next, Changed: !current.Equal(next)}
	}
	next := models.LastKnownState(prev)
	return Transition{Next: next, Changed: !current.Equal(next)}
}

// Reconciler owns the canonical state and writes accepted snapshots through
// to the store.
//
// Observe, Hydrate and Fail must be called from a single goroutine. State and
// Subscribe are safe for concurrent use.
type Reconciler struct {
	store        Store
	storeTimeout time.Duration

	mu    sync.RWMutex
	state models.CanonicalState

	subMu   sync.RWMutex
	subs    map[uint64]func(models.CanonicalState)
	nextSub uint64

	cacheWarn rate.Sometimes
}

// NewReconciler creates a reconciler in the Absent state.
// A nil store disables persistence.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:        store,
		storeTimeout: 2 * time.Second,
		state:        models.AbsentState(),
		subs:         make(map[uint64]func(models.CanonicalState)),
		cacheWarn:    rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// State returns the current canonical state.
func (r *Reconciler) State() models.CanonicalState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe registers fn to be called after every state change.
// fn runs on the writer goroutine and must not block.
func (r *Reconciler) Subscribe(fn func(models.CanonicalState)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Hydrate loads the cached snapshot as LastKnown. It only has an effect
// while the state is still Absent. Cache failures leave the state unchanged.
func (r *Reconciler) Hydrate(ctx context.Context) models.CanonicalState {
	if r.store == nil {
		return r.State()
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	snap, ok, err := r.store.Load(ctx)
	switch {
	case err != nil:
		metrics.RecordCacheOperation("load", "error")
		logging.Warn().Err(err).Msg("[store] Failed to load cached snapshot, continuing without it")
		return r.State()
	case !ok:
		metrics.RecordCacheOperation("load", "miss")
		return r.State()
	}
	metrics.RecordCacheOperation("load", "hit")

	snap.Active = true
	if !snap.Valid() {
		logging.Warn().Msg("[store] Ignoring invalid cached snapshot")
		return r.State()
	}

	r.mu.Lock()
	if r.state.Kind != models.StateAbsent {
		current := r.state
		r.mu.Unlock()
		return current
	}
	r.state = models.LastKnownState(snap)
	next := r.state
	r.mu.Unlock()

	metrics.RecordTransition(SourceCache.String(), next.Kind.String())
	logging.Info().Str("song", snap.Song).Str("artist", snap.Artist).Msg("[store] Hydrated last known snapshot")
	r.notify(next)
	return next
}

// Observe applies a snapshot from a channel.
func (r *Reconciler) Observe(ctx context.Context, snap models.PresenceSnapshot, src Source) Transition {
	metrics.RecordObservation(src.String())

	r.mu.Lock()
	t := Apply(r.state, snap, src)
	r.state = t.Next
	r.mu.Unlock()

	if t.Persist {
		r.persist(ctx, *t.Next.Snapshot)
	}
	if t.Changed {
		metrics.RecordTransition(src.String(), t.Next.Kind.String())
		logging.Debug().
			Str("source", src.String()).
			Str("kind", t.Next.Kind.String()).
			Msg("[reconciler] Canonical state changed")
		r.notify(t.Next)
	}
	return t
}

// Fail moves to the terminal Unavailable state.
func (r *Reconciler) Fail(reason string) Transition {
	r.mu.Lock()
	if r.state.IsTerminal() {
		current := r.state
		r.mu.Unlock()
		return Transition{Next: current}
	}
	r.state = models.UnavailableState(reason)
	next := r.state
	r.mu.Unlock()

	metrics.RecordTransition("terminal", next.Kind.String())
	logging.Error().Str("reason", reason).Msg("[reconciler] Presence unavailable")
	r.notify(next)
	return Transition{Next: next, Changed: true}
}

// persist writes the snapshot through to the store, swallowing failures.
func (r *Reconciler) persist(ctx context.Context, snap models.PresenceSnapshot) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	if err := r.store.Save(ctx, snap); err != nil {
		metrics.RecordCacheOperation("save", "error")
		r.cacheWarn.Do(func() {
			logging.Warn().Err(err).Msg("[store] Failed to persist snapshot, continuing network-only")
		})
		return
	}
	metrics.RecordCacheOperation("save", "ok")
}

func (r *Reconciler) notify(state models.CanonicalState) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for _, fn := range r.subs {
		fn(state)
	}
}
