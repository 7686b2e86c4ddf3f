// Package seatlock implements the in-memory seat lock table: short,
// TTL-bounded, owner-scoped reservations layered over the persisted
// seat counters. The table is advisory — the database remains the
// source of truth and is reconciled at confirmation time.
package seatlock

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharmaishaan04/Event-Booking-System/internal/clock"
)

// Lock is a time-bounded reservation of seats on one event. Quantity is
// immutable after creation; only ExpiresAt changes (via Refresh).
type Lock struct {
	EventID   string
	ID        string
	Quantity  int
	Owner     string
	ExpiresAt time.Time
}

// lockRef identifies a lock across events, for the per-owner index.
type lockRef struct {
	eventID string
	lockID  string
}

// Config controls lock lifetime and sweep cadence.
type Config struct {
	// TTL is how long an unrefreshed lock lives. Default 60s.
	TTL time.Duration
	// CleanupInterval is how often expired locks are swept. Default 5s.
	CleanupInterval time.Duration
}

const (
	DefaultTTL             = 60 * time.Second
	DefaultCleanupInterval = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Manager owns the lock table. Every operation — including the periodic
// sweep — is dispatched onto a single goroutine started by Run, so no
// two mutations ever race and no table-wide mutex can be held across a
// store call. Run must be started before use and outlive all callers.
type Manager struct {
	cfg Config
	clk clock.Clock
	log zerolog.Logger

	requests  chan func()
	evictions chan string
	stopped   chan struct{}

	// State below is owned by the Run goroutine.
	locks   map[string]map[string]*Lock // eventID → lockID → lock
	byOwner map[string]map[lockRef]struct{}
}

// NewManager builds a Manager; call Run to start processing requests.
func NewManager(cfg Config, clk clock.Clock, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:       cfg.withDefaults(),
		clk:       clk,
		log:       log.With().Str("component", "seatlock").Logger(),
		requests:  make(chan func()),
		evictions: make(chan string, 128),
		stopped:   make(chan struct{}),
		locks:     make(map[string]map[string]*Lock),
		byOwner:   make(map[string]map[lockRef]struct{}),
	}
}

// TTL reports the configured lock lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Evictions delivers the id of each event that lost at least one lock
// to a sweep — one entry per event per sweep, so broadcast volume stays
// bounded under mass expiry. If the consumer falls behind, ids are
// dropped with a warning; viewers resync on their next operation.
func (m *Manager) Evictions() <-chan string {
	return m.evictions
}

// Run processes lock operations one at a time and sweeps expired locks
// every CleanupInterval. It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.stopped)

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-m.requests:
			fn()
		case <-ticker.C:
			m.sweep()
		}
	}
}

// do runs fn on the Run goroutine and waits for it to finish. It
// reports false when the manager has stopped and fn never ran, so
// late callers (a disconnect racing shutdown) cannot block forever.
func (m *Manager) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case m.requests <- func() {
		fn()
		close(done)
	}:
		<-done
		return true
	case <-m.stopped:
		return false
	}
}

// Acquire inserts a new lock for quantity seats, checking capacity
// against baseAvailable (the persisted available count, read by the
// caller) minus all currently locked seats for the event.
//
// Reusing a live lock id fails with ErrDuplicateLock rather than
// refreshing it: silently overwriting would let a second connection
// steal the id. Refresh is the supported extension path.
func (m *Manager) Acquire(eventID, lockID string, quantity int, owner string, baseAvailable int) (time.Duration, error) {
	var err error
	ok := m.do(func() {
		if _, ok := m.locks[eventID][lockID]; ok {
			acquireTotal.WithLabelValues("duplicate").Inc()
			err = ErrDuplicateLock
			return
		}

		effective := baseAvailable - m.lockedTotal(eventID, "")
		if effective < quantity {
			if effective < 0 {
				effective = 0
			}
			acquireTotal.WithLabelValues("capacity").Inc()
			err = &CapacityError{Available: effective}
			return
		}

		if m.locks[eventID] == nil {
			m.locks[eventID] = make(map[string]*Lock)
		}
		m.locks[eventID][lockID] = &Lock{
			EventID:   eventID,
			ID:        lockID,
			Quantity:  quantity,
			Owner:     owner,
			ExpiresAt: m.clk.Now().Add(m.cfg.TTL),
		}
		if m.byOwner[owner] == nil {
			m.byOwner[owner] = make(map[lockRef]struct{})
		}
		m.byOwner[owner][lockRef{eventID, lockID}] = struct{}{}

		acquireTotal.WithLabelValues("ok").Inc()
		activeLocks.Inc()
		lockedSeats.Add(float64(quantity))
		m.log.Debug().
			Str("event_id", eventID).
			Str("lock_id", lockID).
			Int("quantity", quantity).
			Str("owner", owner).
			Msg("lock acquired")
	})
	if !ok {
		return 0, ErrStopped
	}
	return m.cfg.TTL, err
}

// Refresh resets the lock's expiry to now + TTL. The quantity is
// unchanged, so callers need not rebroadcast availability.
func (m *Manager) Refresh(eventID, lockID, owner string) (time.Duration, error) {
	var err error
	ok := m.do(func() {
		lock, ok := m.locks[eventID][lockID]
		if !ok {
			err = ErrLockNotFound
			return
		}
		if lock.Owner != owner {
			err = ErrNotOwner
			return
		}
		lock.ExpiresAt = m.clk.Now().Add(m.cfg.TTL)
	})
	if !ok {
		return 0, ErrStopped
	}
	return m.cfg.TTL, err
}

// Release removes the lock after ownership checks. Releasing a lock
// that no longer exists yields ErrLockNotFound; removal is terminal.
func (m *Manager) Release(eventID, lockID, owner string) error {
	var err error
	if !m.do(func() {
		lock, ok := m.locks[eventID][lockID]
		if !ok {
			err = ErrLockNotFound
			return
		}
		if lock.Owner != owner {
			err = ErrNotOwner
			return
		}
		m.remove(lock, removeReasonReleased)
	}) {
		return ErrStopped
	}
	return err
}

// Get returns a copy of the lock, or ErrLockNotFound.
func (m *Manager) Get(eventID, lockID string) (Lock, error) {
	var (
		out Lock
		err error
	)
	if !m.do(func() {
		lock, ok := m.locks[eventID][lockID]
		if !ok {
			err = ErrLockNotFound
			return
		}
		out = *lock
	}) {
		return Lock{}, ErrStopped
	}
	return out, err
}

// LockedTotal sums the quantities of all active locks for the event.
func (m *Manager) LockedTotal(eventID string) int {
	var total int
	m.do(func() {
		total = m.lockedTotal(eventID, "")
	})
	return total
}

// LockedTotalExcluding sums active lock quantities for the event,
// leaving out the named lock. The booking engine uses it to recompute
// capacity inside the confirm transaction without counting the lock
// being converted.
func (m *Manager) LockedTotalExcluding(eventID, lockID string) int {
	var total int
	m.do(func() {
		total = m.lockedTotal(eventID, lockID)
	})
	return total
}

// Remove deletes the lock without ownership checks, reporting whether
// it was present. The booking engine calls it after a successful
// confirmation; repeated calls are harmless.
func (m *Manager) Remove(eventID, lockID string) bool {
	var removed bool
	m.do(func() {
		lock, ok := m.locks[eventID][lockID]
		if !ok {
			return
		}
		m.remove(lock, removeReasonConsumed)
		removed = true
	})
	return removed
}

// ReleaseOwner removes every lock owned by the connection and returns
// the ids of affected events, each once, so the caller can broadcast
// one update per event.
func (m *Manager) ReleaseOwner(owner string) []string {
	var events []string
	m.do(func() {
		if len(m.byOwner[owner]) == 0 {
			return
		}
		refs := make([]lockRef, 0, len(m.byOwner[owner]))
		for ref := range m.byOwner[owner] {
			refs = append(refs, ref)
		}
		seen := make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			if lock, ok := m.locks[ref.eventID][ref.lockID]; ok {
				m.remove(lock, removeReasonDisconnect)
			}
			if _, dup := seen[ref.eventID]; !dup {
				seen[ref.eventID] = struct{}{}
				events = append(events, ref.eventID)
			}
		}
		m.log.Info().
			Str("owner", owner).
			Int("events", len(events)).
			Msg("released locks for disconnected owner")
	})
	return events
}

// Sweep evicts every expired lock immediately and returns the ids of
// affected events, each once. Run performs the same sweep on its timer;
// this entry point exists for tests and administrative use.
func (m *Manager) Sweep() []string {
	var events []string
	m.do(func() {
		events = m.sweepExpired()
	})
	return events
}

// sweep runs on the Run goroutine (timer path).
func (m *Manager) sweep() {
	m.sweepExpired()
}

// sweepExpired must only be called from the Run goroutine. It emits
// each affected event id on the evictions channel.
func (m *Manager) sweepExpired() []string {
	now := m.clk.Now()
	var changed []string
	for eventID, table := range m.locks {
		evicted := false
		for _, lock := range table {
			if !lock.ExpiresAt.After(now) {
				m.remove(lock, removeReasonExpired)
				evicted = true
			}
		}
		if evicted {
			changed = append(changed, eventID)
		}
	}
	for _, eventID := range changed {
		select {
		case m.evictions <- eventID:
		default:
			m.log.Warn().Str("event_id", eventID).Msg("eviction notification dropped: channel full")
		}
	}
	if len(changed) > 0 {
		m.log.Info().Int("events", len(changed)).Msg("swept expired locks")
	}
	return changed
}

// lockedTotal must only be called from the Run goroutine.
func (m *Manager) lockedTotal(eventID, excludeLockID string) int {
	total := 0
	for id, lock := range m.locks[eventID] {
		if id == excludeLockID {
			continue
		}
		total += lock.Quantity
	}
	return total
}

// remove must only be called from the Run goroutine.
func (m *Manager) remove(lock *Lock, reason string) {
	table := m.locks[lock.EventID]
	delete(table, lock.ID)
	if len(table) == 0 {
		delete(m.locks, lock.EventID)
	}

	refs := m.byOwner[lock.Owner]
	delete(refs, lockRef{lock.EventID, lock.ID})
	if len(refs) == 0 {
		delete(m.byOwner, lock.Owner)
	}

	removedTotal.WithLabelValues(reason).Inc()
	activeLocks.Dec()
	lockedSeats.Sub(float64(lock.Quantity))
}
