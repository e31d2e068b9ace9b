// Package quota enforces the monthly budget of upstream provider calls.
package quota

import (
	"errors"
	"sync"
	"time"

	"github.com/mlenko/flightpath/pkg/logger"
)

// ErrExhausted signals the monthly call budget is spent. Expected, not
// exceptional: callers fall back to cached data or surface the quota state.
var ErrExhausted = errors.New("monthly call quota exhausted")

// State is the persisted counter for one calendar month.
type State struct {
	Month string `json:"month"` // UTC YYYY-MM
	Used  int    `json:"used"`
}

// Status is the quota surface consumed by UI/ops tooling.
type Status struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Month     string `json:"month"`
}

// Store persists quota state across process restarts.
type Store interface {
	Load() (*State, error) // nil state when nothing persisted yet
	Save(*State) error
}

// Governor is the process-wide monthly call budget gate. The budget resets
// the first time any operation observes a new UTC calendar month relative
// to stored state; no background timer is involved.
type Governor struct {
	limit  int
	store  Store
	logger *logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	state *State // lazily initialized
}

// NewGovernor creates a governor over a persistence store.
func NewGovernor(limit int, store Store, log *logger.Logger) *Governor {
	return &Governor{
		limit:  limit,
		store:  store,
		logger: log.Named("quota"),
		now:    time.Now,
	}
}

// currentMonth renders the UTC YYYY-MM key.
func (g *Governor) currentMonth() string {
	return g.now().UTC().Format("2006-01")
}

// loadLocked lazily initializes state and applies the month rollover.
func (g *Governor) loadLocked() error {
	month := g.currentMonth()

	if g.state == nil {
		state, err := g.store.Load()
		if err != nil {
			return err
		}
		if state == nil {
			state = &State{Month: month}
		}
		g.state = state
	}

	if g.state.Month != month {
		g.logger.Info("Quota month rollover",
			logger.String("from", g.state.Month),
			logger.String("to", month),
			logger.Int("used_last_month", g.state.Used))
		g.state = &State{Month: month}
		return g.store.Save(g.state)
	}

	return nil
}

// CanMakeCall reports whether budget remains this month.
func (g *Governor) CanMakeCall() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.loadLocked(); err != nil {
		return false, err
	}
	return g.state.Used < g.limit, nil
}

// RecordCall counts one upstream call against the budget. Only invoke after
// a confirmed successful upstream call, never speculatively.
func (g *Governor) RecordCall() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.loadLocked(); err != nil {
		return err
	}

	g.state.Used++
	if err := g.store.Save(g.state); err != nil {
		return err
	}

	if remaining := g.limit - g.state.Used; remaining <= 10 {
		g.logger.Warn("Monthly call budget nearly exhausted",
			logger.Int("used", g.state.Used),
			logger.Int("remaining", remaining))
	}
	return nil
}

// Status returns the current quota surface.
func (g *Governor) Status() (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.loadLocked(); err != nil {
		return Status{}, err
	}

	remaining := g.limit - g.state.Used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:      g.state.Used,
		Limit:     g.limit,
		Remaining: remaining,
		Month:     g.state.Month,
	}, nil
}

// Reset zeroes the counter for the current month.
func (g *Governor) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = &State{Month: g.currentMonth()}
	return g.store.Save(g.state)
}

// SetNowFunc overrides the clock. Test hook.
func (g *Governor) SetNowFunc(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// MemoryStore is an in-process Store for tests and quota-less deployments.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load implements Store.
func (m *MemoryStore) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	copied := *m.state
	return &copied, nil
}

// Save implements Store.
func (m *MemoryStore) Save(state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.state = &copied
	return nil
}
