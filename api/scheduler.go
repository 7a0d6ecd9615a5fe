/*
scheduler.go - Policy-year allocation scheduler

PURPOSE:
  Periodically checks whether a new policy year has started and, when it
  has, applies the configured per-category allocations to every employee
  holding balance rows.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Applies at most once per calendar year (tracked in memory; re-running
    after a restart is harmless because ResetAllocation is idempotent for
    an unchanged allocation)
  - Used and pending carry over untouched; only the allocation is rewritten
  - A reset that would fall below an employee's committed consumption fails
    for that row alone and is logged, the sweep continues

USAGE:
  scheduler := NewAllocationScheduler(ledger, balances, defaults, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// AllocationScheduler applies policy-year allocation resets.
type AllocationScheduler struct {
	Ledger        *leave.Ledger
	Balances      leave.BalanceStore
	Defaults      map[leave.Category]decimal.Decimal
	CheckInterval time.Duration
	Enabled       bool

	logger      *zap.Logger
	ticker      *time.Ticker
	stop        chan bool
	wg          sync.WaitGroup
	mu          sync.Mutex
	appliedYear int
}

// NewAllocationScheduler creates a new scheduler. The defaults map holds the
// allocation in days each category resets to at the year boundary.
func NewAllocationScheduler(ledger *leave.Ledger, balances leave.BalanceStore, defaults map[leave.Category]decimal.Decimal, logger *zap.Logger) *AllocationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationScheduler{
		Ledger:        ledger,
		Balances:      balances,
		Defaults:      defaults,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		logger:        logger.Named("scheduler"),
		stop:          make(chan bool),
		// Assume the current year's allocations are already in place at
		// boot; the first sweep happens at the next year boundary.
		appliedYear: time.Now().UTC().Year(),
	}
}

// Start begins the scheduler.
func (s *AllocationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.logger.Info("started", zap.Duration("check_interval", s.CheckInterval))
}

// Stop stops the scheduler.
func (s *AllocationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("stopped")
	}
}

func (s *AllocationScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndApply(time.Now().UTC())
		case <-s.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (s *AllocationScheduler) RunNow(now time.Time) {
	s.checkAndApply(now)
}

func (s *AllocationScheduler) checkAndApply(now time.Time) {
	year := now.Year()
	s.mu.Lock()
	if year <= s.appliedYear {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info("applying policy-year allocations", zap.Int("year", year))

	employees, err := s.Balances.ListEmployeeIDs(ctx)
	if err != nil {
		// The year stays unmarked; the next tick retries the sweep.
		s.logger.Error("failed to list employees", zap.Error(err))
		return
	}

	applied := 0
	failed := 0
	for _, employeeID := range employees {
		for category, allocated := range s.Defaults {
			if err := s.Ledger.ResetAllocation(ctx, employeeID, category, allocated); err != nil {
				failed++
				s.logger.Warn("allocation reset failed",
					zap.String("employee_id", employeeID),
					zap.String("category", string(category)),
					zap.Error(err),
				)
				continue
			}
			applied++
		}
	}

	// Marked only after the sweep ran. Row-level failures are logged above
	// and do not block the year; a failed listing does.
	s.mu.Lock()
	s.appliedYear = year
	s.mu.Unlock()

	s.logger.Info("allocation sweep completed",
		zap.Int("year", year),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
	)
}
