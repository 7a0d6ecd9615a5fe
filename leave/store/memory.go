// Package store provides an in-memory leave.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	balances map[balanceKey]leave.Balance
	requests map[string]leave.Request
}

type balanceKey struct {
	EmployeeID string
	Category   leave.Category
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]leave.Balance),
		requests: make(map[string]leave.Request),
	}
}

var _ leave.Store = (*Memory)(nil)

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, employeeID string, category leave.Category) (leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.balances[balanceKey{employeeID, category}]
	if !ok {
		return leave.Balance{}, &leave.NotFoundError{Kind: "balance", ID: employeeID + "/" + string(category)}
	}
	return b, nil
}

func (m *Memory) ListBalances(_ context.Context, employeeID string) ([]leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Balance
	for _, c := range leave.Categories() {
		if b, ok := m.balances[balanceKey{employeeID, c}]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) CreateBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{b.EmployeeID, b.Category}
	if _, exists := m.balances[k]; exists {
		return &leave.ConflictError{Message: "balance row already exists"}
	}
	b.Version = 1
	m.balances[k] = b
	return nil
}

func (m *Memory) UpdateBalance(_ context.Context, b leave.Balance, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{b.EmployeeID, b.Category}
	current, ok := m.balances[k]
	if !ok {
		return &leave.NotFoundError{Kind: "balance", ID: b.EmployeeID + "/" + string(b.Category)}
	}
	if current.Version != expectedVersion {
		return leave.ErrConcurrentModification
	}
	b.Version = expectedVersion + 1
	m.balances[k] = b
	return nil
}

func (m *Memory) ListEmployeeIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for k := range m.balances {
		if !seen[k.EmployeeID] {
			seen[k.EmployeeID] = true
			ids = append(ids, k.EmployeeID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return &leave.ConflictError{RequestID: r.ID, Message: "request id already exists"}
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return leave.Request{}, &leave.NotFoundError{Kind: "request", ID: id}
	}
	return r, nil
}

func (m *Memory) UpdateRequest(_ context.Context, r leave.Request, expected leave.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.requests[r.ID]
	if !ok {
		return &leave.NotFoundError{Kind: "request", ID: r.ID}
	}
	if current.Status != expected {
		return leave.ErrConcurrentModification
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) ListByEmployee(_ context.Context, employeeID string) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Request
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Memory) ListByStatus(_ context.Context, status leave.Status) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Request
	for _, r := range m.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}

func (m *Memory) ListApprovedInRange(_ context.Context, employeeID string, from, to time.Time) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Request
	for _, r := range m.requests {
		if r.EmployeeID != employeeID || r.Status != leave.StatusApproved {
			continue
		}
		if r.EndDate.Before(from) || r.StartDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}
