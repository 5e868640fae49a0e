package session

import (
	"sync"
	"time"
)

// Step enumerates the conversation states. The set is closed: every switch
// over Step in the flow package handles all of these.
type Step int

const (
	StepIdle Step = iota
	StepProductFields
	StepProductPhoto
	StepOrderName
	StepOrderMenu
	StepOrderDigits
	StepOrderScan
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepProductFields:
		return "awaiting_product_fields"
	case StepProductPhoto:
		return "awaiting_product_photo"
	case StepOrderName:
		return "awaiting_order_name"
	case StepOrderMenu:
		return "order_management"
	case StepOrderDigits:
		return "awaiting_digits"
	case StepOrderScan:
		return "awaiting_scan"
	default:
		return "unknown"
	}
}

// ProductDraft accumulates the add-product form fields between steps.
type ProductDraft struct {
	Barcode string
	Name    string
	Price   float64
}

// State is one user's in-progress form. Overwritten whole on each step.
type State struct {
	Step      Step
	Draft     ProductDraft
	OrderID   int64
	OrderName string
	UpdatedAt time.Time
}

// Store is a process-wide conversation state table keyed by user id. A coarse
// lock serializes all access; throughput is a handful of chat events per
// second at most. State is intentionally not persisted: a restart drops
// in-flight forms.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Get returns the user's current state, if any.
func (s *Store) Get(uid string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[uid]
	return st, ok
}

// Set overwrites the user's state. At most one state per user exists.
func (s *Store) Set(uid string, st State) {
	st.UpdatedAt = time.Now()
	s.mu.Lock()
	s.states[uid] = st
	s.mu.Unlock()
}

// Clear removes the user's state. Clearing an absent state is a no-op.
func (s *Store) Clear(uid string) {
	s.mu.Lock()
	delete(s.states, uid)
	s.mu.Unlock()
}

// Len returns the number of in-flight conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Sweep removes states idle longer than maxIdle and returns the count
// removed. Stale flows would otherwise block users who walked away mid-form.
func (s *Store) Sweep(maxIdle time.Duration) int {
	deadline := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for uid, st := range s.states {
		if st.UpdatedAt.Before(deadline) {
			delete(s.states, uid)
			removed++
		}
	}
	return removed
}
