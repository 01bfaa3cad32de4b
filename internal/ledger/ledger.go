// Package ledger tracks what is left to check in and redeem for the active sale.
package ledger

import (
	"fmt"
	"sync"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/payload"
)

// Snapshot is a copy of the ledger state, safe to hand out.
type Snapshot struct {
	SaleIdentifier string         `json:"saleIdentifier"`
	Tickets        map[int]bool   `json:"tickets"`
	Food           map[string]int `json:"food"`
	Activities     map[string]int `json:"activities"`
}

// Ledger is the mutable projection of a RedemptionSession.
// Remaining quantities stay within [0, purchased].
type Ledger struct {
	mu         sync.RWMutex
	session    *payload.RedemptionSession
	tickets    map[int]bool
	food       map[string]int
	activities map[string]int
}

func New() *Ledger {
	return &Ledger{}
}

// Initialize replaces the whole ledger state from s. Nothing of the previous state survives.
func (l *Ledger) Initialize(s *payload.RedemptionSession) {
	tickets := make(map[int]bool, len(s.Attendees))
	for _, a := range s.Attendees {
		tickets[a.Index] = a.CheckedIn
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = s
	l.tickets = tickets
	l.food = remainingOf(s.Food)
	l.activities = remainingOf(s.Activities)
}

func remainingOf(items []payload.Redeemable) map[string]int {
	m := make(map[string]int, len(items))
	for _, item := range items {
		m[item.ID] = item.AvailableQuantity
	}
	return m
}

// Clear discards the active session.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = nil
	l.tickets = nil
	l.food = nil
	l.activities = nil
}

// Active reports whether a session is loaded.
func (l *Ledger) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session != nil
}

// Session returns the session the ledger was initialized from, or nil.
func (l *Ledger) Session() *payload.RedemptionSession {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// MarkEntered flags an attendee as entered. Unknown indexes are ignored.
// It reports whether the index was known.
func (l *Ledger) MarkEntered(index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tickets[index]; !ok {
		return false
	}
	l.tickets[index] = true
	return true
}

// Entered reports whether the attendee at index has entered.
func (l *Ledger) Entered(index int) (entered, known bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entered, known = l.tickets[index]
	return entered, known
}

// Redeem consumes quantity units of an item. Asking for more than remains
// leaves zero rather than failing.
func (l *Ledger) Redeem(category payload.Category, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidRequest, "La cantidad debe ser un número entero positivo")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return 0, apperrors.New(apperrors.ErrNoActiveSession, "No hay una venta escaneada")
	}

	bucket, err := l.bucket(category)
	if err != nil {
		return 0, err
	}
	current, ok := bucket[itemID]
	if !ok {
		return 0, apperrors.New(apperrors.ErrUnknownItem, fmt.Sprintf("Item %s no encontrado", itemID))
	}

	remaining := current - quantity
	if remaining < 0 {
		remaining = 0
	}
	bucket[itemID] = remaining
	return remaining, nil
}

// Remaining returns the units left for an item.
func (l *Ledger) Remaining(category payload.Category, itemID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bucket, err := l.bucket(category)
	if err != nil {
		return 0, false
	}
	n, ok := bucket[itemID]
	return n, ok
}

// bucket must be called with l.mu held.
func (l *Ledger) bucket(category payload.Category) (map[string]int, error) {
	switch category {
	case payload.CategoryFood:
		return l.food, nil
	case payload.CategoryActivity:
		return l.activities, nil
	}
	return nil, apperrors.New(apperrors.ErrInvalidRequest, fmt.Sprintf("Categoría desconocida: %s", category))
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Tickets:    make(map[int]bool, len(l.tickets)),
		Food:       make(map[string]int, len(l.food)),
		Activities: make(map[string]int, len(l.activities)),
	}
	if l.session != nil {
		snap.SaleIdentifier = l.session.SaleIdentifier
	}
	for k, v := range l.tickets {
		snap.Tickets[k] = v
	}
	for k, v := range l.food {
		snap.Food[k] = v
	}
	for k, v := range l.activities {
		snap.Activities[k] = v
	}
	return snap
}
