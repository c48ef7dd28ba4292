// Package machine
package machine

import (
	"fmt"
	"time"
)

// State represents the order-lifecycle state of a single-order strategy.
type State string

const (
	NoOrderState      State = "No Order"
	OrderPendingState State = "Order Pending"
)

// Transition records one state change and the rule that caused it.
type Transition struct {
	FromState State
	ToState   State
	Reason    string
	OrderID   string
	Timestamp time.Time
}

// Machine tracks the current order-lifecycle state and a bounded history of
// transitions for a strategy instance.
type Machine struct {
	currentState   State
	symbol         string
	lastTransition time.Time
	history        []Transition
	maxHistorySize int
}

// New creates a machine in the NoOrder state.
func New(symbol string) *Machine {
	return &Machine{
		currentState:   NoOrderState,
		symbol:         symbol,
		history:        make([]Transition, 0),
		maxHistorySize: 1000, // keep last 1000 transitions
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.currentState
}

// In reports whether the machine is in the given state.
func (m *Machine) In(state State) bool {
	return m.currentState == state
}

// TransitionTo changes the state and records the transition.
func (m *Machine) TransitionTo(newState State, reason, orderID string, now time.Time) {
	m.history = append(m.history, Transition{
		FromState: m.currentState,
		ToState:   newState,
		Reason:    reason,
		OrderID:   orderID,
		Timestamp: now,
	})
	if len(m.history) > m.maxHistorySize {
		m.history = m.history[1:]
	}

	m.currentState = newState
	m.lastTransition = now
}

// History returns the recorded transitions.
func (m *Machine) History() []Transition {
	return m.history
}

// Reset returns the machine to NoOrder.
func (m *Machine) Reset(now time.Time) {
	m.TransitionTo(NoOrderState, "reset", "", now)
}

// String returns a string representation of the machine.
func (m *Machine) String() string {
	return fmt.Sprintf("Machine{symbol: %s, currentState: %s, transitions: %d}",
		m.symbol, m.currentState, len(m.history))
}
