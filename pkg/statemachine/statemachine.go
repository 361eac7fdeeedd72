// Package statemachine provides a small transition table for enforcing
// one-directional status lifecycles.
//
// Unlike a stateful machine, the table holds no current state: callers pass
// the state they loaded from storage and ask whether an event may fire from
// it. This fits entities whose state lives in database rows rather than in
// memory.
package statemachine

import "fmt"

// State represents a state in the machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// StringState provides a simple string-based state implementation.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent provides a simple string-based event implementation.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }

// Transition defines a state change triggered by an event.
type Transition struct {
	From  State
	To    State
	Event Event
}

// T is shorthand for building a Transition in table literals.
func T(from, to State, event Event) Transition {
	return Transition{From: from, To: to, Event: event}
}

// Table is an immutable set of allowed transitions keyed by (from, event).
type Table struct {
	transitions map[string]map[string]State
}

// NewTable builds a transition table. Duplicate (from, event) pairs are an
// error: the table is deterministic by construction.
func NewTable(transitions ...Transition) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string]State)}

	for _, tr := range transitions {
		if tr.From == nil || tr.To == nil || tr.Event == nil {
			return nil, ErrInvalidTransition
		}
		from, event := tr.From.Name(), tr.Event.Name()
		if _, ok := t.transitions[from]; !ok {
			t.transitions[from] = make(map[string]State)
		}
		if _, dup := t.transitions[from][event]; dup {
			return nil, fmt.Errorf("%w: duplicate transition %s/%s", ErrInvalidTransition, from, event)
		}
		t.transitions[from][event] = tr.To
	}

	return t, nil
}

// MustNewTable is like NewTable but panics on configuration errors.
// Transition tables are static program configuration, so a bad table should
// prevent startup.
func MustNewTable(transitions ...Transition) *Table {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

// Target returns the state reached by firing event from the given state.
// Returns ErrNoTransition if the pair is not in the table.
func (t *Table) Target(from State, event Event) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidTransition
	}
	events, ok := t.transitions[from.Name()]
	if !ok {
		return nil, newNoTransitionError(from.Name(), event.Name())
	}
	to, ok := events[event.Name()]
	if !ok {
		return nil, newNoTransitionError(from.Name(), event.Name())
	}
	return to, nil
}

// Can reports whether event may fire from the given state.
func (t *Table) Can(from State, event Event) bool {
	_, err := t.Target(from, event)
	return err == nil
}
