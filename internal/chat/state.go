package chat

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// State is the lifecycle state of a [Session].
type State int

// Session states.
const (
	StateIdle State = iota
	StateGenerating
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrBusy happens when a generation is started while another one is
	// still running on the same session.
	ErrBusy = errors.New("a generation is already in progress")

	// ErrInvalidTransition happens when a state change is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
)

var transitions = map[State][]State{
	StateIdle:       {StateGenerating},
	StateReady:      {StateGenerating},
	StateError:      {StateGenerating},
	StateGenerating: {StateReady, StateError},
}

type machine struct {
	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// begin moves into [StateGenerating], failing with [ErrBusy] if a
// generation is already running.
func (m *machine) begin() error {
	return m.transition(StateGenerating)
}

func (m *machine) transition(to State) error {
	m.mu.Lock()
	from := m.state
	if from == StateGenerating && to == StateGenerating {
		m.mu.Unlock()
		return ErrBusy
	}
	if !slices.Contains(transitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}
