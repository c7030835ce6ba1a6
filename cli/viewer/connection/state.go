package connection

import (
	"errors"
	"fmt"
	"sync"
)

// State of the telemetry stream connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a state transition.
type Event int

const (
	EventDial Event = iota
	EventOpened
	EventFailed
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventDial:
		return "dial"
	case EventOpened:
		return "opened"
	case EventFailed:
		return "failed"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var ErrInvalidTransition = errors.New("недопустимый переход состояния соединения")

// Dialing again from Closed or Errored is only done by a retry policy.
var transitions = map[State]map[Event]State{
	Disconnected: {EventDial: Connecting},
	Connecting:   {EventOpened: Open, EventFailed: Errored, EventClosed: Closed},
	Open:         {EventFailed: Errored, EventClosed: Closed},
	Closed:       {EventDial: Connecting},
	Errored:      {EventDial: Connecting},
}

// TransitionFunc observes a completed transition.
type TransitionFunc func(from, to State, ev Event)

// Machine is the connection lifecycle state machine.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers []TransitionFunc
}

func NewMachine() *Machine {
	return &Machine{state: Disconnected}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTransition registers fn to run after every successful transition.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Fire applies ev and returns the new state.
func (m *Machine) Fire(ev Event) (State, error) {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[from][ev]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	m.state = to
	observers := append([]TransitionFunc(nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(from, to, ev)
	}
	return to, nil
}
