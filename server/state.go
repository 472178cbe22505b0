package server

import "fmt"

// State represents the lifecycle state of a worker
type State int32

const (
	// StateStarting is entered on construction, before the sockets are bound
	StateStarting State = iota
	// StateRunning means the sockets are bound and accepting
	StateRunning
	// StatePaused means the sockets are released, open connections are still served
	StatePaused
	// StateStopping means a stop is draining open connections
	StateStopping
	// StateStopped is final
	StateStopped
)

var transitions = map[State][]State{
	StateStarting: {StateRunning, StateStopping, StateStopped},
	StateRunning:  {StatePaused, StateStopping, StateStopped},
	StatePaused:   {StateRunning, StateStopping, StateStopped},
	StateStopping: {StateStopped},
}

// canTransition reports whether a worker in state s may move to state to
func (s State) canTransition(to State) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
