package pipeline

import "fmt"

// State is a stage of a remote job (project upload or cloud run).
type State int

const (
	Idle State = iota
	Packaging
	Submitting
	SubmitFailed
	Queued
	Polling
	PollFailed
	Terminal
	ResultFetching
	FetchFailed
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Packaging:
		return "PACKAGING"
	case Submitting:
		return "SUBMITTING"
	case SubmitFailed:
		return "SUBMIT_FAILED"
	case Queued:
		return "QUEUED"
	case Polling:
		return "POLLING"
	case PollFailed:
		return "POLL_FAILED"
	case Terminal:
		return "TERMINAL"
	case ResultFetching:
		return "RESULT_FETCHING"
	case FetchFailed:
		return "FETCH_FAILED"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Failed tells s is one of the failure states.
func (s State) Failed() bool {
	return s == SubmitFailed || s == PollFailed || s == FetchFailed
}

// Final tells no more transition happens from s.
func (s State) Final() bool {
	return s == Done || s.Failed()
}

// allowed transitions. Key is the source state.
var transitions = map[State][]State{
	Idle:           {Packaging},
	Packaging:      {Submitting, SubmitFailed},
	Submitting:     {Queued, SubmitFailed, Done},
	Queued:         {Polling},
	Polling:        {Terminal, PollFailed},
	Terminal:       {ResultFetching},
	ResultFetching: {Done, FetchFailed},
}

// CanTransit tells whether from -> to is a valid step.
func CanTransit(from State, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is a state change reported to Observer.
type Transition struct {
	From State
	To   State

	// Detail is a human readable note of the transition, like task id or error.
	Detail string
}

func (t Transition) String() string {
	if t.Detail == "" {
		return fmt.Sprintf("%s -> %s", t.From, t.To)
	}
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Detail)
}

// Observer is notified every state transition.
type Observer func(Transition)
