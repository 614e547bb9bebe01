package router

import (
	"fmt"
	"time"

	"github.com/golovatskygroup/data-lens/internal/tool"
)

// State is a step of the routing state machine.
type State string

const (
	AwaitingDecision State = "awaiting_decision"
	ToolSelected     State = "tool_selected"
	ToolExecuted     State = "tool_executed"
	Done             State = "done"
	Failed           State = "failed"
)

var transitions = map[State][]State{
	AwaitingDecision: {AwaitingDecision, ToolSelected, Done, Failed},
	ToolSelected:     {AwaitingDecision, ToolExecuted, Failed},
	ToolExecuted:     {AwaitingDecision, Done, Failed},
}

func (s State) Terminal() bool { return s == Done || s == Failed }

// Decision is the record of one routed question.
type Decision struct {
	ID          string
	Question    string
	Tool        string
	ActionInput string
	Attempts    int
	State       State
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

func (d *Decision) advance(to State) error {
	for _, s := range transitions[d.State] {
		if s == to {
			d.State = to
			return nil
		}
	}
	return fmt.Errorf("router: invalid transition %s -> %s", d.State, to)
}

// Step is one model turn as it appears in the scratchpad.
type Step struct {
	Log         string
	Tool        string
	Input       string
	Observation string
}

type Result struct {
	Decision Decision
	Output   tool.Output
	Steps    []Step
}
