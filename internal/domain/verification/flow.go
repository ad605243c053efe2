package verification

import (
	"fmt"

	"github.com/dhanvantari/dhanvantari/internal/domain/scan"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateGenuine  State = "genuine"
	StateUnknown  State = "unknown"
	StateAskingAI State = "asking-ai"
	StateAIResult State = "ai-result"
)

var transitions = map[State][]State{
	StateIdle:     {StateScanning},
	StateScanning: {StateGenuine, StateUnknown},
	StateGenuine:  {StateAskingAI},
	StateUnknown:  {StateAskingAI},
	StateAskingAI: {StateAIResult},
}

// Flow tracks one verification session. Reset is the only way back to idle.
type Flow struct {
	state State
}

func NewFlow() *Flow { return &Flow{state: StateIdle} }

func (f *Flow) State() State { return f.state }

func (f *Flow) StartScan() error { return f.to(StateScanning) }

// Resolved moves to genuine or, for every non-genuine verdict, unknown.
func (f *Flow) Resolved(r scan.Result) error {
	if r.Genuine() {
		return f.to(StateGenuine)
	}
	return f.to(StateUnknown)
}

func (f *Flow) AskAI() error { return f.to(StateAskingAI) }

func (f *Flow) AIAnswered() error { return f.to(StateAIResult) }

func (f *Flow) Reset() { f.state = StateIdle }

func (f *Flow) to(next State) error {
	for _, s := range transitions[f.state] {
		if s == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("verification flow %s -> %s: %w", f.state, next, apperr.ErrInvalidTransition)
}
