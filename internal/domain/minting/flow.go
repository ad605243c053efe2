package minting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type State string

const (
	StateIdle         State = "idle"
	StateWalletCheck  State = "wallet-check"
	StateNetworkCheck State = "network-check"
	StateSubmitting   State = "submitting"
	StateConfirming   State = "confirming"
	StateSuccess      State = "success"
	StateFailure      State = "failure"
)

// Client-signed confirmations skip the wallet check and submission, going
// idle -> network-check -> confirming.
var transitions = map[State][]State{
	StateIdle:         {StateWalletCheck, StateNetworkCheck},
	StateWalletCheck:  {StateNetworkCheck, StateFailure},
	StateNetworkCheck: {StateSubmitting, StateConfirming, StateFailure},
	StateSubmitting:   {StateConfirming, StateFailure},
	StateConfirming:   {StateSuccess, StateFailure},
}

// Flow is one mint attempt. Every transition is logged with the batch.
type Flow struct {
	state State
	log   zerolog.Logger
}

func newFlow(ctx context.Context, batch string) *Flow {
	return &Flow{
		state: StateIdle,
		log:   zerolog.Ctx(ctx).With().Str("batch_number", batch).Logger(),
	}
}

func (f *Flow) State() State { return f.state }

func (f *Flow) to(next State) error {
	for _, s := range transitions[f.state] {
		if s == next {
			f.log.Info().Str("from", string(f.state)).Str("to", string(next)).Msg("mint state")
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("mint flow %s -> %s: %w", f.state, next, apperr.ErrInvalidTransition)
}

// fail moves to failure and returns cause.
func (f *Flow) fail(cause error) error {
	if err := f.to(StateFailure); err != nil {
		return err
	}
	f.log.Warn().Err(cause).Msg("mint failed")
	return cause
}
