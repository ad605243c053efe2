package verification

import (
	"errors"
	"testing"

	"github.com/dhanvantari/dhanvantari/internal/domain/scan"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

func TestFlow_HappyPath(t *testing.T) {
	f := NewFlow()
	steps := []struct {
		run  func() error
		want State
	}{
		{f.StartScan, StateScanning},
		{func() error { return f.Resolved(scan.NewResult(scan.VerdictGenuine, "", "")) }, StateGenuine},
		{f.AskAI, StateAskingAI},
		{f.AIAnswered, StateAIResult},
	}
	for i, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if f.State() != s.want {
			t.Fatalf("step %d: expected %s, got %s", i, s.want, f.State())
		}
	}
	f.Reset()
	if f.State() != StateIdle {
		t.Errorf("expected idle after reset, got %s", f.State())
	}
}

func TestFlow_NonGenuineLandsInUnknown(t *testing.T) {
	for _, v := range []scan.Verdict{scan.VerdictUnknown, scan.VerdictExpired, scan.VerdictRecalled} {
		f := NewFlow()
		f.StartScan()
		if err := f.Resolved(scan.NewResult(v, "", "")); err != nil {
			t.Fatalf("%s: unexpected error: %v", v, err)
		}
		if f.State() != StateUnknown {
			t.Errorf("%s: expected unknown state, got %s", v, f.State())
		}
	}
}

func TestFlow_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *Flow)
		step  func(f *Flow) error
	}{
		{"ask from idle", func(f *Flow) {}, (*Flow).AskAI},
		{"resolve from idle", func(f *Flow) {}, func(f *Flow) error { return f.Resolved(scan.Result{}) }},
		{"scan twice", func(f *Flow) { f.StartScan() }, (*Flow).StartScan},
		{"back to scanning", func(f *Flow) { f.StartScan(); f.Resolved(scan.Result{}) }, (*Flow).StartScan},
		{"answer without asking", func(f *Flow) { f.StartScan(); f.Resolved(scan.Result{}) }, (*Flow).AIAnswered},
		{"ask from redirect", func(f *Flow) { f.StartScan() }, (*Flow).AskAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow()
			tt.setup(f)
			before := f.State()
			if err := tt.step(f); !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if f.State() != before {
				t.Errorf("state changed on illegal transition: %s -> %s", before, f.State())
			}
		})
	}
}
