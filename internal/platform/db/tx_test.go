package db

import (
	"context"
	"errors"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

func TestNoopTxRunner_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	called := false
	err := NoopTxRunner{}.WithTx(context.Background(), func(ctx context.Context) error {
		called = true
		return want
	})
	if !called {
		t.Error("expected fn to be called")
	}
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}
