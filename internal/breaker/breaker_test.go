package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClosedPassesThroughOnSuccess(t *testing.T) {
	b := New(Settings{Name: "t1", FailureThreshold: 3, Cooldown: 50 * time.Millisecond})

	v, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("expected 42/nil, got %d/%v", v, err)
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed state, got %s", b.State())
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	b := New(Settings{Name: "t2", FailureThreshold: 3, Cooldown: time.Second})
	wantErr := errors.New("upstream 500")

	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("call %d: expected wrapped upstream error, got %v", i, err)
		}
	}

	_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		t.Fatalf("fn must not be invoked once breaker is open")
		return 0, nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen on the call after threshold, got %v", err)
	}
}

func TestSingleSuccessResetsFailureCount(t *testing.T) {
	b := New(Settings{Name: "t3", FailureThreshold: 3, Cooldown: time.Second})
	failing := errors.New("fail")

	for i := 0; i < 2; i++ {
		_, _ = Call(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, failing
		})
	}

	// One success resets the consecutive-failure counter.
	_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if err != nil {
		t.Fatalf("expected success to pass through, got %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, failing
		})
		if !errors.Is(err, failing) {
			t.Fatalf("call %d: expected upstream error (breaker still closed), got %v", i, err)
		}
	}
}

func TestHalfOpenRecoversToClosed(t *testing.T) {
	b := New(Settings{Name: "t4", FailureThreshold: 2, Cooldown: 30 * time.Millisecond})
	failing := errors.New("fail")

	for i := 0; i < 2; i++ {
		_, _ = Call(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, failing
		})
	}
	if b.State() != "open" {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}

	time.Sleep(50 * time.Millisecond)

	v, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("expected probe to succeed after cooldown, got %d/%v", v, err)
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed after successful half-open probe, got %s", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Settings{Name: "t5", FailureThreshold: 2, Cooldown: 30 * time.Millisecond})
	failing := errors.New("fail")

	for i := 0; i < 2; i++ {
		_, _ = Call(context.Background(), b, func(ctx context.Context) (int, error) {
			return 0, failing
		})
	}
	time.Sleep(50 * time.Millisecond)

	_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, failing
	})
	if !errors.Is(err, failing) {
		t.Fatalf("expected probe failure to surface, got %v", err)
	}
	if b.State() != "open" {
		t.Fatalf("expected breaker to reopen after failed probe, got %s", b.State())
	}
}
