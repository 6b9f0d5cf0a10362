package services

import (
	"context"
	"errors"
	"testing"
)

func TestRunBoundedLoopStopsWhenDone(t *testing.T) {
	var turns int
	exhausted, err := RunBoundedLoop(context.Background(), 5, func(ctx context.Context, turn int) (bool, error) {
		turns++
		return turn == 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exhausted {
		t.Error("loop that met its goal must not report exhaustion")
	}
	if turns != 2 {
		t.Errorf("ran %d turns, want 2", turns)
	}
}

func TestRunBoundedLoopHitsCeiling(t *testing.T) {
	var turns int
	exhausted, err := RunBoundedLoop(context.Background(), 3, func(ctx context.Context, turn int) (bool, error) {
		turns++
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exhausted {
		t.Error("never-done loop must report exhaustion")
	}
	if turns != 3 {
		t.Errorf("ran %d turns, want exactly the ceiling of 3", turns)
	}
}

func TestRunBoundedLoopAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	var turns int
	_, err := RunBoundedLoop(context.Background(), 5, func(ctx context.Context, turn int) (bool, error) {
		turns++
		if turn == 2 {
			return false, boom
		}
		return false, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	if turns != 2 {
		t.Errorf("ran %d turns after error, want 2", turns)
	}
}

func TestRunBoundedLoopHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var turns int
	_, err := RunBoundedLoop(ctx, 10, func(ctx context.Context, turn int) (bool, error) {
		turns++
		cancel()
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if turns != 1 {
		t.Errorf("ran %d turns after cancel, want 1", turns)
	}
}
