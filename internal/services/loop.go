package services

import "context"

// RunBoundedLoop drives an iterative refinement loop with a hard turn
// ceiling. step reports done=true when the loop's goal is met; an error
// aborts immediately. The return value reports whether the ceiling was hit
// before the goal, which callers may treat as partial success rather than
// failure.
func RunBoundedLoop(ctx context.Context, maxTurns int, step func(ctx context.Context, turn int) (bool, error)) (exhausted bool, err error) {
	for turn := 1; turn <= maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		done, err := step(ctx, turn)
		if err != nil {
			return false, err
		}
		if done {
			return false, nil
		}
	}
	return true, nil
}
