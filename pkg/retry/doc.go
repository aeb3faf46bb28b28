// Package retry runs an operation again after transient failures, with
// exponential backoff and optional jitter.
//
// The caller decides what is transient:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return runTx(ctx)
//	}, sqlite.IsBusy)
//
// A rejected error comes back unchanged. Running out of attempts returns
// *RetriesExceededError, which unwraps to the last error.
//
// A custom schedule replaces backoff and jitter:
//
//	cfg := retry.Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second}
//	cfg.NextDelay = func(attempt int, prev time.Duration) time.Duration {
//	    return prev + time.Second
//	}
package retry
