// Package resilience guards process launches against transient failure.
//
// It provides three primitives that the process runner composes around an
// engine run:
//
//   - Retry relaunches a command whose start failed, with exponential backoff.
//   - CircuitBreaker stops launching a binary that keeps failing to start.
//   - Bulkhead caps the number of processes running at once.
//
// Composed by hand:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("ffmpeg"))
//
//	res, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (*process.Result, error) {
//		return resilience.Call(cb, func() (*process.Result, error) {
//			return resilience.Hold(ctx, bh, func() (*process.Result, error) {
//				return engine.Run(ctx, cmd)
//			})
//		})
//	})
package resilience
