// Package jobs runs the background work of the Craftlink API.
//
// Jobs run independently of HTTP request handling, each on its own ticker
// from an injected clock.Clock so tests can drive them with clock.Fake:
//
//   - ExpiryReconcilerJob: reveals engagements whose visibility window expired (every minute)
//   - RatingRecomputeJob: rebuilds craftsman rating roll-ups (every 6 hours)
//
// Usage:
//
//	job := jobs.NewExpiryReconcilerJob(jobs.ExpiryReconcilerJobConfig{
//	    Reconciler: reconciler,
//	    Timeout:    30 * time.Second,
//	})
//	job.Start()
//	defer job.Stop()
//
// # Error Handling
//
// A failed tick is logged and abandoned; the next tick starts from scratch.
// Ticks never overlap, and Stop cancels a tick that is still running.
package jobs
