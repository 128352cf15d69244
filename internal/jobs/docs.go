// Package jobs provides scheduled background tasks for the order engine.
//
// This package implements cron-based jobs using github.com/robfig/cron/v3
// to handle the periodic operations the lifecycle engine needs.
//
// # Available Jobs
//
// 1. OrderDispatchJob - Runs every five seconds to run a dispatch round for
// pending orders without a live offer, including orders whose offer expired.
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	// Create job manager with required dependencies
//	jobManager := jobs.NewJobManager(orderRepository, dispatchHandler, logger)
//
//	// Start all jobs
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//
//	// Stop all jobs when shutting down
//	defer jobManager.StopAll()
//
// # Error Handling
//
// The dispatch job treats each order independently: a failing candidate is
// logged and skipped so it cannot starve the rest of the queue. A held
// dispatch lock is not an error; the handler returns quietly and the next
// round retries.
package jobs
