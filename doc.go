// Package threadservice provides bounded worker pools, protected queues and
// named threads behind a small registry of pools keyed by id.
//
// # Quick Start
//
// Initialize the global service at application startup:
//
//	if err := threadservice.InitGlobalService(threadservice.ServiceConfig{}); err != nil {
//		log.Fatal(err)
//	}
//	defer threadservice.ShutdownGlobalService()
//
// Submit work to the global pool:
//
//	res, err := threadservice.Submit("resize", threadservice.TaskFunc(
//		func(ctx context.Context, th *threadservice.Threader) error {
//			return resize(ctx)
//		}), threadservice.GlobalPoolID)
//
// # Key Concepts
//
// ThreadPool: workers are created lazily, one per admission, up to a maximum.
// At most a fixed number of tasks wait for a worker; beyond that a submission
// overflows and the task is discarded. Overflow is reported in the
// AdmissionResult, not as an error.
//
// Threader: one task on one OS thread, with a name, an id and Join. Pool
// workers are Threaders that rename themselves after the task they run.
//
// ProtectedQueue and ProtectedPriorityQueue: mutex-guarded containers with
// blocking, timed and context-bounded reads, used for producer/consumer
// hand-off between threaders.
//
// # Shutdown
//
// DeleteThreadPool(id, true) runs every queued task before returning;
// DeleteThreadPool(id, false) discards queued tasks and waits only for the
// running ones. Cancellation is cooperative: a task observes Interrupt through
// its context.
package threadservice
