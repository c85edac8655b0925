// Package worker runs a cancellable background body that can be paused and
// resumed any number of times.
//
// A Worker owns at most one goroutine at a time. Resume starts it, Pause
// cancels its context and the goroutine winds down at the body's next
// checkpoint. When the goroutine exits an Ended notification is delivered
// through the configured dispatcher, so owners can react on their own
// goroutine:
//
//	owner := worker.NewDispatcher(64)
//	go owner.Run(ctx)
//
//	w := worker.New(body,
//	    worker.WithLoop(true),
//	    worker.WithDispatcher(owner.Dispatch),
//	    worker.WithOnEnded(func(e worker.Ended) {
//	        if e.Err != nil {
//	            // recover
//	        }
//	    }),
//	)
//	w.Resume()
//	defer w.Pause()
package worker
