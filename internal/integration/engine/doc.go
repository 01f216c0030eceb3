// Package engine spawns external programs and supervises them.
//
// The Engine is the single place where tool processes are started. A
// caller supplies a Request plus two callbacks and gets back as soon as the
// process is running:
//
//	eng := engine.New(engine.WithLogger(logger))
//
//	out, err := eng.Execute(ctx, engine.Request{Program: "echo", Args: []string{"hello"}},
//	    func(chunk string) { fmt.Print(chunk) },
//	    func(ev termination.Event) { fmt.Println(ev.Message()) },
//	)
//	if err != nil {
//	    var spawnErr *engine.SpawnError
//	    errors.As(err, &spawnErr) // the program never ran
//	}
//
//	// later, from anywhere
//	eng.Cancel(out.PID)
//
// # Delivery
//
// Output of stdout and stderr is merged in arrival order and delivered one
// chunk at a time. Every spawned process produces exactly one termination
// event, after all of its output. Spawn failures are returned synchronously
// as *SpawnError and never produce a termination event.
//
// # Elevated Mode
//
// Elevated requests run behind an authorization helper (pkexec by default).
// Execute waits until the helper has either authorized the request, in
// which case it behaves exactly like a direct spawn, or given up, in which
// case the request fails with a SpawnError of reason ReasonElevationDenied.
//
// # Cancellation
//
// Cancel sends a termination request and returns immediately; the
// termination event remains the only proof that the process has stopped.
// Cancelling an unknown or finished process is a no-op. There are no
// built-in timeouts; CancelAfter schedules a delayed Cancel.
package engine
