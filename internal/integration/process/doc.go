// Package process tracks external processes spawned by the execution engine.
//
// # Handle
//
// A Handle is the live identity of one spawned process:
//
//   - PID and a unique execution ID
//   - The requested program and arguments
//   - Spawn time and whether it runs elevated
//   - Liveness, exit state and a Done channel
//
// Handles are created and owned by the engine. Callers read them; they
// never mutate them.
//
// # Registry
//
// The Registry maps process IDs to handles so that a cancellation request
// coming from anywhere in the application reaches the right process:
//
//	h, err := process.DefaultRegistry.Lookup(pid)
//	if errors.Is(err, process.ErrNotFound) {
//	    // nothing to cancel
//	}
//
// Entries live from a successful spawn until the process has been reaped
// and its termination reported.
//
// # Thread Safety
//
// Both Handle and Registry are safe for concurrent use.
package process
