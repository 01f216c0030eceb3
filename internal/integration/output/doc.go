// Package output delivers process output to a single consumer.
//
// A Channel serializes every delivery for one process: chunks reach the
// consumer in the order they were read, one call at a time, and the
// termination event is handed over last. Once closed, a Channel delivers
// nothing more.
//
// Chunk boundaries follow the underlying reads and carry no meaning. A
// logical line may span several chunks and one chunk may hold several
// lines; consumers that need lines must split accumulated text themselves.
//
// Accumulator is the caller-side append-only buffer most consumers feed
// from their data callback.
package output
