// Package termination describes how an external process ended.
//
// An Event carries the raw exit code and/or terminating signal exactly as
// the operating system reported them. Classification derives a display
// label from those values so every consumer reports the same outcome:
//
//	exit code 0          -> Success
//	signal 15 (SIGTERM)  -> ManuallyTerminated
//	anything else        -> Failed
//
// Message renders the single status line tool consoles append once a
// process is done.
package termination
