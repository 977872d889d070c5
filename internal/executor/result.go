package executor

import "time"

// Result is the one-shot outcome of a single launch call, distinct from
// the executor's lifecycle state. The hierarchy is closed.
type Result interface {
	result()
}

// Success reports a clean exit (code 0).
type Success struct {
	ExitCode int
	Duration time.Duration
}

// Crashed reports an abnormal exit with a captured exit code. Signal
// deaths are mapped to 128+signal, so a SIGKILL reports 137.
type Crashed struct {
	ExitCode int
	Message  string
	Duration time.Duration
}

// Error reports a launch that never produced a process exit: admission
// rejection, missing executable, uninitialized runtime, or spawn failure.
type Error struct {
	Message string
}

func (Success) result() {}
func (Crashed) result() {}
func (Error) result()   {}
