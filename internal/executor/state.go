package executor

import (
	"fmt"
	"time"
)

// LaunchState is the per-executor lifecycle. The hierarchy is closed:
// exactly the six variants below exist, and at most one non-terminal
// state is active per executor at a time.
type LaunchState interface {
	Terminal() bool
	String() string
	launchState()
}

type Idle struct{}

type Preparing struct {
	Message string
}

type Launching struct{}

type Running struct {
	PID       int // 0 when the platform gave no usable id
	StartedAt time.Time
}

type Completed struct {
	ExitCode int
	Duration time.Duration
}

type Failed struct {
	Reason      string
	ExitCode    int
	HasExitCode bool
}

func (Idle) launchState()      {}
func (Preparing) launchState() {}
func (Launching) launchState() {}
func (Running) launchState()   {}
func (Completed) launchState() {}
func (Failed) launchState()    {}

func (Idle) Terminal() bool      { return false }
func (Preparing) Terminal() bool { return false }
func (Launching) Terminal() bool { return false }
func (Running) Terminal() bool   { return false }
func (Completed) Terminal() bool { return true }
func (Failed) Terminal() bool    { return true }

func (Idle) String() string { return "idle" }

func (s Preparing) String() string { return "preparing: " + s.Message }

func (Launching) String() string { return "launching" }

func (s Running) String() string {
	if s.PID == 0 {
		return "running (pid unknown)"
	}
	return fmt.Sprintf("running (pid %d)", s.PID)
}

func (s Completed) String() string {
	return fmt.Sprintf("completed (exit %d after %dms)", s.ExitCode, s.Duration.Milliseconds())
}

func (s Failed) String() string {
	if s.HasExitCode {
		return fmt.Sprintf("failed: %s (exit %d)", s.Reason, s.ExitCode)
	}
	return "failed: " + s.Reason
}
