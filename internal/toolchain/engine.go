// Package toolchain invokes the external Java toolchain over staged workspaces.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	appErr "autojunit/pkg/errors"
)

// Invocation is one bounded external command run.
type Invocation struct {
	Cmd     []string
	Dir     string
	Timeout time.Duration // wall clock limit, 0 means unbounded
}

// RunResult captures the observable outcome of one invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// runCommand executes inv and waits for it to finish. The child runs in
// its own process group so a timeout kill also reaps forked JVM children.
// A non-zero exit is reported in RunResult, not as an error.
func runCommand(ctx context.Context, inv Invocation) (RunResult, error) {
	if len(inv.Cmd) == 0 {
		return RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("command is required")
	}

	cmd := exec.CommandContext(ctx, inv.Cmd[0], inv.Cmd[1:]...)
	cmd.Dir = inv.Dir
	cmd.SysProcAttr = sysProcAttr()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, appErr.Wrapf(err, appErr.SetupFailed, "start %s failed", inv.Cmd[0])
	}

	var timedOut atomic.Bool
	killCtx, cancelKill := context.WithCancel(ctx)
	defer cancelKill()

	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if inv.Timeout > 0 {
			wallTimer = time.After(inv.Timeout)
		}
		select {
		case <-killCtx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := RunResult{
		ExitCode: exitCodeFromErr(waitErr, cmd.ProcessState),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut.Load(),
		Duration: time.Since(start),
	}
	if res.TimedOut && res.ExitCode == 0 {
		res.ExitCode = -1
	}
	return res, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
