// Package runner is the external-command collaborator port. The engine
// dispatches stage work (execute, tool setup) through a CommandRunner and
// only sees the pass/fail envelope plus captured output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result is the captured outcome of one command invocation.
type Result struct {
	OK       bool
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error // process start or timeout error, nil on clean exit
}

// CommandRunner runs an external command synchronously and reports the
// outcome. Implementations must bound every call with a timeout; the
// classification of a timeout (hard failure vs recorded skip) is the
// caller's job.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string, env map[string]string) Result
}

// DefaultTimeout bounds a single collaborator call when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 10 * time.Minute

// Exec runs commands via os/exec with inherited environment plus the
// caller's overrides.
type Exec struct {
	Timeout time.Duration // zero means DefaultTimeout
}

// Run executes the command and waits for completion.
// A missing binary reports OK=false with ExitCode -1 and the lookup error.
func (e Exec) Run(ctx context.Context, command string, args []string, env map[string]string) Result {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	switch {
	case err == nil:
		res.OK = true
	default:
		res.Err = err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		}
	}
	return res
}

func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// Fake is a scripted CommandRunner for tests. Calls are recorded; results
// are returned in order, with the last result repeated once exhausted.
type Fake struct {
	Results []Result
	Calls   []FakeCall
}

// FakeCall records one invocation seen by a Fake.
type FakeCall struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Run records the call and returns the next scripted result.
func (f *Fake) Run(_ context.Context, command string, args []string, env map[string]string) Result {
	f.Calls = append(f.Calls, FakeCall{Command: command, Args: args, Env: env})
	if len(f.Results) == 0 {
		return Result{OK: true}
	}
	idx := len(f.Calls) - 1
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	}
	return f.Results[idx]
}
