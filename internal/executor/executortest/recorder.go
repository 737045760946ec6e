// Package executortest provides a recording executor for tests.
package executortest

import (
	"context"
	"errors"
	"sync"

	"kalafw/internal/executor"
)

// Recorder records every command it is asked to run. Commands matching Fail
// are reported as failed with exit code 1.
type Recorder struct {
	Fail func(executor.Command) bool

	mu   sync.Mutex
	cmds []executor.Command
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Run(_ context.Context, cmd executor.Command) executor.Result {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()

	if r.Fail != nil && r.Fail(cmd) {
		return executor.Result{
			Command:  cmd,
			ExitCode: 1,
			Output:   "Permission denied (you must be root)",
			Err:      errors.New("exit status 1"),
		}
	}
	return executor.Result{Command: cmd, OK: true}
}

// Commands returns the recorded commands in order.
func (r *Recorder) Commands() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.cmds...)
}

// Strings returns the recorded commands rendered as iptables arguments.
func (r *Recorder) Strings() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}

// FailKind fails every command of the given kinds.
func FailKind(kinds ...executor.Kind) func(executor.Command) bool {
	return func(c executor.Command) bool {
		for _, k := range kinds {
			if c.Kind == k {
				return true
			}
		}
		return false
	}
}
