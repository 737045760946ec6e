package executor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// ExecRunner runs the firewall binary as a subprocess, optionally through sudo.
type ExecRunner struct {
	binary string
	sudo   bool
}

func NewExecRunner(binary string, sudo bool) *ExecRunner {
	if binary == "" {
		binary = "iptables"
	}
	return &ExecRunner{binary: binary, sudo: sudo}
}

func (r *ExecRunner) Name() string { return r.binary }

// Argv returns the full argument vector including the program name.
func (r *ExecRunner) Argv(cmd Command) []string {
	argv := append([]string{r.binary}, cmd.Args()...)
	if r.sudo {
		argv = append([]string{"sudo"}, argv...)
	}
	return argv
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) Result {
	argv := r.Argv(cmd)
	start := time.Now()

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	res := Result{
		Command:  cmd,
		OK:       err == nil,
		Output:   strings.TrimSpace(string(out)),
		Duration: time.Since(start),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// the process never started
		res.ExitCode = -1
	}
	return res
}

// DryRun reports success without running anything.
type DryRun struct {
	argv *ExecRunner
}

func NewDryRun(binary string, sudo bool) *DryRun {
	return &DryRun{argv: NewExecRunner(binary, sudo)}
}

func (d *DryRun) Name() string { return "dry-run" }

func (d *DryRun) Run(_ context.Context, cmd Command) Result {
	return Result{
		Command: cmd,
		OK:      true,
		Output:  strings.Join(d.argv.Argv(cmd), " "),
	}
}
