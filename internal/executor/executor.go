package executor

import (
	"context"
	"fmt"
	"time"

	"kalafw/internal/config"
	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
)

// Result is the outcome of running one Command. Output is kept for
// diagnostics only and is never parsed.
type Result struct {
	Command  Command
	OK       bool
	ExitCode int
	Output   string
	Duration time.Duration
	Err      error
}

// Error returns nil on success, otherwise a COMMAND_FAILED error.
func (r Result) Error() error {
	if r.OK {
		return nil
	}
	msg := fmt.Sprintf("exit code %d", r.ExitCode)
	if r.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, r.Output)
	}
	return coreerrors.NewCommandError(r.Command.String(), msg, r.Err)
}

// Executor runs firewall commands. Run blocks until the command finishes;
// there is no timeout unless ctx carries one.
type Executor interface {
	Name() string
	Run(ctx context.Context, cmd Command) Result
}

// New builds the executor selected by cfg.Backend, wrapped with logging and
// metrics.
func New(cfg config.FirewallConfig, logger *logging.Logger, collector *metrics.Collector) (Executor, error) {
	var backend Executor

	switch cfg.Backend {
	case config.BackendExec, "":
		backend = NewExecRunner(cfg.Binary, cfg.Sudo)
	case config.BackendGoIPTables:
		r, err := NewIPTablesRunner()
		if err != nil {
			return nil, err
		}
		backend = r
	case config.BackendDryRun:
		backend = NewDryRun(cfg.Binary, cfg.Sudo)
	default:
		return nil, coreerrors.NewValidationError("firewall.backend", fmt.Sprintf("unsupported backend: %s", cfg.Backend))
	}

	return Instrument(backend, logger, collector), nil
}

type instrumented struct {
	next      Executor
	logger    *logging.Logger
	collector *metrics.Collector
}

// Instrument logs every invocation and records it in collector. Either may be nil.
func Instrument(next Executor, logger *logging.Logger, collector *metrics.Collector) Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &instrumented{next: next, logger: logger, collector: collector}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Run(ctx context.Context, cmd Command) Result {
	res := i.next.Run(ctx, cmd)
	i.logger.LogCommand(append([]string{i.next.Name()}, cmd.Args()...), res.Duration, res.Error())
	if i.collector != nil {
		i.collector.RecordInvocation(string(cmd.Kind), res.OK, res.Duration)
	}
	return res
}
