package console

import (
	"context"
	"strings"

	"github.com/looplab/fsm"

	"kalafw/internal/history"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
	"kalafw/internal/ui"
)

// REPL states and events.
const (
	StateRunning    = "running"
	StateTerminated = "terminated"

	EventTerminate = "terminate"
)

const invalidCommand = "Invalid command or missing IP. Please try again."

// Orchestrator is the part of the firewall monitor the console drives.
type Orchestrator interface {
	AddAllowedIP(ctx context.Context, ip string) error
	ResetRules(ctx context.Context) error
	CleanupRules(ctx context.Context) error
}

// Dispatcher parses console lines and runs the matching handler.
type Dispatcher struct {
	monitor Orchestrator
	history *history.History
	out     *ui.Printer
	logger  *logging.Logger
	metrics *metrics.Collector

	// persist is called by the exit handler before the REPL terminates.
	persist func(ctx context.Context) error

	state *fsm.FSM
}

// NewDispatcher creates a dispatcher in the running state. persist and
// collector may be nil.
func NewDispatcher(monitor Orchestrator, h *history.History, out *ui.Printer, logger *logging.Logger, collector *metrics.Collector, persist func(ctx context.Context) error) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{
		monitor: monitor,
		history: h,
		out:     out,
		logger:  logger,
		metrics: collector,
		persist: persist,
	}
	d.state = fsm.NewFSM(
		StateRunning,
		fsm.Events{
			{Name: EventTerminate, Src: []string{StateRunning}, Dst: StateTerminated},
		},
		fsm.Callbacks{
			"enter_" + StateTerminated: func(_ context.Context, e *fsm.Event) {
				d.logger.Debug("REPL terminated", logging.String("from", e.Src))
			},
		},
	)
	return d
}

// Terminated reports whether the exit command has run.
func (d *Dispatcher) Terminated() bool {
	return d.state.Is(StateTerminated)
}

// State returns the current REPL state.
func (d *Dispatcher) State() string {
	return d.state.Current()
}

// Tokenize splits line on whitespace into a command and its optional
// argument. Tokens after the argument are ignored. Quotes, backslashes and
// '#' have no special meaning; the argument reaches the packet filter exactly
// as typed.
func Tokenize(line string) (command, arg string) {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		command = fields[0]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return command, arg
}

// Dispatch records line in the history and runs its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) {
	d.history.Add(line)

	command, arg := Tokenize(line)

	switch {
	case command == "allow" && arg != "":
		d.record(command)
		d.monitor.AddAllowedIP(ctx, arg)
	case command == "reset":
		d.record(command)
		d.monitor.ResetRules(ctx)
		d.out.Warn("All IPs unblocked.")
	case command == "clear":
		d.record(command)
		d.out.Clear()
	case command == "history":
		d.record(command)
		d.ShowHistory()
	case command == "help":
		d.record(command)
		d.out.Help()
	case command == "exit":
		d.record(command)
		d.exit(ctx)
	default:
		d.invalid()
	}
}

// ShowHistory prints the session history, numbered from 1.
func (d *Dispatcher) ShowHistory() {
	d.out.Notice("Command History:")
	for i, entry := range d.history.Entries() {
		d.out.Warn("%d. %s", i+1, entry)
	}
}

func (d *Dispatcher) exit(ctx context.Context) {
	if d.persist != nil {
		if err := d.persist(ctx); err != nil {
			d.out.Error("Error: Could not save command history.")
			d.logger.Error("Failed to save history", err)
		}
	}
	if err := d.state.Event(ctx, EventTerminate); err != nil {
		d.logger.Error("Invalid state transition", err, logging.String("state", d.state.Current()))
	}
}

func (d *Dispatcher) invalid() {
	d.record("invalid")
	d.out.Error(invalidCommand)
}

func (d *Dispatcher) record(command string) {
	if d.metrics != nil {
		d.metrics.RecordCommand(command)
	}
}
