package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/history"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
	"kalafw/internal/ui"
)

// Reason tells how a session ended.
type Reason string

const (
	ReasonExit      Reason = "exit"
	ReasonInterrupt Reason = "interrupt"
	ReasonEOF       Reason = "eof"
	ReasonError     Reason = "error"
)

// Guard runs its release function exactly once, however many times Release
// is called.
type Guard struct {
	once    sync.Once
	release func()
}

func NewGuard(release func()) *Guard {
	return &Guard{release: release}
}

func (g *Guard) Release() {
	g.once.Do(g.release)
}

// Options configures a Session.
type Options struct {
	SaveHistoryOnInterrupt bool
	// Cleanup, when set, is released by Run instead of a guard of its own.
	// Callers arm it right after the packet filter is reset.
	Cleanup *Guard
}

// Session ties the line reader, dispatcher and history store together and
// guarantees that the packet filter is reverted when it ends.
type Session struct {
	opts       Options
	reader     LineReader
	monitor    Orchestrator
	store      history.Store
	history    *history.History
	dispatcher *Dispatcher
	out        *ui.Printer
	logger     *logging.Logger

	// entries loaded from the store at start
	prior      []string
	loadFailed bool
}

// NewSession wires a session. store may be history.NopStore{}.
func NewSession(opts Options, reader LineReader, monitor Orchestrator, store history.Store, out *ui.Printer, logger *logging.Logger, collector *metrics.Collector) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Session{
		opts:    opts,
		reader:  reader,
		monitor: monitor,
		store:   store,
		history: history.New(),
		out:     out,
		logger:  logger,
	}
	s.dispatcher = NewDispatcher(monitor, s.history, out, logger, collector, s.SaveHistory)
	return s
}

// History returns the commands entered during this session.
func (s *Session) History() *history.History {
	return s.history
}

// Start prints the help and loads prior history into recall. The banner is
// printed by the caller before the firewall is reset.
func (s *Session) Start(ctx context.Context) {
	s.out.Notice("KalaFireWall CLI")
	s.out.Help()

	prior, err := s.store.Load(ctx)
	if err != nil {
		s.loadFailed = true
		s.logger.Warn("Failed to load command history, it will not be saved", logging.Error(err))
		return
	}
	s.prior = prior
	for _, line := range prior {
		s.reader.AddHistory(line)
	}
	s.logger.Debug("Command history loaded", logging.Int("entries", len(prior)))
}

// SaveHistory writes prior and current session entries to the store. It
// refuses when prior entries could not be loaded, since the write replaces
// whatever the store holds.
func (s *Session) SaveHistory(ctx context.Context) error {
	if s.loadFailed {
		return coreerrors.NewHistoryError("prior history was not loaded, not overwriting it", nil)
	}
	entries := append(append([]string(nil), s.prior...), s.history.Entries()...)
	return s.store.Save(ctx, entries)
}

// Run reads and dispatches lines until exit, interrupt or end of input.
// Cleanup runs exactly once on every path, including a panic in a handler.
func (s *Session) Run(ctx context.Context) (reason Reason) {
	guard := s.opts.Cleanup
	if guard == nil {
		guard = NewGuard(func() {
			// ctx may already be cancelled by a signal; cleanup must still run
			s.monitor.CleanupRules(context.WithoutCancel(ctx))
		})
	}
	defer guard.Release()
	defer func() {
		s.logger.LogSessionStop(string(reason))
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblock a pending read
			s.reader.Close()
		case <-done:
		}
	}()

	for !s.dispatcher.Terminated() {
		line, err := s.reader.Readline()
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, ErrInterrupt):
				s.interrupted(ctx)
				return ReasonInterrupt
			case errors.Is(err, io.EOF):
				return ReasonEOF
			default:
				s.logger.Error("Failed to read input", err)
				return ReasonError
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.reader.AddHistory(line)
		s.dispatcher.Dispatch(ctx, line)
	}
	return ReasonExit
}

func (s *Session) interrupted(ctx context.Context) {
	s.out.Plain("")
	s.out.Warn("Interrupted. Exiting and resetting iptables rules.")
	if !s.opts.SaveHistoryOnInterrupt {
		return
	}
	if err := s.SaveHistory(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("Failed to save history on interrupt", err)
	}
}
