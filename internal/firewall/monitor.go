package firewall

import (
	"bufio"
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/executor"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
	"kalafw/internal/ui"
)

// Policy decides what a command sequence does after a failed invocation.
type Policy int

const (
	// ContinueOnError runs every command and reports all failures.
	ContinueOnError Policy = iota
	// AbortOnError stops at the first failure.
	AbortOnError
)

// Dependencies contains all external dependencies for the monitor
type Dependencies struct {
	Executor executor.Executor
	Printer  *ui.Printer
	Logger   *logging.Logger
	Metrics  *metrics.Collector
}

// Monitor owns the allow-list and translates operator intents into packet
// filter command sequences. The external rule table is never read back.
type Monitor struct {
	exec    executor.Executor
	out     *ui.Printer
	logger  *logging.Logger
	metrics *metrics.Collector

	mu      sync.RWMutex
	allowed map[string]struct{}
}

// New resets the packet filter to default-deny and, when rulesFile is set,
// allows every address listed in it.
func New(ctx context.Context, deps Dependencies, rulesFile string) *Monitor {
	m := &Monitor{
		exec:    deps.Executor,
		out:     deps.Printer,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		allowed: make(map[string]struct{}),
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.out == nil {
		m.out = ui.NewPrinter(os.Stdout, false)
	}

	m.ResetRules(ctx)
	if rulesFile != "" {
		m.LoadRulesFromFile(ctx, rulesFile)
	}
	return m
}

// run executes cmds in order under policy and returns the failed results.
func (m *Monitor) run(ctx context.Context, policy Policy, cmds ...executor.Command) []executor.Result {
	var failed []executor.Result
	for _, cmd := range cmds {
		res := m.exec.Run(ctx, cmd)
		if res.OK {
			continue
		}
		failed = append(failed, res)
		if policy == AbortOnError {
			break
		}
	}
	return failed
}

func joinFailures(failed []executor.Result) error {
	errs := make([]error, 0, len(failed))
	for _, res := range failed {
		errs = append(errs, res.Error())
	}
	return errors.Join(errs...)
}

// ResetRules flushes the filter table, deletes custom chains and sets INPUT
// and OUTPUT to DROP. Failures are reported once and never stop the sequence.
func (m *Monitor) ResetRules(ctx context.Context) error {
	failed := m.run(ctx, ContinueOnError,
		executor.Flush(),
		executor.DeleteChains(),
		executor.SetPolicy(executor.ChainInput, executor.TargetDrop),
		executor.SetPolicy(executor.ChainOutput, executor.TargetDrop),
	)
	if len(failed) > 0 {
		m.out.Error("Error: Could not reset iptables rules. Check permissions.")
		err := joinFailures(failed)
		m.logger.Warn("Reset left the packet filter in a partial state",
			logging.Int("failed", len(failed)), logging.Error(err))
		return err
	}
	m.out.Warn("Default policy set to DROP for all IPs.")
	return nil
}

// AddAllowedIP accepts traffic from and to ip. An address already in the
// allow-list is skipped without issuing anything. The address is recorded
// only when both accept rules were installed.
func (m *Monitor) AddAllowedIP(ctx context.Context, ip string) error {
	if m.IsAllowed(ip) {
		return nil
	}

	failed := m.run(ctx, AbortOnError,
		executor.AcceptFrom(ip),
		executor.AcceptTo(ip),
	)
	if len(failed) > 0 {
		m.out.Error("Error: Could not allow IP: %s. Check permissions.", ip)
		return joinFailures(failed)
	}

	m.mu.Lock()
	m.allowed[ip] = struct{}{}
	n := len(m.allowed)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetAllowedIPs(n)
	}
	m.out.Info("Allowed IP: %s", ip)
	return nil
}

// CleanupRules sets INPUT, FORWARD and OUTPUT back to ACCEPT.
func (m *Monitor) CleanupRules(ctx context.Context) error {
	failed := m.run(ctx, ContinueOnError,
		executor.SetPolicy(executor.ChainInput, executor.TargetAccept),
		executor.SetPolicy(executor.ChainForward, executor.TargetAccept),
		executor.SetPolicy(executor.ChainOutput, executor.TargetAccept),
	)
	if len(failed) > 0 {
		m.out.Error("Error: Could not reset iptables rules on exit. Check permissions.")
		return joinFailures(failed)
	}
	m.out.Plain("")
	m.out.Info("iptables rules reset to allow all traffic on exit.")
	return nil
}

// LoadRulesFromFile allows every non-blank line of path. Addresses are not
// validated here. A missing file is reported and leaves the allow-list as is.
func (m *Monitor) LoadRulesFromFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		m.out.Error("Error: Rules file not found: %s", path)
		err = coreerrors.NewRulesFileError(path, err)
		m.logger.LogRulesLoad(path, 0, err)
		return err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ip := strings.TrimSpace(scanner.Text())
		if ip == "" {
			continue
		}
		count++
		// failures are already reported by AddAllowedIP
		_ = m.AddAllowedIP(ctx, ip)
	}
	if err := scanner.Err(); err != nil {
		m.out.Error("Error: Could not read rules file: %s", path)
		err = coreerrors.NewRulesFileError(path, err)
		m.logger.LogRulesLoad(path, count, err)
		return err
	}

	m.out.Info("Loaded rules from %s", path)
	m.logger.LogRulesLoad(path, count, nil)
	return nil
}

// IsAllowed reports whether ip is in the allow-list.
func (m *Monitor) IsAllowed(ip string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.allowed[ip]
	return ok
}

// AllowedIPs returns a sorted snapshot of the allow-list.
func (m *Monitor) AllowedIPs() []string {
	m.mu.RLock()
	ips := make([]string, 0, len(m.allowed))
	for ip := range m.allowed {
		ips = append(ips, ip)
	}
	m.mu.RUnlock()

	sort.Strings(ips)
	return ips
}
