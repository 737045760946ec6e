package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-iptables/iptables"
)

const filterTable = "filter"

// ruleTable is the subset of *iptables.IPTables the runner needs.
type ruleTable interface {
	ClearAll() error
	DeleteAll() error
	ChangePolicy(table, chain, target string) error
	Append(table, chain string, rulespec ...string) error
}

// IPTablesRunner drives the filter table through go-iptables. It must run as
// root, sudo is not available on this path.
type IPTablesRunner struct {
	table ruleTable
}

func NewIPTablesRunner() (*IPTablesRunner, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise go-iptables: %w", err)
	}
	return &IPTablesRunner{table: ipt}, nil
}

func newIPTablesRunnerWith(t ruleTable) *IPTablesRunner {
	return &IPTablesRunner{table: t}
}

func (r *IPTablesRunner) Name() string { return "go-iptables" }

func (r *IPTablesRunner) Run(_ context.Context, cmd Command) Result {
	start := time.Now()

	var err error
	switch cmd.Kind {
	case KindFlush:
		err = r.table.ClearAll()
	case KindDeleteChains:
		err = r.table.DeleteAll()
	case KindPolicy:
		err = r.table.ChangePolicy(filterTable, cmd.Chain, cmd.Target)
	case KindAcceptFrom, KindAcceptTo:
		err = r.table.Append(filterTable, cmd.Chain, cmd.RuleSpec()...)
	default:
		err = fmt.Errorf("unknown command kind %q", cmd.Kind)
	}

	res := Result{
		Command:  cmd,
		OK:       err == nil,
		Duration: time.Since(start),
		Err:      err,
	}

	var iptErr *iptables.Error
	switch {
	case err == nil:
	case errors.As(err, &iptErr):
		res.ExitCode = iptErr.ExitStatus()
		res.Output = iptErr.Error()
	default:
		res.ExitCode = -1
	}
	return res
}
