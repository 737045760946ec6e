package executor

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kalafw/internal/config"
	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
)

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		cmd  Command
		want []string
	}{
		{Flush(), []string{"-F"}},
		{DeleteChains(), []string{"-X"}},
		{SetPolicy(ChainInput, TargetDrop), []string{"-P", "INPUT", "DROP"}},
		{SetPolicy(ChainForward, TargetAccept), []string{"-P", "FORWARD", "ACCEPT"}},
		{AcceptFrom("10.0.0.1"), []string{"-A", "INPUT", "-s", "10.0.0.1", "-j", "ACCEPT"}},
		{AcceptTo("10.0.0.1"), []string{"-A", "OUTPUT", "-d", "10.0.0.1", "-j", "ACCEPT"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.cmd.Args()); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecRunnerArgv(t *testing.T) {
	withSudo := NewExecRunner("/sbin/iptables", true)
	want := []string{"sudo", "/sbin/iptables", "-P", "OUTPUT", "DROP"}
	if diff := cmp.Diff(want, withSudo.Argv(SetPolicy(ChainOutput, TargetDrop))); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}

	plain := NewExecRunner("", false)
	if got := plain.Argv(Flush()); got[0] != "iptables" {
		t.Fatalf("default binary = %q, want iptables", got[0])
	}
}

func TestExecRunnerExitStatus(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true(1) not available")
	}
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false(1) not available")
	}

	ok := NewExecRunner("true", false).Run(context.Background(), Flush())
	if !ok.OK || ok.ExitCode != 0 || ok.Error() != nil {
		t.Fatalf("true: got %+v", ok)
	}

	failed := NewExecRunner("false", false).Run(context.Background(), Flush())
	if failed.OK || failed.ExitCode != 1 {
		t.Fatalf("false: got %+v", failed)
	}
	if !errors.Is(failed.Error(), coreerrors.ErrCommandFailed) {
		t.Fatalf("error %v does not match ErrCommandFailed", failed.Error())
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res := NewExecRunner("/nonexistent/kalafw-iptables", false).Run(context.Background(), Flush())
	if res.OK || res.ExitCode != -1 {
		t.Fatalf("got %+v, want start failure", res)
	}
}

type fakeTable struct {
	calls []string
	fail  error
}

func (f *fakeTable) ClearAll() error {
	f.calls = append(f.calls, "ClearAll")
	return f.fail
}

func (f *fakeTable) DeleteAll() error {
	f.calls = append(f.calls, "DeleteAll")
	return f.fail
}

func (f *fakeTable) ChangePolicy(table, chain, target string) error {
	f.calls = append(f.calls, "ChangePolicy "+table+" "+chain+" "+target)
	return f.fail
}

func (f *fakeTable) Append(table, chain string, rulespec ...string) error {
	call := "Append " + table + " " + chain
	for _, r := range rulespec {
		call += " " + r
	}
	f.calls = append(f.calls, call)
	return f.fail
}

func TestIPTablesRunnerMapsCommands(t *testing.T) {
	table := &fakeTable{}
	r := newIPTablesRunnerWith(table)
	ctx := context.Background()

	for _, cmd := range []Command{
		Flush(),
		DeleteChains(),
		SetPolicy(ChainInput, TargetDrop),
		AcceptFrom("1.2.3.4"),
		AcceptTo("1.2.3.4"),
	} {
		if res := r.Run(ctx, cmd); !res.OK {
			t.Fatalf("%s failed: %v", cmd, res.Err)
		}
	}

	want := []string{
		"ClearAll",
		"DeleteAll",
		"ChangePolicy filter INPUT DROP",
		"Append filter INPUT -s 1.2.3.4 -j ACCEPT",
		"Append filter OUTPUT -d 1.2.3.4 -j ACCEPT",
	}
	if diff := cmp.Diff(want, table.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestIPTablesRunnerFailure(t *testing.T) {
	r := newIPTablesRunnerWith(&fakeTable{fail: errors.New("permission denied")})

	res := r.Run(context.Background(), Flush())
	if res.OK || res.ExitCode != -1 || res.Error() == nil {
		t.Fatalf("got %+v, want failure", res)
	}
}

func TestDryRun(t *testing.T) {
	res := NewDryRun("iptables", true).Run(context.Background(), AcceptTo("9.9.9.9"))
	if !res.OK {
		t.Fatal("dry run must succeed")
	}
	if res.Output != "sudo iptables -A OUTPUT -d 9.9.9.9 -j ACCEPT" {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestInstrumentLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	collector := metrics.NewCollector()
	ex := Instrument(newIPTablesRunnerWith(&fakeTable{}), logging.New(zap.New(core)), collector)

	ex.Run(context.Background(), Flush())

	if n := logs.FilterMessage("Firewall command succeeded").Len(); n != 1 {
		t.Fatalf("success log entries = %d, want 1", n)
	}
	mfs, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "kalafw_firewall_invocations_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("invocation counter not exported")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	e, err := New(config.FirewallConfig{Backend: config.BackendDryRun, Binary: "iptables"}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Name() != "dry-run" {
		t.Fatalf("backend = %s, want dry-run", e.Name())
	}

	e, err = New(config.FirewallConfig{Backend: config.BackendExec, Binary: "iptables"}, nil, nil)
	if err != nil || e.Name() != "iptables" {
		t.Fatalf("exec backend = %v, %v", e, err)
	}

	if _, err := New(config.FirewallConfig{Backend: "pf"}, nil, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
