package firewall

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/executor"
	"kalafw/internal/executor/executortest"
	"kalafw/internal/metrics"
	"kalafw/internal/ui"
)

var resetSequence = []string{
	"-F",
	"-X",
	"-P INPUT DROP",
	"-P OUTPUT DROP",
}

func newMonitor(t *testing.T, rulesFile string) (*Monitor, *executortest.Recorder, *bytes.Buffer) {
	t.Helper()
	rec := &executortest.Recorder{}
	var out bytes.Buffer
	m := New(context.Background(), Dependencies{
		Executor: rec,
		Printer:  ui.NewPrinter(&out, true),
		Metrics:  metrics.NewCollector(),
	}, rulesFile)
	return m, rec, &out
}

func TestNewResetsRules(t *testing.T) {
	_, rec, out := newMonitor(t, "")

	if diff := cmp.Diff(resetSequence, rec.Strings()); diff != "" {
		t.Fatalf("startup commands mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "Default policy set to DROP for all IPs.") {
		t.Fatalf("missing confirmation in %q", out.String())
	}
}

func TestAddAllowedIPDistinct(t *testing.T) {
	m, rec, _ := newMonitor(t, "")
	rec.Reset()
	ctx := context.Background()

	if err := m.AddAllowedIP(ctx, "1.1.1.1"); err != nil {
		t.Fatalf("allow 1.1.1.1: %v", err)
	}
	if err := m.AddAllowedIP(ctx, "2.2.2.2"); err != nil {
		t.Fatalf("allow 2.2.2.2: %v", err)
	}

	if diff := cmp.Diff([]string{"1.1.1.1", "2.2.2.2"}, m.AllowedIPs()); diff != "" {
		t.Fatalf("allow-list mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		"-A INPUT -s 1.1.1.1 -j ACCEPT",
		"-A OUTPUT -d 1.1.1.1 -j ACCEPT",
		"-A INPUT -s 2.2.2.2 -j ACCEPT",
		"-A OUTPUT -d 2.2.2.2 -j ACCEPT",
	}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestAddAllowedIPIdempotent(t *testing.T) {
	m, rec, out := newMonitor(t, "")
	rec.Reset()
	out.Reset()
	ctx := context.Background()

	m.AddAllowedIP(ctx, "3.3.3.3")
	m.AddAllowedIP(ctx, "3.3.3.3")

	if n := len(rec.Commands()); n != 2 {
		t.Fatalf("issued %d commands, want one accept pair", n)
	}
	if n := strings.Count(out.String(), "Allowed IP: 3.3.3.3"); n != 1 {
		t.Fatalf("confirmation printed %d times, want 1", n)
	}
}

func TestAddAllowedIPFailureIsNotRecorded(t *testing.T) {
	m, rec, out := newMonitor(t, "")
	rec.Reset()
	rec.Fail = executortest.FailKind(executor.KindAcceptFrom)

	err := m.AddAllowedIP(context.Background(), "4.4.4.4")
	if !errors.Is(err, coreerrors.ErrCommandFailed) {
		t.Fatalf("err = %v, want command failure", err)
	}
	if m.IsAllowed("4.4.4.4") {
		t.Fatal("failed address must not be recorded")
	}
	// the second rule is not attempted after the first fails
	if n := len(rec.Commands()); n != 1 {
		t.Fatalf("issued %d commands, want 1", n)
	}
	if !strings.Contains(out.String(), "Could not allow IP: 4.4.4.4") {
		t.Fatalf("missing failure message in %q", out.String())
	}

	rec.Fail = nil
	if err := m.AddAllowedIP(context.Background(), "4.4.4.4"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !m.IsAllowed("4.4.4.4") {
		t.Fatal("retry should record the address")
	}
}

func TestResetRulesContinuesAfterFailure(t *testing.T) {
	m, rec, out := newMonitor(t, "")
	rec.Reset()
	out.Reset()
	rec.Fail = executortest.FailKind(executor.KindFlush, executor.KindDeleteChains)

	err := m.ResetRules(context.Background())
	if err == nil {
		t.Fatal("expected joined failure")
	}
	if diff := cmp.Diff(resetSequence, rec.Strings()); diff != "" {
		t.Fatalf("sequence must run to completion (-want +got):\n%s", diff)
	}
	if n := strings.Count(out.String(), "Could not reset iptables rules"); n != 1 {
		t.Fatalf("warning printed %d times, want 1", n)
	}
}

func TestResetKeepsAllowList(t *testing.T) {
	m, _, _ := newMonitor(t, "")
	ctx := context.Background()
	m.AddAllowedIP(ctx, "5.5.5.5")
	m.ResetRules(ctx)

	if !m.IsAllowed("5.5.5.5") {
		t.Fatal("reset must not touch the in-memory allow-list")
	}
}

func TestCleanupRules(t *testing.T) {
	m, rec, out := newMonitor(t, "")
	rec.Reset()

	if err := m.CleanupRules(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	want := []string{"-P INPUT ACCEPT", "-P FORWARD ACCEPT", "-P OUTPUT ACCEPT"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("cleanup mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "allow all traffic on exit") {
		t.Fatalf("missing cleanup message in %q", out.String())
	}

	rec.Reset()
	rec.Fail = executortest.FailKind(executor.KindPolicy)
	if err := m.CleanupRules(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if n := len(rec.Commands()); n != 3 {
		t.Fatalf("cleanup issued %d commands after failures, want 3", n)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	if err := os.WriteFile(path, []byte("1.2.3.4\n\n  5.6.7.8  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, rec, out := newMonitor(t, path)

	if diff := cmp.Diff([]string{"1.2.3.4", "5.6.7.8"}, m.AllowedIPs()); diff != "" {
		t.Fatalf("allow-list mismatch (-want +got):\n%s", diff)
	}
	// four reset commands then two accept pairs
	if n := len(rec.Commands()); n != 8 {
		t.Fatalf("issued %d commands, want 8", n)
	}
	if !strings.Contains(out.String(), "Loaded rules from "+path) {
		t.Fatalf("missing load confirmation in %q", out.String())
	}
}

func TestLoadRulesFromMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.txt")
	m, _, out := newMonitor(t, path)

	if n := len(m.AllowedIPs()); n != 0 {
		t.Fatalf("allow-list has %d entries, want 0", n)
	}
	if !strings.Contains(out.String(), "Rules file not found: "+path) {
		t.Fatalf("missing error message in %q", out.String())
	}

	err := m.LoadRulesFromFile(context.Background(), path)
	if !errors.Is(err, coreerrors.ErrRulesFileNotFound) {
		t.Fatalf("err = %v, want ErrRulesFileNotFound", err)
	}
}
