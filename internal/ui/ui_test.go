package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.Info("Allowed IP: %s", "1.2.3.4")
	p.Error("Invalid command or missing IP. Please try again.")

	want := "Allowed IP: 1.2.3.4\nInvalid command or missing IP. Please try again.\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Warn("All IPs unblocked.")

	if !strings.Contains(buf.String(), "\x1b[33m") {
		t.Fatalf("expected yellow escape in %q", buf.String())
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Help()

	for _, cmd := range []string{"allow <IP>", "reset", "clear", "history", "help", "exit"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestClearRedrawsBanner(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Clear()

	out := buf.String()
	if !strings.HasPrefix(out, ClearScreen) {
		t.Fatalf("output does not start with clear sequence: %q", out)
	}
	if !strings.Contains(out, "KalaFireWall") {
		t.Fatalf("banner missing after clear")
	}
}
