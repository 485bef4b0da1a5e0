package audit

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactEightDigitRuns(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"code 12345678 issued", "code [REDACTED] issued"},
		{"12345678", "[REDACTED]"},
		{"1234567 is only seven digits", "1234567 is only seven digits"},
		{"123456789 is nine digits", "123456789 is nine digits"},
		{"two runs 11112222 and 33334444 here", "two runs [REDACTED] and [REDACTED] here"},
		{"no digits at all", "no digits at all"},
	}
	for _, c := range cases {
		if got := Redact(c.in); got != c.want {
			t.Errorf("Redact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestShortenAddress(t *testing.T) {
	addr := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	short := ShortenAddress(addr)
	if len(short) >= len(addr) {
		t.Fatalf("expected shortened address, got %q", short)
	}
	if !strings.HasPrefix(short, "0x") {
		t.Fatalf("expected 0x prefix, got %q", short)
	}
}

func TestRecordRedactsAndBounds(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Record("sign", "0xCAFE", "10000000000000000", "approval_required", "approval code 87654321 pending", ""); err != nil {
		t.Fatal(err)
	}

	entries := l.Recent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if strings.Contains(entries[0].Reason, "87654321") {
		t.Fatalf("approval code leaked into audit entry: %q", entries[0].Reason)
	}
	if !strings.Contains(entries[0].Reason, "[REDACTED]") {
		t.Fatalf("expected redaction marker, got %q", entries[0].Reason)
	}
}

func TestRecentWindowIsBounded(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < memoryWindow+50; i++ {
		if err := l.Record("sign", "0xCAFE", "1", "allow", "ok", ""); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(l.Recent()); got != memoryWindow {
		t.Fatalf("expected window of %d entries, got %d", memoryWindow, got)
	}
}

func TestReopenWarmsWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record("panic", "", "", "frozen", "wallet frozen", ""); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reopened.Recent()) != 1 {
		t.Fatalf("expected reopened log to warm from disk, got %d entries", len(reopened.Recent()))
	}
}
