package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	Configure(&bytes.Buffer{})

	out := Table([]string{"ID", "NAME"}, [][]string{
		{"t1", "Alpha"},
		{"team-22", "B"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[2], "team-22") || !strings.Contains(lines[2], "B") {
		t.Errorf("row = %q", lines[2])
	}
	// Columns line up.
	if strings.Index(lines[1], "Alpha") != strings.Index(lines[2], "B") {
		t.Errorf("columns not aligned:\n%s", out)
	}
}

func TestRender_PlainWhenNotTerminal(t *testing.T) {
	Configure(&bytes.Buffer{})

	if got := RenderPass("ok"); got != "ok" {
		t.Errorf("RenderPass() = %q, want plain text", got)
	}
	if got := Field("Queue", 3); !strings.Contains(got, "Queue: 3") {
		t.Errorf("Field() = %q", got)
	}
}
