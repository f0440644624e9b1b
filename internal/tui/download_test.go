package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPlainProgressQuarters(t *testing.T) {
	var buf bytes.Buffer
	p := PlainFactory(&buf)
	p.Start("6.8.5", 1000)
	for i := 0; i < 10; i++ {
		p.Advance(100)
	}
	p.Finish(nil)

	want := []string{
		"6.8.5: downloading 1.0 kB",
		"6.8.5: 25%",
		"6.8.5: 50%",
		"6.8.5: 75%",
		"6.8.5: done (1.0 kB)",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlainProgressUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := PlainFactory(&buf)
	p.Start("opsc6.8.5", -1)
	p.Advance(10)
	p.Finish(errors.New("connection reset"))

	out := buf.String()
	if strings.Contains(out, "%") {
		t.Errorf("expected no percentages without a total, got:\n%s", out)
	}
	if !strings.Contains(out, "opsc6.8.5: failed after 10 B: connection reset") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDownloadModelRows(t *testing.T) {
	m := NewDownloadModel()
	steps := []any{
		downloadStartMsg{label: "6.8.5", total: 2000},
		downloadStartMsg{label: "opsc6.8.5", total: -1},
		downloadAdvanceMsg{label: "6.8.5", done: 1000},
		downloadAdvanceMsg{label: "opsc6.8.5", done: 512},
	}
	for _, msg := range steps {
		updated, _ := m.Update(msg)
		m = updated.(DownloadModel)
	}

	view := m.View()
	if !strings.Contains(view, "1.0 kB / 2.0 kB") {
		t.Errorf("expected byte counts for known total, got:\n%s", view)
	}
	if !strings.Contains(view, "512 B") {
		t.Errorf("expected running byte count for unknown total, got:\n%s", view)
	}

	updated, _ := m.Update(downloadFinishMsg{label: "opsc6.8.5", done: 512, err: errors.New("boom")})
	m = updated.(DownloadModel)
	if !strings.Contains(m.View(), "error: boom") {
		t.Errorf("expected error row, got:\n%s", m.View())
	}

	updated, cmd := m.Update(WorkDoneMsg{})
	m = updated.(DownloadModel)
	if !m.closed || cmd == nil {
		t.Error("expected model to close and quit")
	}
}

func TestDownloadsCloseWithoutDownloads(t *testing.T) {
	d := NewDownloads(&bytes.Buffer{})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
