package observ

import (
	"strings"
	"testing"
)

func TestTimerSummary(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("aot")
	tm.End(idx, "2 compiled")
	tm.End(99, "ignored")

	report := tm.Report()
	if len(report.Phases) != 1 || report.Phases[0].Note != "2 compiled" {
		t.Fatalf("report = %+v", report)
	}
	lines := strings.Split(strings.TrimRight(tm.Summary(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("summary lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "            aot : ") || !strings.HasSuffix(lines[0], "s  (2 compiled)") {
		t.Fatalf("phase line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "          total : ") {
		t.Fatalf("total line = %q", lines[1])
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("report = %+v", r)
	}
}
