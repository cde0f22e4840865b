// internal/tui/watch_test.go
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/paragon/internal/accuracy"
)

// TestWatchModel_StateTransitions_And_View drives the watch state machine
// through a run: stage changes, streamed details, a report, and completion.
func TestWatchModel_StateTransitions_And_View(t *testing.T) {
	m := initialWatchModel("falcon-tiny")

	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m2, _ := m.Update(stageMsg("exporting engine"))
	m = m2.(*watchModel)
	if m.stage != "exporting engine" {
		t.Fatalf("stage = %q, want exporting engine", m.stage)
	}

	m2, _ = m.Update(detailMsg{detail: accuracy.Detail{Index: 0, Prompt: "the capital of france", Expected: "paris", Predicted: "paris", Exact: true, Relaxed: true}})
	m = m2.(*watchModel)
	m2, _ = m.Update(detailMsg{detail: accuracy.Detail{Index: 1, Prompt: "largest animal", Expected: "whale", Predicted: "whales", Relaxed: true}})
	m = m2.(*watchModel)
	m2, _ = m.Update(detailMsg{detail: accuracy.Detail{Index: 2, Prompt: "deep in the", Expected: "sea", Predicted: "blue"}})
	m = m2.(*watchModel)

	if m.total != 3 || m.exact != 1 || m.relaxed != 2 {
		t.Fatalf("counters = %d/%d/%d, want 3/1/2", m.total, m.exact, m.relaxed)
	}

	m2, _ = m.Update(reportMsg{report: &accuracy.Report{Model: "falcon-tiny", Passed: true}})
	m = m2.(*watchModel)
	if len(m.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(m.reports))
	}

	out := m.View()
	if !strings.Contains(out, "falcon-tiny") {
		t.Fatalf("expected the model name in the view; got: %s", out)
	}
	if !strings.Contains(out, "Stage: exporting engine") {
		t.Fatalf("expected the stage in the view; got: %s", out)
	}
	if !strings.Contains(out, "records: 3") {
		t.Fatalf("expected counters in the view; got: %s", out)
	}

	m2, cmd := m.Update(runDoneMsg{})
	m = m2.(*watchModel)
	if !m.done {
		t.Fatal("expected the model to be done after runDoneMsg")
	}
	if cmd == nil {
		t.Fatal("expected a quit command after runDoneMsg")
	}
}

func TestWatchModel_RendersRunError(t *testing.T) {
	m := initialWatchModel("falcon-tiny")
	_, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	m2, _ := m.Update(runErr{error: errors.New("engine export failed")})
	m = m2.(*watchModel)
	if !m.done {
		t.Fatal("expected the model to be done after a run error")
	}

	out := m.View()
	if !strings.Contains(out, "engine export failed") {
		t.Fatalf("expected the error in the view; got: %s", out)
	}
}

func TestWatchModel_ZeroWidthView(t *testing.T) {
	m := initialWatchModel("falcon-tiny")
	if out := m.View(); out != "Initializing..." {
		t.Fatalf("View() = %q before sizing", out)
	}
}

func TestRenderDetail(t *testing.T) {
	tests := []struct {
		name   string
		detail accuracy.Detail
		want   string
	}{
		{"exact", accuracy.Detail{Exact: true, Relaxed: true}, "exact"},
		{"relaxed", accuracy.Detail{Relaxed: true}, "relaxed"},
		{"miss", accuracy.Detail{}, "miss"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := renderDetail(tt.detail); !strings.Contains(got, tt.want) {
				t.Errorf("renderDetail() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
