package gates

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/taskswarm/supervisor/internal/core"
)

func TestSamplePanelIntegrityGate_AbsentFileSkips(t *testing.T) {
	g := &SamplePanelIntegrityGate{SamplePath: "data/sample_panel.csv"}
	res := g.Run(context.Background(), t.TempDir(), "")
	if res.Status != core.GateSkipped {
		t.Fatalf("got %+v, want skipped", res)
	}
}

func TestSamplePanelIntegrityGate_Passes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "data/sample_panel.csv"),
		"entity_id,period,value\nE1,2026-01,10.5\nE2,2026-01,\nE3,2026-01,0\n")

	g := &SamplePanelIntegrityGate{SamplePath: "data/sample_panel.csv"}
	res := g.Run(context.Background(), root, "")
	if res.Status != core.GatePassed {
		t.Fatalf("got %+v, want passed", res)
	}
}

func TestSamplePanelIntegrityGate_MissingColumnFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "data/sample_panel.csv"), "entity_id,value\nE1,10\n")

	g := &SamplePanelIntegrityGate{SamplePath: "data/sample_panel.csv"}
	res := g.Run(context.Background(), root, "")
	if res.Status != core.GateFailed {
		t.Fatalf("got %+v, want failed", res)
	}
}

func TestSamplePanelIntegrityGate_NegativeValueFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "data/sample_panel.csv"),
		"entity_id,period,value\nE1,2026-01,-5\n")

	g := &SamplePanelIntegrityGate{SamplePath: "data/sample_panel.csv"}
	res := g.Run(context.Background(), root, "")
	if res.Status != core.GateFailed {
		t.Fatalf("got %+v, want failed", res)
	}
}
