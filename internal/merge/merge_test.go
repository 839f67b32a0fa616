package merge

import (
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func newObservation(t *testing.T, parent *model.Group, name string, epoch string, offsets []float64, historyText string) *model.Group {
	t.Helper()
	g, err := parent.NewChild(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.DefineDimension("time", 0, true); err != nil {
		t.Fatal(err)
	}
	tv, err := g.DefineVariable("time", model.Double, []string{"time"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tv.SetAttribute("units", model.Char, "seconds since "+epoch); err != nil {
		t.Fatal(err)
	}
	if err := tv.AppendSamples(offsets, len(offsets)); err != nil {
		t.Fatal(err)
	}
	if historyText != "" {
		if err := g.SetAttribute("history", model.Char, historyText); err != nil {
			t.Fatal(err)
		}
	}
	temp, err := g.DefineVariable("temp", model.Float, []string{"time"})
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]float32, len(offsets))
	for i := range vals {
		vals[i] = float32(20 + i)
	}
	if err := temp.AppendSamples(vals, len(vals)); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestMergeObservationsAppendsDisjointObservations(t *testing.T) {
	root := model.NewGroup("root")
	parent, err := root.NewChild("met")
	if err != nil {
		t.Fatal(err)
	}
	newObservation(t, parent, "obs1", "2024-01-01 00:00:00 UTC", []float64{0, 60, 120}, "")
	newObservation(t, parent, "obs2", "2024-01-01 00:00:00 UTC", []float64{180, 240}, "")

	if err := MergeObservations(parent, true); err != nil {
		t.Fatal(err)
	}
	children := parent.Children()
	if len(children) != 1 {
		t.Fatalf("expected the two disjoint observations to merge into one, got %d children", len(children))
	}
	tv, _, err := children[0].FindTimeVariable()
	if err != nil {
		t.Fatal(err)
	}
	if tv.SampleCount() != 5 {
		t.Fatalf("expected 5 merged samples, got %d", tv.SampleCount())
	}
}

func TestResolveOverlapPrefersNewerWithEnoughSamples(t *testing.T) {
	root := model.NewGroup("root")
	parent, err := root.NewChild("met")
	if err != nil {
		t.Fatal(err)
	}
	older := newObservation(t, parent, "obs1", "2024-01-01 00:00:00 UTC", []float64{0, 60, 120, 180}, "created by ingest on 2024-01-01 01:00:00")
	newer := newObservation(t, parent, "obs2", "2024-01-01 00:00:00 UTC", []float64{60, 120, 180}, "created by ingest on 2024-01-02 01:00:00")

	keep, lose := ResolveOverlap(older, newer)
	if keep != newer {
		t.Errorf("expected the newer observation (3/4 = 75%% of samples) to win, kept %q", keep.Name)
	}
	if lose != older {
		t.Errorf("expected the older observation to lose, lost %q", lose.Name)
	}
}

func TestResolveOverlapRejectsNewerWithTooFewSamples(t *testing.T) {
	root := model.NewGroup("root")
	parent, err := root.NewChild("met")
	if err != nil {
		t.Fatal(err)
	}
	older := newObservation(t, parent, "obs1", "2024-01-01 00:00:00 UTC", []float64{0, 60, 120, 180, 240}, "created by ingest on 2024-01-01 01:00:00")
	newer := newObservation(t, parent, "obs2", "2024-01-01 00:00:00 UTC", []float64{60, 120}, "created by ingest on 2024-01-02 01:00:00")

	keep, _ := ResolveOverlap(older, newer)
	if keep != older {
		t.Errorf("expected the older observation to win since the newer has < 75%% of its samples, kept %q", keep.Name)
	}
}

func TestMergeObservationsFatalWithoutFilterInputObs(t *testing.T) {
	root := model.NewGroup("root")
	parent, err := root.NewChild("met")
	if err != nil {
		t.Fatal(err)
	}
	newObservation(t, parent, "obs1", "2024-01-01 00:00:00 UTC", []float64{0, 60, 120}, "")
	newObservation(t, parent, "obs2", "2024-01-01 00:00:00 UTC", []float64{60, 120, 180}, "")

	if err := MergeObservations(parent, false); err == nil {
		t.Fatal("expected an error for overlapping observations with filtering disabled")
	}
}
