package qc

import (
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func newTransQCGroup(t *testing.T) (*model.Group, *model.Variable, *model.Variable) {
	t.Helper()
	g := model.NewGroup("transform")
	if _, err := g.DefineDimension("time", 3, true); err != nil {
		t.Fatal(err)
	}
	data, err := g.DefineVariable("temp", model.Float, []string{"time"})
	if err != nil {
		t.Fatal(err)
	}
	if err := data.AppendSamples([]float32{1, 2, 3}, 3); err != nil {
		t.Fatal(err)
	}
	qcVar, err := DefineTransformationQC(g, data, "qc_temp")
	if err != nil {
		t.Fatal(err)
	}
	if err := qcVar.AppendSamples([]int32{1, 2, 1 << 3}, 3); err != nil {
		t.Fatal(err)
	}
	return g, data, qcVar
}

func TestIsTransformationQCVariable(t *testing.T) {
	_, _, qcVar := newTransQCGroup(t)
	if !IsTransformationQCVariable(qcVar) {
		t.Fatal("expected a freshly defined transformation-QC variable to be recognized")
	}
	other := qcVar.Clone(false)
	other.SetAttribute("bit_1_description", model.Char, "unrelated check")
	if IsTransformationQCVariable(other) {
		t.Fatal("did not expect a variable with an unrelated bit_1_description to be recognized")
	}
}

func TestConsolidateTransformationQC(t *testing.T) {
	_, _, qcVar := newTransQCGroup(t)
	badFlag, indFlag, values, err := ConsolidateTransformationQC(qcVar, nil)
	if err != nil {
		t.Fatal(err)
	}
	if badFlag != 1 || indFlag != 2 {
		t.Fatalf("expected bad_flag=1 ind_flag=2, got %d %d", badFlag, indFlag)
	}
	// sample 0: bit 1 set (Bad) -> value should carry badFlag only.
	if values[0] != badFlag {
		t.Errorf("sample 0: expected only bad_flag set, got %d", values[0])
	}
	// sample 1: bit 2 set (Indeterminate) -> ind flag only.
	if values[1] != indFlag {
		t.Errorf("sample 1: expected only ind_flag set, got %d", values[1])
	}
	// sample 2: bit 4 set (extrapolate, Indeterminate) -> ind flag only.
	if values[2] != indFlag {
		t.Errorf("sample 2: expected only ind_flag set, got %d", values[2])
	}
}

func TestLimitChecksFlagsOutOfRange(t *testing.T) {
	g := model.NewGroup("g")
	g.DefineDimension("time", 3, true)
	v, _ := g.DefineVariable("temp", model.Float, []string{"time"})
	v.AppendSamples([]float32{-999, 5, 200}, 3)
	v.SetAttribute("missing_value", model.Float, []float32{-999})
	v.SetAttribute("valid_min", model.Float, []float32{0})
	v.SetAttribute("valid_max", model.Float, []float32{100})

	qcVar, _ := g.DefineVariable("qc_temp", model.Int, []string{"time"})
	qcVar.AppendSamples([]int32{0, 0, 0}, 3)
	qcVar.SetAttribute("bit_1_description", model.Char, descMissing)
	qcVar.SetAttribute("bit_2_description", model.Char, descMin)
	qcVar.SetAttribute("bit_3_description", model.Char, descMax)

	unmapped := LimitChecks(v, qcVar, LimitCheckConfig{})
	if len(unmapped) != 0 {
		t.Errorf("expected all three canonical descriptions to be mapped, got unmapped=%v", unmapped)
	}
	if qcVar.Float64At(0) != 1 {
		t.Errorf("sample 0 (missing) expected bit 1, got %v", qcVar.Float64At(0))
	}
	if int64(qcVar.Float64At(2))&(1<<2) == 0 {
		t.Errorf("sample 2 (200 > valid_max) expected bit 3 set, got %v", qcVar.Float64At(2))
	}
}

func TestDeltaChecksFlagsLargeJump(t *testing.T) {
	g := model.NewGroup("g")
	g.DefineDimension("time", 3, true)
	v, _ := g.DefineVariable("temp", model.Float, []string{"time"})
	v.AppendSamples([]float32{0, 1, 100}, 3)
	v.SetAttribute("valid_delta", model.Float, []float32{5})

	qcVar, _ := g.DefineVariable("qc_temp", model.Int, []string{"time"})
	qcVar.AppendSamples([]int32{0, 0, 0}, 3)
	qcVar.SetAttribute("bit_4_description", model.Char, descDelta)

	DeltaChecks(v, qcVar, nil)
	if int64(qcVar.Float64At(2))&(1<<3) == 0 {
		t.Errorf("expected sample 2's large jump to set bit 4, got %v", qcVar.Float64At(2))
	}
	if int64(qcVar.Float64At(1)) != 0 {
		t.Errorf("expected sample 1 to remain unflagged, got %v", qcVar.Float64At(1))
	}
}
