package units

import "testing"

func TestConvertibleDimensionMismatch(t *testing.T) {
	if Convertible("degC", "m") {
		t.Fatal("temperature and length should not be convertible")
	}
	if !Convertible("degC", "K") {
		t.Fatal("degC and K should be convertible")
	}
	if !Convertible("mb", "Pa") {
		t.Fatal("mb and Pa should be convertible")
	}
}

func TestConvertDegCToK(t *testing.T) {
	v := []float64{0, 100, -40}
	if err := Convert(v, "degC", "K"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []float64{273.15, 373.15, 233.15}
	for i := range v {
		if diff := v[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("v[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestConvertMbToPa(t *testing.T) {
	v := []float64{1013.25}
	if err := Convert(v, "mb", "Pa"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if v[0] != 101325 {
		t.Fatalf("v[0] = %v, want 101325", v[0])
	}
}

func TestEpochUnitsRejectedByConvert(t *testing.T) {
	err := Convert([]float64{1}, "seconds since 2020-01-01 00:00:00", "seconds since 2020-01-02 00:00:00")
	if err == nil {
		t.Fatal("expected error for epoch-unit conversion via units.Convert")
	}
}
