package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 144, 1000}
	for _, pt := range samples {
		back := pt * PtToMm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt back=%g diff=%g", pt, back, diff)
		}
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		mm   float64
		unit Unit
		ok   bool
	}{
		{"15mm", 15, UnitMM, true},
		{"1.5cm", 15, UnitCM, true},
		{"1in", 25.4, UnitIN, true},
		{"12", 12, UnitNone, true},
		{" 2CM ", 20, UnitCM, true},
		{"72pt", 72 * PtToMm, UnitPT, true},
		{"A4", 0, UnitNone, false},
		{"", 0, UnitNone, false},
		{"mm", 0, UnitNone, false},
	}
	for _, c := range cases {
		l, ok := ParseLength(c.in)
		if ok != c.ok {
			t.Fatalf("ParseLength(%q) ok=%v, want %v", c.in, ok, c.ok)
		}
		if !ok {
			continue
		}
		if l.Unit != c.unit {
			t.Fatalf("ParseLength(%q) unit=%s, want %s", c.in, l.Unit, c.unit)
		}
		if diff := math.Abs(l.ToMM() - c.mm); diff > 1e-9 {
			t.Fatalf("ParseLength(%q) = %gmm, want %gmm", c.in, l.ToMM(), c.mm)
		}
	}
}

func TestLengthToPT(t *testing.T) {
	l := Length{Value: 1, Unit: UnitIN}
	if got := l.ToPT(); math.Abs(got-72) > 1e-3 {
		t.Fatalf("1in 应约等于 72pt, got %g", got)
	}
}
