package core

import (
	"math"
	"sort"
	"testing"
)

func TestLevyStepsAreHeavyTailed(t *testing.T) {
	l := NewLevyFlight(1.5, 50, 180, 42)

	const n = 5000
	lengths := make([]float64, n)
	for i := range lengths {
		dx, dy, _ := l.Step(0)
		lengths[i] = math.Hypot(dx, dy)
	}
	sort.Float64s(lengths)

	median := lengths[n/2]
	p99 := lengths[n*99/100]

	// A heavy tail shows up as an extreme upper quantile far beyond the
	// median; a Gaussian walk would put p99 only ~2.5 medians out.
	if p99 < 10*median {
		t.Errorf("tail too light: median %.1f, p99 %.1f", median, p99)
	}
}

func TestLevyDeterministicWithSeed(t *testing.T) {
	a := NewLevyFlight(1.5, 50, 180, 7)
	b := NewLevyFlight(1.5, 50, 180, 7)
	for i := 0; i < 100; i++ {
		ax, ay, ah := a.Step(0)
		bx, by, bh := b.Step(0)
		if ax != bx || ay != by || ah != bh {
			t.Fatalf("draw %d diverged", i)
		}
	}
}

func TestLevySeedsIndependentPerDrone(t *testing.T) {
	a := NewLevyFlight(1.5, 50, 180, 1)
	b := NewLevyFlight(1.5, 50, 180, 2)
	same := true
	for i := 0; i < 10; i++ {
		ax, _, _ := a.Step(0)
		bx, _, _ := b.Step(0)
		if ax != bx {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical walks")
	}
}

func TestMantegnaSigmaReference(t *testing.T) {
	// σ(α=1.5) ≈ 0.6966 per Mantegna's closed form.
	got := mantegnaSigma(1.5)
	if math.Abs(got-0.6966) > 0.001 {
		t.Errorf("sigma(1.5) = %.4f, want ≈0.6966", got)
	}
}
