package core

import (
	"math"
	"testing"
)

func newTestETM(eta0, lambda float64) *ETMController {
	c := NewETMController(ETMParams{Eta0: eta0, Lambda: lambda})
	c.Register(1)
	return c
}

func TestFirstDecisionAlwaysTransmits(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	if !c.ShouldTransmit(1, Vec3{X: 5}, 0) {
		t.Error("a vehicle that never transmitted must transmit")
	}
}

func TestStationaryVehicleStaysSilent(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	pose := Vec3{X: 10, Y: 20, Z: 30}
	c.RecordTransmission(1, pose, 0)

	for _, now := range []float64{0.1, 0.5, 1, 2} {
		if c.ShouldTransmit(1, pose, now) {
			t.Errorf("stationary vehicle triggered at t=%.1f", now)
		}
	}
}

func TestLargeMotionTriggers(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	c.RecordTransmission(1, Vec3{}, 0)

	if !c.ShouldTransmit(1, Vec3{X: 100}, 0.1) {
		t.Error("100 m displacement should exceed any threshold")
	}
}

func TestThresholdDecaysToFloor(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	c.RecordTransmission(1, Vec3{}, 0)

	eta1 := c.Eta(1, 1)
	eta10 := c.Eta(1, 10)
	eta1000 := c.Eta(1, 1000)

	if eta1 <= eta10 {
		t.Errorf("threshold should decay: η(1)=%.4f η(10)=%.4f", eta1, eta10)
	}
	if eta1000 != DefaultEtaMin {
		t.Errorf("threshold floor = %.6f, want %.6f", eta1000, DefaultEtaMin)
	}
}

// Two decisions at the same simulated time and pose agree; a suppressed
// decision leaves the stored transmission state untouched.
func TestDecisionIdempotence(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	c.RecordTransmission(1, Vec3{}, 0)

	pose := Vec3{X: 0.2}
	first := c.ShouldTransmit(1, pose, 0.5)
	second := c.ShouldTransmit(1, pose, 0.5)
	if first != second {
		t.Error("identical queries returned different decisions")
	}

	st, _ := c.State(1)
	if st.TotalTransmissions != 1 {
		t.Errorf("suppressed decisions must not record transmissions: %d", st.TotalTransmissions)
	}
}

func TestZeroEta0AlwaysTransmits(t *testing.T) {
	c := NewETMController(ETMParams{Eta0: 0, Lambda: 0.5})
	c.Register(1)

	if !c.ShouldTransmit(1, Vec3{}, 0) {
		t.Error("first decision must transmit")
	}
	c.RecordTransmission(1, Vec3{}, 0)

	// Any non-zero displacement beats a permanently zero threshold.
	if !c.ShouldTransmit(1, Vec3{X: 1e-9}, 0.1) {
		t.Error("η₀=0 must permit every subsequent transmission")
	}
}

func TestNormSelection(t *testing.T) {
	l2 := NewETMController(ETMParams{Eta0: 1.0, Lambda: 1e-9, Norm: NormL2})
	linf := NewETMController(ETMParams{Eta0: 1.0, Lambda: 1e-9, Norm: NormLInf})
	l2.Register(1)
	linf.Register(1)
	l2.RecordTransmission(1, Vec3{}, 0)
	linf.RecordTransmission(1, Vec3{}, 0)

	// (0.8, 0.8, 0): L2 norm ≈ 1.13 > 1, L∞ = 0.8 < 1.
	pose := Vec3{X: 0.8, Y: 0.8}
	if !l2.ShouldTransmit(1, pose, 1e-6) {
		t.Error("L2 norm should trigger for (0.8, 0.8)")
	}
	if linf.ShouldTransmit(1, pose, 1e-6) {
		t.Error("L∞ norm should stay silent for (0.8, 0.8)")
	}
}

// Seed scenario: a straight-line traverse at 2 m/s with η₀=1, λ=0.5.
// The inter-transmission period is the fixed point of
// v·Δt = η₀·exp(−λ·Δt), about 0.5 s once quantized to the tick grid, so
// one minute of flight yields roughly 120 transmissions against 600 for
// a every-tick fixed rate — a reduction well past 50%.
func TestMessageReductionOnStraightLine(t *testing.T) {
	c := newTestETM(1.0, 0.5)

	const (
		dt    = 0.1
		speed = 2.0
		ticks = 600
	)
	transmissions := 0
	for i := 1; i <= ticks; i++ {
		now := float64(i) * dt
		pose := Vec3{X: speed * now}
		if c.ShouldTransmit(1, pose, now) {
			c.RecordTransmission(1, pose, now)
			transmissions++
		} else {
			c.RecordSuppressed(1)
		}
	}

	if transmissions < 90 || transmissions > 150 {
		t.Errorf("transmissions = %d, want the ~0.5 s fixed-point cadence (90..150)", transmissions)
	}
	if transmissions > ticks/2 {
		t.Errorf("reduction below 50%%: %d of %d ticks transmitted", transmissions, ticks)
	}

	st, _ := c.State(1)
	if st.TotalTransmissions+st.TotalSuppressed != ticks {
		t.Errorf("counter mismatch: %d + %d != %d", st.TotalTransmissions, st.TotalSuppressed, ticks)
	}
}

func TestHotThresholdUpdate(t *testing.T) {
	c := newTestETM(1.0, 0.5)
	c.RecordTransmission(1, Vec3{}, 0)

	c.SetThreshold(5.0, 0.5)
	eta := c.Eta(1, 0.1)
	if math.Abs(eta-5.0*math.Exp(-0.05)) > 1e-9 {
		t.Errorf("η after hot update = %.4f", eta)
	}
}
