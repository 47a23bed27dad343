package core

import (
	"math"
	"testing"
)

func newTestGrid(w, h int, seed int64) *FireGrid {
	return NewFireGrid(FireGridParams{
		Width:         w,
		Height:        h,
		CellSizeM:     10,
		SpreadRateMPM: 30,
		Seed:          seed,
	})
}

func TestIgniteSetsIntensity(t *testing.T) {
	g := newTestGrid(100, 100, 42)

	if err := g.Ignite(505, 505, 0.8); err != nil {
		t.Fatalf("ignite failed: %v", err)
	}
	cell, err := g.CellAt(505, 505)
	if err != nil {
		t.Fatalf("cell lookup failed: %v", err)
	}
	if cell.Intensity != 0.8 {
		t.Errorf("intensity = %.2f, want 0.8", cell.Intensity)
	}
	if !cell.Burning() {
		t.Error("cell should be burning")
	}

	// Re-igniting at a lower intensity must not reduce the cell.
	if err := g.Ignite(505, 505, 0.3); err != nil {
		t.Fatalf("second ignite failed: %v", err)
	}
	cell, _ = g.CellAt(505, 505)
	if cell.Intensity != 0.8 {
		t.Errorf("intensity after weaker re-ignite = %.2f, want 0.8", cell.Intensity)
	}
}

func TestIgniteOutOfBounds(t *testing.T) {
	g := newTestGrid(100, 100, 42)
	if err := g.Ignite(2000, 2000, 1.0); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
	if err := g.Ignite(-10, 50, 1.0); err == nil {
		t.Fatal("expected out-of-bounds error for negative coordinate")
	}
}

func TestIgniteZeroFuelNoOp(t *testing.T) {
	g := newTestGrid(100, 100, 42)
	if err := g.SetFuel(5, 5, 0); err != nil {
		t.Fatalf("set fuel: %v", err)
	}

	if err := g.Ignite(55, 55, 1.0); err != nil {
		t.Fatalf("ignite on zero-fuel cell should return ok: %v", err)
	}
	cell, _ := g.CellAt(55, 55)
	if cell.Intensity != 0 {
		t.Errorf("zero-fuel cell ignited: intensity %.3f", cell.Intensity)
	}
}

func TestSuppressionMonotonicity(t *testing.T) {
	g := newTestGrid(100, 100, 42)
	if err := g.Ignite(505, 505, 1.0); err != nil {
		t.Fatal(err)
	}

	single := newTestGrid(100, 100, 42)
	if err := single.Ignite(505, 505, 1.0); err != nil {
		t.Fatal(err)
	}
	if _, err := single.Suppress(505, 505, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := single.Step(0.1); err != nil {
		t.Fatal(err)
	}
	aloneCell, _ := single.CellAt(505, 505)

	if _, err := g.Suppress(505, 505, 0.5); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Suppress(505, 505, 0.7); err != nil {
		t.Fatal(err)
	}
	if err := g.Step(0.1); err != nil {
		t.Fatal(err)
	}
	bothCell, _ := g.CellAt(505, 505)

	if bothCell.Intensity > aloneCell.Intensity {
		t.Errorf("double suppression %.4f exceeds single %.4f", bothCell.Intensity, aloneCell.Intensity)
	}
}

func TestSuppressionReceipt(t *testing.T) {
	g := newTestGrid(100, 100, 42)
	if err := g.Ignite(505, 505, 1.0); err != nil {
		t.Fatal(err)
	}

	r, err := g.Suppress(505, 505, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if r.CellsAffected != 1 {
		t.Errorf("cells affected = %d, want 1", r.CellsAffected)
	}

	r, err = g.Suppress(5, 5, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if r.CellsAffected != 0 {
		t.Errorf("suppressing a cold cell affected %d cells", r.CellsAffected)
	}
}

func TestFuelExhaustionDecaysMonotonically(t *testing.T) {
	g := newTestGrid(10, 10, 1)
	if err := g.SetFuel(5, 5, 0.001); err != nil {
		t.Fatal(err)
	}
	if err := g.Ignite(55, 55, 1.0); err != nil {
		t.Fatal(err)
	}

	prev := math.Inf(1)
	for i := 0; i < 100; i++ {
		if err := g.Step(0.1); err != nil {
			t.Fatal(err)
		}
		cell, _ := g.CellAt(55, 55)
		if cell.FuelDensity == 0 && cell.Intensity > prev {
			t.Fatalf("intensity rose on fuel-less cell: %.5f -> %.5f", prev, cell.Intensity)
		}
		prev = cell.Intensity
	}
}

// Seed scenario: 50×50 grid, uniform fuel, no wind, seed 42. After 60
// simulated seconds the fire is an established blob around the ignition
// cell, neither extinguished nor runaway.
func TestFireSpreadSanity(t *testing.T) {
	g := newTestGrid(50, 50, 42)
	if err := g.Ignite(250, 250, 1.0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 600; i++ {
		if err := g.Step(0.1); err != nil {
			t.Fatal(err)
		}
	}

	s := g.Summary()
	if s.BurningCount < 10 || s.BurningCount > 400 {
		t.Errorf("burning count = %d, want an established blob (10..400)", s.BurningCount)
	}

	var cx, cy float64
	for _, c := range g.IterBurning() {
		cx += float64(c.GX)
		cy += float64(c.GY)
	}
	cx /= float64(s.BurningCount)
	cy /= float64(s.BurningCount)
	if math.Abs(cx-25) > 3 || math.Abs(cy-25) > 3 {
		t.Errorf("centroid (%.1f, %.1f) drifted from (25, 25) without wind", cx, cy)
	}
}

// Seed scenario: a 5 m/s wind along +x biases the burning centroid
// strictly downwind while leaving the crosswind centroid near center.
func TestWindBiasesSpread(t *testing.T) {
	g := newTestGrid(50, 50, 42)
	g.SetWind(5, 0)
	if err := g.Ignite(250, 250, 1.0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 600; i++ {
		if err := g.Step(0.1); err != nil {
			t.Fatal(err)
		}
	}

	burning := g.IterBurning()
	if len(burning) == 0 {
		t.Fatal("fire died out")
	}
	var cx, cy float64
	for _, c := range burning {
		cx += float64(c.GX)
		cy += float64(c.GY)
	}
	cx /= float64(len(burning))
	cy /= float64(len(burning))

	if cx <= 25 {
		t.Errorf("x centroid %.2f not biased downwind of 25", cx)
	}
	if math.Abs(cy-25) > 1.5 {
		t.Errorf("y centroid %.2f should stay within ~1 cell of 25", cy)
	}
}

func TestSpreadDeterministicWithSeed(t *testing.T) {
	run := func() ([]FireCell, FireSummary) {
		g := newTestGrid(50, 50, 7)
		if err := g.Ignite(250, 250, 1.0); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 200; i++ {
			if err := g.Step(0.1); err != nil {
				t.Fatal(err)
			}
		}
		return g.Snapshot(), g.Summary()
	}

	cells1, sum1 := run()
	cells2, sum2 := run()

	if sum1 != sum2 {
		t.Fatalf("summaries diverged: %+v vs %+v", sum1, sum2)
	}
	for i := range cells1 {
		if cells1[i] != cells2[i] {
			t.Fatalf("cell %d diverged: %+v vs %+v", i, cells1[i], cells2[i])
		}
	}
}

func TestPerimeterCount(t *testing.T) {
	g := newTestGrid(10, 10, 1)
	// A single burning cell is its own perimeter.
	if err := g.Ignite(55, 55, 1.0); err != nil {
		t.Fatal(err)
	}
	s := g.Summary()
	if s.BurningCount != 1 || s.PerimeterCount != 1 {
		t.Errorf("summary = %+v, want burning 1 perimeter 1", s)
	}
}

func TestStepRejectsNonPositiveDt(t *testing.T) {
	g := newTestGrid(10, 10, 1)
	if err := g.Step(0); err == nil {
		t.Error("dt=0 should be rejected")
	}
	if err := g.Step(-1); err == nil {
		t.Error("dt<0 should be rejected")
	}
}
