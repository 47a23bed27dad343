package core

import (
	"math"
	"testing"
)

func TestPredictConstantVelocity(t *testing.T) {
	o := NewObserver(1, 5.0, 0)
	o.Update(2, Vec3{X: 20, Z: 10}, Vec3{X: -3}, 0, 0)

	pred, ok := o.Predict(2, 3)
	if !ok {
		t.Fatal("prediction missing")
	}
	want := Vec3{X: 11, Z: 10}
	if pred.Pose.DistanceTo(want) > 1e-9 {
		t.Errorf("predicted pose %+v, want %+v", pred.Pose, want)
	}

	wantConf := 1 - 0.8*(3.0/5.0)
	if math.Abs(pred.Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence %.3f, want %.3f", pred.Confidence, wantConf)
	}
}

func TestExpiredEstimateStopsExtrapolating(t *testing.T) {
	o := NewObserver(1, 0.5, 0)
	o.Update(2, Vec3{X: 20}, Vec3{X: -3}, 0, 0)

	pred, ok := o.Predict(2, 2.0)
	if !ok {
		t.Fatal("prediction missing")
	}
	if pred.Confidence != 0 {
		t.Errorf("expired confidence = %.3f, want 0", pred.Confidence)
	}
	if pred.Pose.X != 20 {
		t.Errorf("expired estimate extrapolated to x=%.1f, want last known 20", pred.Pose.X)
	}
}

func TestConfidenceBounds(t *testing.T) {
	o := NewObserver(1, 0.5, 0)
	o.Update(2, Vec3{}, Vec3{}, 0, 0)

	fresh, _ := o.Predict(2, 0)
	if fresh.Confidence != 1.0 {
		t.Errorf("fresh confidence = %.3f, want 1.0", fresh.Confidence)
	}

	atMax, _ := o.Predict(2, 0.5)
	if math.Abs(atMax.Confidence-0.2) > 1e-9 {
		t.Errorf("confidence at max age = %.3f, want 0.2", atMax.Confidence)
	}
}

// A message with an earlier send time never overwrites an estimate set
// by a later send time, even if it is delivered afterwards.
func TestUpdatePrecedenceBySendTime(t *testing.T) {
	o := NewObserver(1, 5, 0)
	o.Update(2, Vec3{X: 100}, Vec3{}, 2.0, 2.1)
	o.Update(2, Vec3{X: 50}, Vec3{}, 1.0, 2.2)

	pred, _ := o.Predict(2, 2.2)
	if pred.Pose.X != 100 {
		t.Errorf("stale message overwrote newer estimate: x=%.1f", pred.Pose.X)
	}
}

func TestMissingNeighborNeverRaises(t *testing.T) {
	o := NewObserver(1, 0.5, 0)
	if _, ok := o.Predict(99, 1); ok {
		t.Error("unknown neighbor should report !ok")
	}
	if risks := o.CollisionRisks(Vec3{}, 1, 10); len(risks) != 0 {
		t.Errorf("empty observer returned %d risks", len(risks))
	}
}

// Head-on geometry: A flies +x at 3 m/s from the origin, B was last
// reported at (20,0,10) flying −x at 3 m/s. With prediction alive the
// estimated separation is 20−6t, so the 10 m alert opens just past
// t≈1.67 s and the predicted pose at t=3 is (11,0,10).
func TestCollisionAlertHeadOn(t *testing.T) {
	o := NewObserver(1, 5.0, 0)
	o.Update(2, Vec3{X: 20, Z: 10}, Vec3{X: -3}, 0, 0)

	selfAt := func(ts float64) Vec3 { return Vec3{X: 3 * ts, Z: 10} }

	if risks := o.CollisionRisks(selfAt(1.6), 1.6, 10); len(risks) != 0 {
		t.Errorf("alert fired early at t=1.6 (separation 10.4 m): %+v", risks)
	}

	risks := o.CollisionRisks(selfAt(1.7), 1.7, 10)
	if len(risks) != 1 {
		t.Fatalf("alert missing at t=1.7 (separation 9.8 m)")
	}
	if risks[0].NeighborID != 2 || risks[0].Confidence <= 0 {
		t.Errorf("unexpected risk entry: %+v", risks[0])
	}

	pred, _ := o.Predict(2, 3)
	if pred.Pose.DistanceTo(Vec3{X: 11, Z: 10}) > 1e-9 {
		t.Errorf("t=3 prediction %+v, want (11,0,10)", pred.Pose)
	}
}

func TestMinConfidenceFloorFiltersRisks(t *testing.T) {
	o := NewObserver(1, 1.0, 0.5)
	o.Update(2, Vec3{X: 1}, Vec3{}, 0, 0)

	// Age 0.9 → confidence 0.28, below the 0.5 floor.
	if risks := o.CollisionRisks(Vec3{}, 0.9, 10); len(risks) != 0 {
		t.Errorf("low-confidence neighbor should be filtered: %+v", risks)
	}
	// Fresh estimate passes.
	if risks := o.CollisionRisks(Vec3{}, 0.1, 10); len(risks) != 1 {
		t.Error("fresh close neighbor should alert")
	}
}
