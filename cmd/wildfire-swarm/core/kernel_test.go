package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestKernel(t *testing.T, leaders, followers int, seed int64) *Kernel {
	t.Helper()
	k, err := NewKernel(KernelParams{
		DtS:          0.1,
		Seed:         seed,
		NumLeaders:   leaders,
		NumFollowers: followers,
		Fire:         FireGridParams{Width: 50, Height: 50, CellSizeM: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func enqueue(t *testing.T, k *Kernel, cmd KernelCommand) {
	t.Helper()
	select {
	case k.Inbox() <- cmd:
	default:
		t.Fatal("inbox full")
	}
}

func TestCommandsDrainAtTickTop(t *testing.T) {
	k := newTestKernel(t, 1, 1, 0)

	enqueue(t, k, KernelCommand{Kind: CmdIgnite, X: 250, Y: 250, Intensity: 1.0})
	if k.Engine().SampleIntensity(250, 250) != 0 {
		t.Error("command applied before a tick ran")
	}

	if err := k.Step(); err != nil {
		t.Fatal(err)
	}
	if k.Engine().SampleIntensity(250, 250) == 0 {
		t.Error("queued ignite not applied at tick top")
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	k := newTestKernel(t, 1, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				_ = k.Step()
			}
		}
	}()

	res, err := k.Submit(ctx, KernelCommand{Kind: CmdIgnite, X: 1e6, Y: 1e6, Intensity: 1.0})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, ErrOutOfBounds) {
		t.Errorf("result err = %v, want ErrOutOfBounds", res.Err)
	}

	res, err = k.Submit(ctx, KernelCommand{Kind: CmdDrone, DroneID: 99, Drone: CommandPayload{Name: "takeoff"}})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, ErrUnknownDrone) {
		t.Errorf("result err = %v, want ErrUnknownDrone", res.Err)
	}

	cancel()
	<-done
}

func TestStartStopIdempotenceFlags(t *testing.T) {
	k := newTestKernel(t, 1, 0, 0)

	if res := k.applyCommand(KernelCommand{Kind: CmdStart}); res.AlreadyInState {
		t.Error("first start flagged as duplicate")
	}
	if res := k.applyCommand(KernelCommand{Kind: CmdStart}); !res.AlreadyInState {
		t.Error("second start should flag already running")
	}
	if res := k.applyCommand(KernelCommand{Kind: CmdStop}); res.AlreadyInState {
		t.Error("stop of a running kernel flagged as duplicate")
	}
	if res := k.applyCommand(KernelCommand{Kind: CmdStop}); !res.AlreadyInState {
		t.Error("second stop should flag already stopped")
	}
}

func TestSnapshotPublishedEveryTick(t *testing.T) {
	k := newTestKernel(t, 1, 1, 0)

	_, seq0 := k.Outbox().Latest()
	if err := k.Step(); err != nil {
		t.Fatal(err)
	}
	snap, seq1 := k.Outbox().Latest()
	if seq1 != seq0+1 {
		t.Errorf("sequence %d -> %d, want +1", seq0, seq1)
	}
	if snap.Tick != 1 || len(snap.Drones) != 2 {
		t.Errorf("snapshot tick=%d drones=%d", snap.Tick, len(snap.Drones))
	}
}

func TestTelemetryFlowsIntoObservers(t *testing.T) {
	k := newTestKernel(t, 2, 0, 0)

	// Take off so both vehicles move and trigger their first ETM send.
	for _, id := range []int{1, 2} {
		enqueue(t, k, KernelCommand{Kind: CmdDrone, DroneID: id, Drone: CommandPayload{Name: "takeoff"}})
	}
	for i := 0; i < 100; i++ {
		if err := k.Step(); err != nil {
			t.Fatal(err)
		}
	}

	a1, _ := k.Agent(1)
	if len(a1.Observer().Estimates()) == 0 {
		t.Error("drone 1 never received neighbor telemetry")
	}

	m, ok := k.Metrics().Latest()
	if !ok {
		t.Fatal("no metrics recorded")
	}
	if m.Swarm.MessagesEnqueued == 0 {
		t.Error("no messages moved over the bus")
	}
	if m.Swarm.Tick != k.Engine().Tick() {
		t.Error("metrics tick out of sync")
	}
}

func TestHotConfigUpdate(t *testing.T) {
	k := newTestKernel(t, 1, 0, 0)
	eta := 4.2
	rtl := 35.0
	enqueue(t, k, KernelCommand{Kind: CmdConfigUpdate, Config: ConfigUpdate{
		ETMEta0:             &eta,
		RTLThresholdPercent: &rtl,
	}})
	if err := k.Step(); err != nil {
		t.Fatal(err)
	}

	if got := k.ETM().Eta(1, k.Engine().Now()); got != 4.2 {
		t.Errorf("η₀ after update = %.2f, want 4.2", got)
	}
	if k.rtlThreshold != 35 {
		t.Errorf("rtl threshold = %.1f, want 35", k.rtlThreshold)
	}
}

// Seed scenario: the full pipeline with 3 leaders and 10 followers
// replayed from the same seed produces bitwise-identical snapshots at
// t = 1 s, 5 s, and 10 s.
func TestDeterministicReplay(t *testing.T) {
	run := func() [3][]byte {
		k := newTestKernel(t, 3, 10, 0)
		enqueue(t, k, KernelCommand{Kind: CmdIgnite, X: 250, Y: 250, Intensity: 1.0})
		for id := 1; id <= 13; id++ {
			enqueue(t, k, KernelCommand{Kind: CmdDrone, DroneID: id, Drone: CommandPayload{Name: "takeoff"}})
		}

		var exports [3][]byte
		checkpoints := map[uint64]int{10: 0, 50: 1, 100: 2}
		for i := 1; i <= 100; i++ {
			if err := k.Step(); err != nil {
				t.Fatal(err)
			}
			if slot, ok := checkpoints[k.Engine().Tick()]; ok {
				b, err := json.Marshal(k.Engine().ExportState())
				if err != nil {
					t.Fatal(err)
				}
				exports[slot] = b
			}
		}
		return exports
	}

	first, second := run(), run()
	for i := range first {
		if string(first[i]) != string(second[i]) {
			t.Fatalf("checkpoint %d diverged between identical runs", i)
		}
	}
}

func TestBatteryMonotoneAcrossTicks(t *testing.T) {
	k := newTestKernel(t, 2, 2, 1)
	for id := 1; id <= 4; id++ {
		enqueue(t, k, KernelCommand{Kind: CmdDrone, DroneID: id, Drone: CommandPayload{Name: "takeoff"}})
	}

	prev := map[int]float64{}
	for i := 0; i < 300; i++ {
		if err := k.Step(); err != nil {
			t.Fatal(err)
		}
		for _, id := range k.Engine().DroneIDs() {
			batt, _ := k.Engine().Battery(id)
			agent, _ := k.Agent(id)
			if last, ok := prev[id]; ok && batt.Percent > last && agent.State() != StateIdle {
				t.Fatalf("drone %d battery rose mid-flight: %.4f -> %.4f", id, last, batt.Percent)
			}
			prev[id] = batt.Percent
		}
	}
}

func TestRunHonorsShutdown(t *testing.T) {
	k := newTestKernel(t, 1, 0, 0)
	k.applyCommand(KernelCommand{Kind: CmdStart})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("kernel did not stop after cancellation")
	}
}
