package core

import "testing"

func perfectLink() LinkState {
	return LinkState{RSSIDBm: -40, LatencyS: BaseLatencySeconds, PacketLossProb: 0}
}

func TestDeliveryOnNextTickBoundary(t *testing.T) {
	b := NewMessageBus(0.1, 1)

	msg := Message{SenderID: 1, SendTime: 0.1, Kind: KindTelemetry, Telemetry: &TelemetryPayload{}}
	if !b.Offer(msg, 2, perfectLink()) {
		t.Fatal("lossless offer dropped")
	}

	// 0.1 + 0.005 s latency lands on the 0.2 tick boundary.
	if due := b.DeliverDue(0.1); len(due) != 0 {
		t.Errorf("message delivered before its latency elapsed")
	}
	due := b.DeliverDue(0.2)
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1", len(due))
	}
	if due[0].DeliverTime != 0.2 {
		t.Errorf("deliver time %.3f, want 0.2", due[0].DeliverTime)
	}
}

func TestGuaranteedDropBeyondRange(t *testing.T) {
	b := NewMessageBus(0.1, 1)
	gated := LinkState{RSSIDBm: -120, LatencyS: 0.04, PacketLossProb: 1.0}

	for i := 0; i < 100; i++ {
		if b.Offer(Message{SenderID: 1, SendTime: 0}, 2, gated) {
			t.Fatal("message survived a p=1 link")
		}
	}
	if b.Stats().Dropped != 100 {
		t.Errorf("dropped = %d, want 100", b.Stats().Dropped)
	}
}

func TestSenderIDTieBreak(t *testing.T) {
	b := NewMessageBus(0.1, 1)
	link := perfectLink()

	// Offer out of id order; all land on the same delivery tick.
	for _, sender := range []int{5, 2, 9, 1} {
		b.Offer(Message{SenderID: sender, SendTime: 0.1, Kind: KindTelemetry}, 7, link)
	}

	due := b.DeliverDue(0.2)
	if len(due) != 4 {
		t.Fatalf("due = %d, want 4", len(due))
	}
	for i := 1; i < len(due); i++ {
		if due[i-1].SenderID > due[i].SenderID {
			t.Fatalf("deliveries out of sender order: %d before %d", due[i-1].SenderID, due[i].SenderID)
		}
	}
}

func TestLossDrawDeterministicWithSeed(t *testing.T) {
	run := func() []bool {
		b := NewMessageBus(0.1, 42)
		link := LinkState{RSSIDBm: -90, LatencyS: 0.01, PacketLossProb: 0.5}
		out := make([]bool, 50)
		for i := range out {
			out[i] = b.Offer(Message{SenderID: 1, SendTime: 0}, 2, link)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("loss draws diverged at %d", i)
		}
	}
}

func TestHighLatencyDelaysDelivery(t *testing.T) {
	b := NewMessageBus(0.1, 1)
	slow := LinkState{RSSIDBm: -95, LatencyS: 0.35, PacketLossProb: 0}

	b.Offer(Message{SenderID: 1, SendTime: 0.1}, 2, slow)

	if due := b.DeliverDue(0.4); len(due) != 0 {
		t.Error("delivered before 0.45 s")
	}
	if due := b.DeliverDue(0.5); len(due) != 1 {
		t.Error("missing delivery at 0.5 s")
	}
}
