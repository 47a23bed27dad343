package core

import (
	"math"
	"math/rand"
	"sort"
)

// Delivery is a message addressed to one receiver with its scheduled
// delivery time.
type Delivery struct {
	Message
	ReceiverID int
}

// BusStats counts bus traffic since construction.
type BusStats struct {
	Enqueued  int `json:"enqueued"`
	Dropped   int `json:"dropped"`
	Delivered int `json:"delivered"`
}

// MessageBus is the in-process radio medium. Emission applies the
// per-link loss draw immediately; surviving messages are queued and
// handed out on the first tick at or past send_time + latency. Messages
// sharing a delivery time drain in sender-id order.
type MessageBus struct {
	dtS     float64
	rng     *rand.Rand
	pending []Delivery
	stats   BusStats
}

// NewMessageBus creates a bus for the given tick duration. The loss-draw
// RNG is distinct from the fire and fading generators.
func NewMessageBus(dtS float64, seed int64) *MessageBus {
	if dtS <= 0 {
		dtS = DefaultTickSeconds
	}
	return &MessageBus{dtS: dtS, rng: rand.New(rand.NewSource(seed))}
}

// Offer submits a message over one directed link. It returns whether the
// message survived the loss draw. Links beyond the broadcast range carry
// loss probability 1, so their messages always drop within the same tick.
func (b *MessageBus) Offer(msg Message, receiverID int, link LinkState) bool {
	if b.rng.Float64() < link.PacketLossProb {
		b.stats.Dropped++
		return false
	}

	ticks := math.Ceil((msg.SendTime+link.LatencyS)/b.dtS - 1e-9)
	msg.DeliverTime = ticks * b.dtS

	b.pending = append(b.pending, Delivery{Message: msg, ReceiverID: receiverID})
	b.stats.Enqueued++
	return true
}

// DeliverDue removes and returns every message whose delivery time has
// arrived, ordered by (deliver_time, sender_id, receiver_id).
func (b *MessageBus) DeliverDue(nowS float64) []Delivery {
	var due []Delivery
	rest := b.pending[:0]
	for _, d := range b.pending {
		if d.DeliverTime <= nowS+1e-9 {
			due = append(due, d)
		} else {
			rest = append(rest, d)
		}
	}
	b.pending = rest

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].DeliverTime != due[j].DeliverTime {
			return due[i].DeliverTime < due[j].DeliverTime
		}
		if due[i].SenderID != due[j].SenderID {
			return due[i].SenderID < due[j].SenderID
		}
		return due[i].ReceiverID < due[j].ReceiverID
	})

	b.stats.Delivered += len(due)
	return due
}

// PendingCount returns the number of queued, undelivered messages.
func (b *MessageBus) PendingCount() int { return len(b.pending) }

// Stats returns a copy of the traffic counters.
func (b *MessageBus) Stats() BusStats { return b.stats }
