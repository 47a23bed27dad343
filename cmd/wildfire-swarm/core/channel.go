package core

import (
	"math"
	"math/rand"
	"sort"
)

// PathLossModel is the log-distance path loss law
// PL(d) = 10·n·log10(d/d0), giving RSSI(d) = ref − PL(d).
type PathLossModel struct {
	ReferenceDistanceM float64
	Exponent           float64
	ReferenceRSSIDBm   float64
}

// NewPathLossModel builds a model, falling back to defaults for zero fields.
func NewPathLossModel(refDistM, exponent, refRSSI float64) PathLossModel {
	if refDistM <= 0 {
		refDistM = DefaultReferenceDistanceM
	}
	if exponent <= 0 {
		exponent = DefaultPathLossExponent
	}
	if refRSSI == 0 {
		refRSSI = DefaultReferenceRSSIDBm
	}
	return PathLossModel{ReferenceDistanceM: refDistM, Exponent: exponent, ReferenceRSSIDBm: refRSSI}
}

// RSSI returns the deterministic (fading-free) RSSI at distance d.
// Distances under the reference distance are treated as the reference.
func (m PathLossModel) RSSI(distanceM float64) float64 {
	d := math.Max(distanceM, m.ReferenceDistanceM)
	return m.ReferenceRSSIDBm - 10*m.Exponent*math.Log10(d/m.ReferenceDistanceM)
}

// FadingSigmaFromK maps a Rician K-factor onto the standard deviation of
// the Gaussian fading approximation, calibrated to ≈2 dB at K=8.
func FadingSigmaFromK(k float64) float64 {
	if k <= 0 {
		return DefaultFadingStdDB
	}
	return 5.6 / math.Sqrt(k)
}

// LinkState is an immutable snapshot of a directed RF link. Callers get a
// copy; later channel updates never mutate a value already handed out.
type LinkState struct {
	SenderID       int     `json:"sender_id"`
	ReceiverID     int     `json:"receiver_id"`
	DistanceM      float64 `json:"distance_m"`
	RSSIDBm        float64 `json:"rssi_dbm"`
	LatencyS       float64 `json:"latency_s"`
	PacketLossProb float64 `json:"packet_loss_prob"`
	LastUpdated    float64 `json:"last_updated_time"`
}

// ChannelTable owns every directed RF link in the swarm. The fading RNG
// is distinct from the fire RNG and advances exactly once per link
// update; reads never touch it.
type ChannelTable struct {
	pathLoss          PathLossModel
	fadingStdDB       float64
	maxBroadcastRange float64
	rng               *rand.Rand
	links             map[[2]int]LinkState
}

// ChannelParams configures a ChannelTable.
type ChannelParams struct {
	PathLossExponent  float64
	ReferenceRSSIDBm  float64
	RiceKFactor       float64
	MaxBroadcastRange float64
	Seed              int64
}

// NewChannelTable creates an empty table; links appear lazily on first use.
func NewChannelTable(p ChannelParams) *ChannelTable {
	k := p.RiceKFactor
	if k <= 0 {
		k = DefaultRiceKFactor
	}
	maxRange := p.MaxBroadcastRange
	if maxRange <= 0 {
		maxRange = DefaultMaxBroadcastRangeM
	}
	return &ChannelTable{
		pathLoss:          NewPathLossModel(DefaultReferenceDistanceM, p.PathLossExponent, p.ReferenceRSSIDBm),
		fadingStdDB:       FadingSigmaFromK(k),
		maxBroadcastRange: maxRange,
		rng:               rand.New(rand.NewSource(p.Seed)),
		links:             make(map[[2]int]LinkState),
	}
}

// MaxBroadcastRange returns the configured range gate in meters.
func (t *ChannelTable) MaxBroadcastRange() float64 { return t.maxBroadcastRange }

// Update recomputes the link i→j for the given distance, drawing one
// fading sample, and returns the resulting snapshot.
func (t *ChannelTable) Update(senderID, receiverID int, distanceM, nowS float64) LinkState {
	fade := t.rng.NormFloat64() * t.fadingStdDB
	return t.store(senderID, receiverID, distanceM, nowS, fade)
}

// store computes and records the link i→j with the given fading offset.
func (t *ChannelTable) store(senderID, receiverID int, distanceM, nowS, fade float64) LinkState {
	rssi := t.pathLoss.RSSI(distanceM) + fade

	loss := Clamp(math.Exp(-math.Max(0, rssi-PacketLossFloorRSSIDBm)/10), 0, 1)
	if distanceM > t.maxBroadcastRange {
		// Beyond the range gate every packet drops, but the RSSI is still
		// recorded for diagnostics.
		loss = 1.0
	}

	latency := BaseLatencySeconds + math.Max(0, LatencyReferenceRSSIDBm-rssi)*LatencyPerDBSeconds

	st := LinkState{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		DistanceM:      distanceM,
		RSSIDBm:        rssi,
		LatencyS:       latency,
		PacketLossProb: loss,
		LastUpdated:    nowS,
	}
	t.links[[2]int{senderID, receiverID}] = st
	return st
}

// State returns the latest snapshot for i→j, computing the link on first
// sight from path loss alone (no fading draw). A self-link reports the
// sentinel RSSI and zero latency.
func (t *ChannelTable) State(senderID, receiverID int, distanceM, nowS float64) LinkState {
	if senderID == receiverID {
		return LinkState{
			SenderID:   senderID,
			ReceiverID: receiverID,
			RSSIDBm:    SelfLinkRSSI,
		}
	}
	if st, ok := t.links[[2]int{senderID, receiverID}]; ok {
		return st
	}
	return t.store(senderID, receiverID, distanceM, nowS, 0)
}

// UpdateAll refreshes every directed pair of the given positions in
// ascending sender/receiver id order, keeping fading-draw consumption
// deterministic.
func (t *ChannelTable) UpdateAll(positions map[int]Vec3, nowS float64) {
	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, sender := range ids {
		for _, receiver := range ids {
			if sender == receiver {
				continue
			}
			d := positions[sender].DistanceTo(positions[receiver])
			t.Update(sender, receiver, d, nowS)
		}
	}
}

// Links returns copies of every known link state ordered by directed pair.
func (t *ChannelTable) Links() []LinkState {
	keys := make([][2]int, 0, len(t.links))
	for k := range t.links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	out := make([]LinkState, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.links[k])
	}
	return out
}
