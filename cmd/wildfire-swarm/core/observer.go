package core

import "sort"

// NeighborEstimate is an observer's belief about one neighbor.
type NeighborEstimate struct {
	NeighborID     int     `json:"neighbor_id"`
	LastKnownPose  Vec3    `json:"last_known_pose"`
	LastKnownVel   Vec3    `json:"last_known_velocity"`
	LastUpdateTime float64 `json:"last_update_time"`
	lastSendTime   float64
	seen           bool
}

// Prediction is a neighbor state extrapolated to a query time.
type Prediction struct {
	NeighborID int     `json:"neighbor_id"`
	Pose       Vec3    `json:"pose"`
	Confidence float64 `json:"confidence"`
}

// Observer is the per-vehicle estimator over neighboring vehicles. It
// predicts neighbor poses between sparse telemetry updates with a
// confidence that decays with estimate age; past the maximum age the
// last known pose is reported with zero confidence and no extrapolation.
type Observer struct {
	ownerID       int
	maxAgeS       float64
	minConfidence float64
	neighbors     map[int]*NeighborEstimate
}

// NewObserver creates an observer for the given vehicle. maxAgeS <= 0
// falls back to the default estimate lifetime.
func NewObserver(ownerID int, maxAgeS, minConfidence float64) *Observer {
	if maxAgeS <= 0 {
		maxAgeS = DefaultMaxEstimateAgeS
	}
	return &Observer{
		ownerID:       ownerID,
		maxAgeS:       maxAgeS,
		minConfidence: minConfidence,
		neighbors:     make(map[int]*NeighborEstimate),
	}
}

// Update records a received telemetry sample. Senders' clocks are
// monotone per vehicle, so a sample with an earlier send time never
// overwrites one set by a later send time.
func (o *Observer) Update(neighborID int, pose, vel Vec3, sendTime, recvTime float64) {
	est, ok := o.neighbors[neighborID]
	if !ok {
		est = &NeighborEstimate{NeighborID: neighborID}
		o.neighbors[neighborID] = est
	}
	if est.seen && sendTime < est.lastSendTime {
		return
	}
	est.LastKnownPose = pose
	est.LastKnownVel = vel
	est.LastUpdateTime = recvTime
	est.lastSendTime = sendTime
	est.seen = true
}

// Predict extrapolates one neighbor to the query time under a
// constant-velocity model. Missing neighbors report ok=false.
func (o *Observer) Predict(neighborID int, queryTime float64) (Prediction, bool) {
	est, ok := o.neighbors[neighborID]
	if !ok || !est.seen {
		return Prediction{}, false
	}

	age := queryTime - est.LastUpdateTime
	if age < 0 {
		age = 0
	}
	if age > o.maxAgeS {
		return Prediction{NeighborID: neighborID, Pose: est.LastKnownPose, Confidence: 0}, true
	}

	pose := est.LastKnownPose.Add(est.LastKnownVel.Scale(age))
	confidence := 1 - ConfidenceDropFactor*Clamp(age/o.maxAgeS, 0, 1)
	return Prediction{NeighborID: neighborID, Pose: pose, Confidence: confidence}, true
}

// CollisionRisks returns every neighbor predicted inside the minimum
// separation sphere with confidence above the configured floor. Missing
// or fully expired neighbors are simply absent; this never fails.
func (o *Observer) CollisionRisks(selfPose Vec3, queryTime, minSeparationM float64) []Prediction {
	ids := make([]int, 0, len(o.neighbors))
	for id := range o.neighbors {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []Prediction
	for _, id := range ids {
		pred, ok := o.Predict(id, queryTime)
		if !ok {
			continue
		}
		if pred.Confidence <= o.minConfidence || pred.Confidence <= 0 {
			continue
		}
		if selfPose.DistanceTo(pred.Pose) < minSeparationM {
			out = append(out, pred)
		}
	}
	return out
}

// Estimates returns copies of all current neighbor estimates in id order.
func (o *Observer) Estimates() []NeighborEstimate {
	ids := make([]int, 0, len(o.neighbors))
	for id := range o.neighbors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]NeighborEstimate, 0, len(ids))
	for _, id := range ids {
		out = append(out, *o.neighbors[id])
	}
	return out
}
