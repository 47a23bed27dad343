package core

import "math"

// ErrorNorm selects the displacement norm the trigger rule uses.
type ErrorNorm int

const (
	NormL2 ErrorNorm = iota
	NormLInf
)

// ETMState is the per-vehicle state of the event-triggered mechanism.
type ETMState struct {
	PoseAtLastTx       Vec3    `json:"pose_at_last_tx"`
	LastTxTime         float64 `json:"last_tx_time"`
	HasTransmitted     bool    `json:"has_transmitted"`
	TotalTransmissions int     `json:"total_transmissions"`
	TotalSuppressed    int     `json:"total_suppressed"`
	CurrentEta         float64 `json:"current_eta"`
}

// ETMController gates per-vehicle telemetry on a dynamically decaying
// threshold: η(t) = max(η_min, η₀·exp(−λ·Δt_since_last_tx)). Long
// silences shrink the threshold, so transmissions resume as soon as a
// vehicle moves again.
type ETMController struct {
	eta0   float64
	lambda float64
	etaMin float64
	norm   ErrorNorm
	states map[int]*ETMState
}

// ETMParams configures an ETMController.
type ETMParams struct {
	Eta0   float64
	Lambda float64
	EtaMin float64
	Norm   ErrorNorm
}

// NewETMController creates a controller with no registered vehicles.
// Eta0 may legitimately be zero (threshold permanently zero: every
// decision transmits), so only negative values fall back to defaults.
func NewETMController(p ETMParams) *ETMController {
	if p.Eta0 < 0 {
		p.Eta0 = DefaultEta0
	}
	if p.Lambda <= 0 {
		p.Lambda = DefaultLambda
	}
	if p.EtaMin <= 0 {
		p.EtaMin = DefaultEtaMin
	}
	if p.Eta0 == 0 {
		p.EtaMin = 0
	}
	return &ETMController{
		eta0:   p.Eta0,
		lambda: p.Lambda,
		etaMin: p.EtaMin,
		norm:   p.Norm,
		states: make(map[int]*ETMState),
	}
}

// SetThreshold replaces η₀ and λ. Applied between ticks on a hot
// config update.
func (c *ETMController) SetThreshold(eta0, lambda float64) {
	if eta0 >= 0 {
		c.eta0 = eta0
		if eta0 == 0 {
			c.etaMin = 0
		}
	}
	if lambda > 0 {
		c.lambda = lambda
	}
}

// Register adds a vehicle. Registering an existing id is a no-op.
func (c *ETMController) Register(droneID int) {
	if _, ok := c.states[droneID]; !ok {
		c.states[droneID] = &ETMState{CurrentEta: c.eta0}
	}
}

// Eta returns the threshold for a vehicle at the given time.
func (c *ETMController) Eta(droneID int, nowS float64) float64 {
	st, ok := c.states[droneID]
	if !ok || !st.HasTransmitted {
		return c.eta0
	}
	eta := c.eta0 * math.Exp(-c.lambda*(nowS-st.LastTxTime))
	return math.Max(c.etaMin, eta)
}

// ShouldTransmit applies the trigger rule: transmit iff the vehicle has
// never transmitted, or the pose displacement since the last
// transmission exceeds the current threshold. The decision is a pure
// function of (pose, now), so repeated calls at the same simulated time
// return identical answers.
func (c *ETMController) ShouldTransmit(droneID int, pose Vec3, nowS float64) bool {
	st, ok := c.states[droneID]
	if !ok {
		return false
	}
	if !st.HasTransmitted {
		return true
	}

	eta := c.Eta(droneID, nowS)
	st.CurrentEta = eta

	delta := pose.Sub(st.PoseAtLastTx)
	var err float64
	if c.norm == NormLInf {
		err = delta.NormInf()
	} else {
		err = delta.Norm()
	}
	return err > eta
}

// RecordTransmission commits a transmission at the given pose and time.
func (c *ETMController) RecordTransmission(droneID int, pose Vec3, nowS float64) {
	st, ok := c.states[droneID]
	if !ok {
		return
	}
	st.PoseAtLastTx = pose
	st.LastTxTime = nowS
	st.HasTransmitted = true
	st.TotalTransmissions++
}

// RecordSuppressed counts a decision that did not transmit.
func (c *ETMController) RecordSuppressed(droneID int) {
	if st, ok := c.states[droneID]; ok {
		st.TotalSuppressed++
	}
}

// State returns a copy of a vehicle's ETM state.
func (c *ETMController) State(droneID int) (ETMState, bool) {
	st, ok := c.states[droneID]
	if !ok {
		return ETMState{}, false
	}
	return *st, true
}
