package core

import (
	"fmt"
	"math"
	"sort"
)

// DroneRecord is the engine's canonical record for one vehicle. The
// engine owns pose, velocity, and energy; agents read through queries
// and mutate only via the narrow typed operations.
type DroneRecord struct {
	ID                int
	Pose              Vec3
	Velocity          Vec3
	Role              DroneRole
	State             DroneState
	Energy            *EnergyManager
	LastBroadcastPose Vec3
	LastBroadcastTime float64
	HasBroadcast      bool
	TotalDistanceM    float64
	pendingDistanceM  float64
}

// DroneSnapshot is the by-value export of a drone record.
type DroneSnapshot struct {
	ID                int     `json:"id"`
	Pose              Vec3    `json:"pose"`
	Velocity          Vec3    `json:"velocity"`
	Role              string  `json:"role"`
	State             string  `json:"state"`
	BatteryPercent    float64 `json:"battery_percent"`
	PayloadRemaining  float64 `json:"payload_remaining"`
	LastBroadcastTime float64 `json:"last_broadcast_time"`
	TotalDistanceM    float64 `json:"total_distance_m"`
}

// WorldSnapshot is a deep, immutable copy of the world published at the
// end of every tick.
type WorldSnapshot struct {
	Tick         uint64          `json:"tick"`
	TimeS        float64         `json:"time_s"`
	Wind         Wind            `json:"wind"`
	FireSummary  FireSummary     `json:"fire_summary"`
	BurningCells []BurningCell   `json:"burning_cells"`
	Drones       []DroneSnapshot `json:"drones"`
	Links        []LinkState     `json:"links"`
}

// Engine is the authoritative physics engine: it owns the fire grid, the
// RF channel table, and every vehicle's energy and canonical pose. All
// fire and channel randomness lives here; agents are deterministic
// functions of observed state plus their own exploration RNG.
type Engine struct {
	fire    *FireGrid
	channel *ChannelTable
	drones  map[int]*DroneRecord

	batteryParams BatteryParams
	maxPayload    float64

	tick  uint64
	timeS float64
}

// EngineParams configures an Engine.
type EngineParams struct {
	Fire       FireGridParams
	Channel    ChannelParams
	Battery    BatteryParams
	MaxPayload float64
}

// NewEngine creates an empty world.
func NewEngine(p EngineParams) *Engine {
	return &Engine{
		fire:          NewFireGrid(p.Fire),
		channel:       NewChannelTable(p.Channel),
		drones:        make(map[int]*DroneRecord),
		batteryParams: p.Battery,
		maxPayload:    p.MaxPayload,
	}
}

// Fire exposes the fire grid for read queries.
func (e *Engine) Fire() *FireGrid { return e.fire }

// Channel exposes the channel table.
func (e *Engine) Channel() *ChannelTable { return e.channel }

// Now returns the current simulated time in seconds.
func (e *Engine) Now() float64 { return e.timeS }

// Tick returns the current tick count.
func (e *Engine) Tick() uint64 { return e.tick }

// RegisterDrone creates a vehicle record with full battery and payload,
// zero velocity, and state IDLE.
func (e *Engine) RegisterDrone(id int, pose Vec3, role DroneRole) error {
	if id <= 0 {
		return fmt.Errorf("register drone %d: %w", id, ErrInvalidValue)
	}
	if !finiteVec(pose) {
		return fmt.Errorf("register drone %d: non-finite pose: %w", id, ErrInvalidValue)
	}
	if _, ok := e.drones[id]; ok {
		return fmt.Errorf("register drone %d: %w", id, ErrDuplicateID)
	}
	e.drones[id] = &DroneRecord{
		ID:     id,
		Pose:   pose,
		Role:   role,
		State:  StateIdle,
		Energy: NewEnergyManager(e.batteryParams, e.maxPayload),
	}
	return nil
}

// DroneIDs returns all registered ids in ascending order.
func (e *Engine) DroneIDs() []int {
	ids := make([]int, 0, len(e.drones))
	for id := range e.drones {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Drone returns the record for id.
func (e *Engine) Drone(id int) (*DroneRecord, error) {
	d, ok := e.drones[id]
	if !ok {
		return nil, fmt.Errorf("drone %d: %w", id, ErrUnknownDrone)
	}
	return d, nil
}

// SetPose moves a drone. The distance flown accumulates and is charged
// against the battery in the tick's energy phase.
func (e *Engine) SetPose(id int, pose, velocity Vec3, dt float64) error {
	d, ok := e.drones[id]
	if !ok {
		return fmt.Errorf("set pose for drone %d: %w", id, ErrUnknownDrone)
	}
	if !finiteVec(pose) || !finiteVec(velocity) {
		return fmt.Errorf("set pose for drone %d: %w", id, ErrInvalidValue)
	}
	dist := d.Pose.DistanceTo(pose)
	d.Pose = pose
	d.Velocity = velocity
	d.TotalDistanceM += dist
	d.pendingDistanceM += dist
	return nil
}

// ApplyEnergy is the energy phase: every airborne drone pays for the
// distance it moved this tick plus hover drain for the elapsed time.
func (e *Engine) ApplyEnergy(dt float64) {
	for _, id := range e.DroneIDs() {
		d := e.drones[id]
		if d.State == StateIdle && d.pendingDistanceM == 0 {
			continue
		}
		d.Energy.Battery.DrainFlight(d.pendingDistanceM, dt)
		d.pendingDistanceM = 0
	}
}

// Ignite starts or strengthens a fire at world coordinates.
func (e *Engine) Ignite(xM, yM, intensity float64) error {
	return e.fire.Ignite(xM, yM, intensity)
}

// ApplySuppression requests a suppression drop at world coordinates.
func (e *Engine) ApplySuppression(xM, yM, strength float64) (SuppressionReceipt, error) {
	return e.fire.Suppress(xM, yM, strength)
}

// SampleIntensity reads the fire intensity under a world point.
func (e *Engine) SampleIntensity(xM, yM float64) float64 {
	return e.fire.SampleIntensity(xM, yM)
}

// RSSI returns the latest link snapshot for i→j, computing the link on
// first sight. The returned value is a copy; it never aliases the
// engine's mutable link record.
func (e *Engine) RSSI(senderID, receiverID int) (LinkState, error) {
	s, ok := e.drones[senderID]
	if !ok {
		return LinkState{}, fmt.Errorf("rssi sender %d: %w", senderID, ErrUnknownDrone)
	}
	if senderID == receiverID {
		return e.channel.State(senderID, receiverID, 0, e.timeS), nil
	}
	r, ok := e.drones[receiverID]
	if !ok {
		return LinkState{}, fmt.Errorf("rssi receiver %d: %w", receiverID, ErrUnknownDrone)
	}
	return e.channel.State(senderID, receiverID, s.Pose.DistanceTo(r.Pose), e.timeS), nil
}

// Battery returns the battery state for a drone.
func (e *Engine) Battery(id int) (BatteryState, error) {
	d, ok := e.drones[id]
	if !ok {
		return BatteryState{}, fmt.Errorf("battery for drone %d: %w", id, ErrUnknownDrone)
	}
	return d.Energy.Battery.State(), nil
}

// StepFire advances the cellular automaton one step.
func (e *Engine) StepFire(dt float64) error { return e.fire.Step(dt) }

// UpdateChannels recomputes every directed link for current poses.
func (e *Engine) UpdateChannels() {
	positions := make(map[int]Vec3, len(e.drones))
	for id, d := range e.drones {
		positions[id] = d.Pose
	}
	e.channel.UpdateAll(positions, e.timeS)
}

// AdvanceClock moves simulated time forward one tick.
func (e *Engine) AdvanceClock(dt float64) {
	e.tick++
	e.timeS += dt
}

// Step advances fire and channels in one call; the kernel normally
// drives the phases individually so agent control runs in between.
func (e *Engine) Step(dt float64) error {
	if dt <= 0 {
		return ErrNegativeStep
	}
	if err := e.StepFire(dt); err != nil {
		return err
	}
	e.UpdateChannels()
	e.AdvanceClock(dt)
	return nil
}

// RecordBroadcast notes a telemetry transmission on the drone record.
func (e *Engine) RecordBroadcast(id int, pose Vec3, nowS float64) {
	if d, ok := e.drones[id]; ok {
		d.LastBroadcastPose = pose
		d.LastBroadcastTime = nowS
		d.HasBroadcast = true
	}
}

// CheckInvariants validates world state after a tick. A violation is
// non-recoverable; callers treat it as fatal.
func (e *Engine) CheckInvariants() error {
	for _, c := range e.fire.Snapshot() {
		if c.Intensity < 0 || math.IsNaN(c.Intensity) {
			return fmt.Errorf("fire cell intensity %.4f: %w", c.Intensity, ErrInvalidValue)
		}
	}
	for _, id := range e.DroneIDs() {
		d := e.drones[id]
		if !finiteVec(d.Pose) {
			return fmt.Errorf("drone %d pose: %w", id, ErrInvalidValue)
		}
	}
	return nil
}

// ExportState builds a deep snapshot of the world. The copy shares no
// memory with the engine, so readers can hold it across ticks.
func (e *Engine) ExportState() WorldSnapshot {
	snap := WorldSnapshot{
		Tick:         e.tick,
		TimeS:        e.timeS,
		Wind:         e.fire.Wind(),
		FireSummary:  e.fire.Summary(),
		BurningCells: e.fire.IterBurning(),
		Links:        e.channel.Links(),
	}
	for _, id := range e.DroneIDs() {
		d := e.drones[id]
		snap.Drones = append(snap.Drones, DroneSnapshot{
			ID:                d.ID,
			Pose:              d.Pose,
			Velocity:          d.Velocity,
			Role:              d.Role.String(),
			State:             d.State.String(),
			BatteryPercent:    d.Energy.Battery.Percent(),
			PayloadRemaining:  d.Energy.Payload.Remaining(),
			LastBroadcastTime: d.LastBroadcastTime,
			TotalDistanceM:    d.TotalDistanceM,
		})
	}
	return snap
}

func finiteVec(v Vec3) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
