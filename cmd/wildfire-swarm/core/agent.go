package core

import (
	"math"
	"math/rand"
)

// AgentParams configures a single vehicle agent.
type AgentParams struct {
	ID                 int
	Role               DroneRole
	Home               Vec3
	WorldWidthM        float64
	WorldHeightM       float64
	CruiseSpeedMS      float64
	TakeoffAltitudeM   float64
	LandingRadiusM     float64
	SensorRangeM       float64
	MinSeparationM     float64
	DetectionThreshold float64
	SuppressStrength   float64
	MaxEstimateAgeS    float64
	LevyAlpha          float64
	LevyStepScaleM     float64
	Seed               int64
}

// AgentEvents collects what an agent wants transmitted after its control
// step. Fire detections bypass ETM gating; suppression reports ride the
// normal bus.
type AgentEvents struct {
	Detections   []FireDetectionPayload
	Suppressions []SuppressionPayload
}

// Agent is the decentralized control logic for one vehicle. It owns its
// observer and exploration RNG; the engine owns the canonical pose and
// energy. Each tick the kernel hands the agent the engine for reads and
// narrow typed writes.
type Agent struct {
	ID   int
	Role DroneRole
	Home Vec3

	state      DroneState
	heading    float64
	waypoint   Vec3
	hasWaypoint bool
	holding    bool

	observer *Observer
	levy     *LevyFlight
	rng      *rand.Rand

	worldW             float64
	worldH             float64
	cruiseSpeed        float64
	takeoffAltitude    float64
	landingRadius      float64
	sensorRange        float64
	minSeparation      float64
	detectionThreshold float64
	suppressStrength   float64

	FiresDetected    int
	SuppressionTicks int
}

// NewAgent builds an agent. The exploration RNG is seeded from the
// master seed mixed with the drone id, so runs replay exactly.
func NewAgent(p AgentParams) *Agent {
	if p.CruiseSpeedMS <= 0 {
		p.CruiseSpeedMS = DefaultCruiseSpeedMS
	}
	if p.TakeoffAltitudeM <= 0 {
		p.TakeoffAltitudeM = DefaultTakeoffAltitudeM
	}
	if p.LandingRadiusM <= 0 {
		p.LandingRadiusM = DefaultLandingRadiusM
	}
	if p.SensorRangeM <= 0 {
		p.SensorRangeM = DefaultSensorRangeM
	}
	if p.MinSeparationM <= 0 {
		p.MinSeparationM = DefaultMinSeparationM
	}
	if p.DetectionThreshold <= 0 {
		p.DetectionThreshold = DetectionThreshold
	}
	if p.SuppressStrength <= 0 || p.SuppressStrength > 1 {
		p.SuppressStrength = 1.0
	}

	agentSeed := p.Seed*1000003 + int64(p.ID)
	return &Agent{
		ID:                 p.ID,
		Role:               p.Role,
		Home:               p.Home,
		state:              StateIdle,
		observer:           NewObserver(p.ID, p.MaxEstimateAgeS, 0),
		levy:               NewLevyFlight(p.LevyAlpha, p.LevyStepScaleM, DefaultLevyAngularDeg, agentSeed+500009),
		rng:                rand.New(rand.NewSource(agentSeed)),
		worldW:             p.WorldWidthM,
		worldH:             p.WorldHeightM,
		cruiseSpeed:        p.CruiseSpeedMS,
		takeoffAltitude:    p.TakeoffAltitudeM,
		landingRadius:      p.LandingRadiusM,
		sensorRange:        p.SensorRangeM,
		minSeparation:      p.MinSeparationM,
		detectionThreshold: p.DetectionThreshold,
		suppressStrength:   p.SuppressStrength,
	}
}

// State returns the agent's behavior state.
func (a *Agent) State() DroneState { return a.state }

// Observer exposes the agent's neighbor estimator.
func (a *Agent) Observer() *Observer { return a.observer }

// HandleCommand applies an external directive. Unknown names are ignored.
func (a *Agent) HandleCommand(cmd CommandPayload, batteryPercent, rtlThreshold float64) {
	switch cmd.Name {
	case "takeoff":
		if a.state == StateIdle && batteryPercent > rtlThreshold {
			a.transition(StateTakeoff)
		}
	case "rtl":
		if a.state != StateIdle && a.state != StateLand {
			a.transition(StateReturnToLaunch)
		}
	case "land":
		if a.state != StateIdle {
			a.transition(StateLand)
		}
	case "goto":
		if a.state == StateSearch || a.state == StateFormation {
			a.waypoint = cmd.Target
			a.hasWaypoint = true
		}
	case "formation":
		if a.state == StateSearch {
			a.transition(StateFormation)
		}
	case "hold":
		a.holding = true
	case "resume":
		a.holding = false
	}
}

// ReceiveTelemetry feeds a delivered neighbor report into the observer.
func (a *Agent) ReceiveTelemetry(senderID int, t TelemetryPayload, sendTime, recvTime float64) {
	a.observer.Update(senderID, t.Pose, t.Velocity, sendTime, recvTime)
}

// Step runs one control tick: hard overrides, sensing, the state
// machine, collision deferral, and pose integration. Emitted events are
// returned for the kernel's messaging phase.
func (a *Agent) Step(eng *Engine, pheromones *PheromoneGrid, dt float64) AgentEvents {
	var events AgentEvents

	rec, err := eng.Drone(a.ID)
	if err != nil {
		return events
	}
	now := eng.Now()
	pose := rec.Pose

	// Hard RTL override: battery at threshold or payload exhausted pulls
	// any mission state home immediately.
	overridden := false
	if a.state != StateIdle && a.state != StateReturnToLaunch && a.state != StateLand {
		if override, _ := rec.Energy.RTLOverride(); override {
			a.transition(StateReturnToLaunch)
			overridden = true
		}
	}

	// Fire sensing runs while searching, suppressing or in formation.
	intensity := 0.0
	if a.state == StateSearch || a.state == StateSuppress || a.state == StateFormation {
		intensity = eng.SampleIntensity(pose.X, pose.Y)
		if intensity > a.detectionThreshold && a.rng.Float64() < math.Min(1, intensity) {
			a.FiresDetected++
			events.Detections = append(events.Detections, FireDetectionPayload{
				Position:  pose,
				Intensity: intensity,
			})
			if pheromones != nil {
				pheromones.Deposit(pose.X, pose.Y, DefaultPheromoneDeposit)
			}
			if a.state == StateSearch || a.state == StateFormation {
				if !rec.Energy.Payload.Empty() && !rec.Energy.Battery.Critical() {
					a.transition(StateSuppress)
				}
			}
		}
	}

	var velocity Vec3
	switch a.state {
	case StateIdle:
		// Waiting for a takeoff command.

	case StateTakeoff:
		if pose.Z >= a.takeoffAltitude {
			a.transition(StateSearch)
		} else {
			velocity = Vec3{Z: 2.5}
		}

	case StateSearch:
		velocity = a.stepSearch(pose, pheromones)

	case StateFormation:
		velocity = a.stepFormation(pose, now)

	case StateSuppress:
		if intensity < BurningEpsilon {
			if rec.Energy.Payload.Empty() {
				a.transition(StateReturnToLaunch)
			} else {
				a.transition(StateSearch)
			}
			break
		}
		if _, err := eng.ApplySuppression(pose.X, pose.Y, a.suppressStrength); err == nil {
			rec.Energy.Payload.Consume(1)
			a.SuppressionTicks++
			events.Suppressions = append(events.Suppressions, SuppressionPayload{
				Position: pose,
				Strength: a.suppressStrength,
			})
		}

	case StateReturnToLaunch:
		// The override tick always ends in RETURN_TO_LAUNCH; the landing
		// check starts on the next tick.
		if !overridden && pose.Distance2D(a.Home) <= a.landingRadius {
			a.transition(StateLand)
		} else {
			velocity = a.steerToward(pose, Vec3{X: a.Home.X, Y: a.Home.Y, Z: pose.Z})
		}

	case StateLand:
		if pose.Z <= 0.1 {
			rec.Energy.Dock()
			a.transition(StateIdle)
		} else {
			velocity = Vec3{Z: -2.0}
		}
	}

	// Collision deferral: any neighbor predicted inside the separation
	// sphere with live confidence freezes lateral motion this tick.
	if velocity.X != 0 || velocity.Y != 0 {
		if len(a.observer.CollisionRisks(pose, now, a.minSeparation)) > 0 {
			velocity = Vec3{Z: velocity.Z}
		}
	}
	if a.holding {
		velocity = Vec3{}
	}

	next := pose.Add(velocity.Scale(dt))
	next.X = Clamp(next.X, 0, a.worldW)
	next.Y = Clamp(next.Y, 0, a.worldH)
	next.Z = math.Max(0, next.Z)
	_ = eng.SetPose(a.ID, next, velocity, dt)
	rec.State = a.state

	return events
}

func (a *Agent) stepSearch(pose Vec3, pheromones *PheromoneGrid) Vec3 {
	// Pheromone gradients outrank the random walk: a marked detection
	// nearby pulls searching drones in.
	if pheromones != nil {
		if heading, ok := pheromones.Gradient(pose.X, pose.Y); ok {
			a.heading = heading
			a.hasWaypoint = false
			return Vec3{
				X: a.cruiseSpeed * math.Cos(heading),
				Y: a.cruiseSpeed * math.Sin(heading),
			}
		}
	}

	if !a.hasWaypoint || pose.Distance2D(a.waypoint) < a.cruiseSpeed {
		dx, dy, heading := a.levy.Step(a.heading)
		a.heading = heading
		a.waypoint = Vec3{
			X: Clamp(pose.X+dx, 0, a.worldW),
			Y: Clamp(pose.Y+dy, 0, a.worldH),
			Z: pose.Z,
		}
		a.hasWaypoint = true
	}
	return a.steerToward(pose, a.waypoint)
}

func (a *Agent) stepFormation(pose Vec3, now float64) Vec3 {
	// Hold station behind the lowest-id neighbor estimate (of any role)
	// still trusted; without one the agent degrades to plain search.
	for _, est := range a.observer.Estimates() {
		pred, ok := a.observer.Predict(est.NeighborID, now)
		if !ok || pred.Confidence <= 0 {
			continue
		}
		target := pred.Pose.Add(Vec3{X: -2 * a.minSeparation, Y: 0})
		if pose.Distance2D(target) < 1 {
			return Vec3{}
		}
		return a.steerToward(pose, target)
	}
	a.transition(StateSearch)
	return Vec3{}
}

func (a *Agent) steerToward(pose, target Vec3) Vec3 {
	delta := target.Sub(pose)
	dist := delta.Norm()
	if dist < 1e-9 {
		return Vec3{}
	}
	return delta.Scale(a.cruiseSpeed / dist)
}

func (a *Agent) transition(next DroneState) {
	a.state = next
	a.hasWaypoint = false
}
