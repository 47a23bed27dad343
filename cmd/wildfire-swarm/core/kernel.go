package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CommandKind enumerates external commands accepted through the inbox.
type CommandKind int

const (
	CmdIgnite CommandKind = iota
	CmdSuppress
	CmdSetWind
	CmdDrone
	CmdConfigUpdate
	CmdStart
	CmdStop
)

// ConfigUpdate carries the hot-reloadable fields. Nil pointers leave the
// current value untouched.
type ConfigUpdate struct {
	ETMEta0             *float64
	ETMLambda           *float64
	RTLThresholdPercent *float64
}

// KernelCommand is one entry of the command inbox. Reply, when non-nil,
// receives the result exactly once.
type KernelCommand struct {
	Kind      CommandKind
	X, Y      float64
	Intensity float64
	Strength  float64
	WindSpeed float64
	WindDir   float64
	DroneID   int
	Drone     CommandPayload
	Config    ConfigUpdate
	Reply     chan CommandResult
}

// CommandResult acknowledges an inbox command.
type CommandResult struct {
	Err           error
	CellsAffected int
	AlreadyInState bool
}

// KernelParams assembles everything the kernel needs. The value is
// immutable once handed in; hot updates arrive as commands.
type KernelParams struct {
	DtS          float64
	Seed         int64
	NumLeaders   int
	NumFollowers int

	Fire    FireGridParams
	Channel ChannelParams
	Battery BatteryParams
	ETM     ETMParams

	MaxPayload          float64
	RTLThresholdPercent float64
	CruiseSpeedMS       float64
	SensorRangeM        float64
	MinSeparationM      float64
	SuppressStrength    float64
	MaxEstimateAgeS     float64
	LevyAlpha           float64
	LevyStepScaleM      float64
	MetricsHistory      int

	// RealTime paces ticks against the wall clock; tests leave it off
	// and step as fast as possible.
	RealTime bool
}

// Kernel is the single-threaded tick orchestrator. It owns the engine
// and the agents, drains the command inbox at the top of every tick,
// advances the subsystems in the fixed order, and publishes an immutable
// snapshot at the end of each tick.
type Kernel struct {
	params KernelParams
	dtS    float64

	engine     *Engine
	agents     map[int]*Agent
	agentIDs   []int
	etm        *ETMController
	bus        *MessageBus
	metrics    *MetricsCollector
	pheromones *PheromoneGrid
	planner    *KMeansPlanner

	inbox   chan KernelCommand
	outbox  *SnapshotOutbox
	running bool

	rtlThreshold float64
	events       EventSink
	prevStates   map[int]DroneState
}

// EventSink receives notable kernel events for run logging. All calls
// happen on the tick thread; implementations must be safe to call
// concurrently with their own readers.
type EventSink interface {
	FireDetected(timeS float64, droneID int, intensity float64)
	ReturnToLaunch(timeS float64, droneID int, reason string)
}

// SetEventSink installs an event sink. Call before the kernel starts.
func (k *Kernel) SetEventSink(sink EventSink) { k.events = sink }

// SnapshotOutbox is the single-producer, latest-only snapshot channel.
// Slow readers miss intermediate ticks; they never block the kernel.
type SnapshotOutbox struct {
	mu      sync.RWMutex
	snap    WorldSnapshot
	seq     uint64
	changed chan struct{}
}

func newSnapshotOutbox() *SnapshotOutbox {
	return &SnapshotOutbox{changed: make(chan struct{}, 1)}
}

// Publish replaces the latest snapshot.
func (o *SnapshotOutbox) Publish(s WorldSnapshot) {
	o.mu.Lock()
	o.snap = s
	o.seq++
	o.mu.Unlock()
	select {
	case o.changed <- struct{}{}:
	default:
	}
}

// Latest returns the newest complete snapshot and its sequence number.
func (o *SnapshotOutbox) Latest() (WorldSnapshot, uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap, o.seq
}

// Changed signals when a newer snapshot than the last read is available.
func (o *SnapshotOutbox) Changed() <-chan struct{} { return o.changed }

// NewKernel builds the world: engine, agents (leaders first, then
// followers, ids ascending from 1), ETM registrations, bus, metrics.
func NewKernel(p KernelParams) (*Kernel, error) {
	if p.DtS <= 0 {
		p.DtS = DefaultTickSeconds
	}
	if p.RTLThresholdPercent <= 0 {
		p.RTLThresholdPercent = DefaultRTLThresholdPercent
	}
	p.Fire.Seed = p.Seed
	p.Channel.Seed = p.Seed + 1
	p.Battery.RTLThresholdPercent = p.RTLThresholdPercent

	k := &Kernel{
		params:       p,
		dtS:          p.DtS,
		engine:       NewEngine(EngineParams{Fire: p.Fire, Channel: p.Channel, Battery: p.Battery, MaxPayload: p.MaxPayload}),
		agents:       make(map[int]*Agent),
		etm:          NewETMController(p.ETM),
		bus:          NewMessageBus(p.DtS, p.Seed+2),
		metrics:      NewMetricsCollector(p.MetricsHistory),
		inbox:        make(chan KernelCommand, 256),
		outbox:       newSnapshotOutbox(),
		rtlThreshold: p.RTLThresholdPercent,
	}

	grid := k.engine.Fire()
	k.pheromones = NewPheromoneGrid(grid.Width, grid.Height, grid.CellSizeM)
	k.planner = NewKMeansPlanner(p.NumLeaders, 100, p.Seed+3)

	total := p.NumLeaders + p.NumFollowers
	for i := 1; i <= total; i++ {
		role := RoleFollower
		if i <= p.NumLeaders {
			role = RoleLeader
		}
		home := Vec3{X: float64(i) * 2 * DefaultMinSeparationM, Y: 0, Z: 0}
		if err := k.AddDrone(i, role, home); err != nil {
			return nil, err
		}
	}

	return k, nil
}

// AddDrone registers a vehicle with the engine and creates its agent.
func (k *Kernel) AddDrone(id int, role DroneRole, home Vec3) error {
	if err := k.engine.RegisterDrone(id, home, role); err != nil {
		return err
	}
	grid := k.engine.Fire()
	k.agents[id] = NewAgent(AgentParams{
		ID:                 id,
		Role:               role,
		Home:               home,
		WorldWidthM:        float64(grid.Width) * grid.CellSizeM,
		WorldHeightM:       float64(grid.Height) * grid.CellSizeM,
		CruiseSpeedMS:      k.params.CruiseSpeedMS,
		SensorRangeM:       k.params.SensorRangeM,
		MinSeparationM:     k.params.MinSeparationM,
		SuppressStrength:   k.params.SuppressStrength,
		MaxEstimateAgeS:    k.params.MaxEstimateAgeS,
		LevyAlpha:          k.params.LevyAlpha,
		LevyStepScaleM:     k.params.LevyStepScaleM,
		Seed:               k.params.Seed,
	})
	k.etm.Register(id)
	k.agentIDs = k.engine.DroneIDs()
	return nil
}

// Engine exposes the engine for read queries.
func (k *Kernel) Engine() *Engine { return k.engine }

// Agent returns the agent for id, if present.
func (k *Kernel) Agent(id int) (*Agent, bool) {
	a, ok := k.agents[id]
	return a, ok
}

// ETM exposes the messaging controller.
func (k *Kernel) ETM() *ETMController { return k.etm }

// Metrics exposes the metrics collector.
func (k *Kernel) Metrics() *MetricsCollector { return k.metrics }

// Outbox exposes the snapshot outbox for external readers.
func (k *Kernel) Outbox() *SnapshotOutbox { return k.outbox }

// Inbox returns the command inbox. Producers must treat a full inbox as
// backpressure, not drop silently.
func (k *Kernel) Inbox() chan<- KernelCommand { return k.inbox }

// Running reports whether ticks are advancing.
func (k *Kernel) Running() bool { return k.running }

// Submit enqueues a command and waits for its acknowledgement.
func (k *Kernel) Submit(ctx context.Context, cmd KernelCommand) (CommandResult, error) {
	cmd.Reply = make(chan CommandResult, 1)
	select {
	case k.inbox <- cmd:
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	select {
	case res := <-cmd.Reply:
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// DeployLeaders repositions leader homes onto fire hotspot centroids.
// Called at mission start when the initial fires are known.
func (k *Kernel) DeployLeaders() {
	zones := k.planner.PlanFromFire(k.engine.Fire())
	if len(zones) == 0 {
		return
	}
	zi := 0
	for _, id := range k.agentIDs {
		a := k.agents[id]
		if a.Role != RoleLeader {
			continue
		}
		z := zones[zi%len(zones)]
		a.Home = Vec3{X: z.X, Y: z.Y, Z: 0}
		zi++
	}
}

// drainInbox applies queued commands in arrival order. Invalid input is
// rejected here with the kernel state untouched.
func (k *Kernel) drainInbox() {
	for {
		select {
		case cmd := <-k.inbox:
			res := k.applyCommand(cmd)
			if cmd.Reply != nil {
				cmd.Reply <- res
			}
		default:
			return
		}
	}
}

func (k *Kernel) applyCommand(cmd KernelCommand) CommandResult {
	switch cmd.Kind {
	case CmdIgnite:
		return CommandResult{Err: k.engine.Ignite(cmd.X, cmd.Y, cmd.Intensity)}
	case CmdSuppress:
		receipt, err := k.engine.ApplySuppression(cmd.X, cmd.Y, cmd.Strength)
		return CommandResult{Err: err, CellsAffected: receipt.CellsAffected}
	case CmdSetWind:
		k.engine.Fire().SetWind(cmd.WindSpeed, cmd.WindDir)
		return CommandResult{}
	case CmdDrone:
		a, ok := k.agents[cmd.DroneID]
		if !ok {
			return CommandResult{Err: fmt.Errorf("command for drone %d: %w", cmd.DroneID, ErrUnknownDrone)}
		}
		batt, _ := k.engine.Battery(cmd.DroneID)
		a.HandleCommand(cmd.Drone, batt.Percent, k.rtlThreshold)
		return CommandResult{}
	case CmdConfigUpdate:
		k.applyConfigUpdate(cmd.Config)
		return CommandResult{}
	case CmdStart:
		if k.running {
			return CommandResult{AlreadyInState: true}
		}
		k.running = true
		return CommandResult{}
	case CmdStop:
		if !k.running {
			return CommandResult{AlreadyInState: true}
		}
		k.running = false
		return CommandResult{}
	default:
		return CommandResult{Err: fmt.Errorf("command kind %d: %w", cmd.Kind, ErrInvalidValue)}
	}
}

func (k *Kernel) applyConfigUpdate(u ConfigUpdate) {
	if u.ETMEta0 != nil || u.ETMLambda != nil {
		eta0, lambda := -1.0, -1.0
		if u.ETMEta0 != nil {
			eta0 = *u.ETMEta0
		}
		if u.ETMLambda != nil {
			lambda = *u.ETMLambda
		}
		k.etm.SetThreshold(eta0, lambda)
	}
	if u.RTLThresholdPercent != nil {
		k.rtlThreshold = *u.RTLThresholdPercent
		for _, id := range k.agentIDs {
			if d, err := k.engine.Drone(id); err == nil {
				d.Energy.Battery.SetRTLThreshold(k.rtlThreshold)
			}
		}
	}
}

// Step advances the world one tick in the invariant order: inbox, fire,
// vehicle control, channel, messaging, energy, metrics, snapshot.
func (k *Kernel) Step() error {
	k.drainInbox()

	dt := k.dtS
	now := k.engine.Now() + dt

	// 1. Fire step.
	if err := k.engine.StepFire(dt); err != nil {
		return err
	}
	k.pheromones.Decay(dt)

	// 2. Vehicle control step.
	k.engine.AdvanceClock(dt)
	events := make(map[int]AgentEvents, len(k.agentIDs))
	for _, id := range k.agentIDs {
		events[id] = k.agents[id].Step(k.engine, k.pheromones, dt)
	}
	k.notifyEvents(events, now)

	// 3. Channel update for the new poses.
	k.engine.UpdateChannels()

	// 4. Messaging step.
	k.stepMessaging(events, now)

	// 5. Energy step.
	k.engine.ApplyEnergy(dt)

	// 6. Metrics fold and snapshot publish.
	k.recordMetrics(now)
	if err := k.engine.CheckInvariants(); err != nil {
		return err
	}
	k.outbox.Publish(k.engine.ExportState())
	return nil
}

func (k *Kernel) notifyEvents(events map[int]AgentEvents, now float64) {
	if k.prevStates == nil {
		k.prevStates = make(map[int]DroneState, len(k.agentIDs))
	}
	for _, id := range k.agentIDs {
		a := k.agents[id]
		if k.events != nil {
			for _, det := range events[id].Detections {
				k.events.FireDetected(now, id, det.Intensity)
			}
			if prev, ok := k.prevStates[id]; (!ok || prev != StateReturnToLaunch) && a.State() == StateReturnToLaunch {
				reason := "commanded"
				if rec, err := k.engine.Drone(id); err == nil {
					if override, why := rec.Energy.RTLOverride(); override {
						reason = why
					}
				}
				k.events.ReturnToLaunch(now, id, reason)
			}
		}
		k.prevStates[id] = a.State()
	}
}

func (k *Kernel) stepMessaging(events map[int]AgentEvents, now float64) {
	// ETM-gated telemetry, in sender-id order.
	for _, id := range k.agentIDs {
		rec, err := k.engine.Drone(id)
		if err != nil {
			continue
		}
		if !k.etm.ShouldTransmit(id, rec.Pose, now) {
			k.etm.RecordSuppressed(id)
			continue
		}
		k.etm.RecordTransmission(id, rec.Pose, now)
		k.engine.RecordBroadcast(id, rec.Pose, now)

		batt := rec.Energy.Battery.Percent()
		msg := Message{
			SenderID: id,
			SendTime: now,
			Kind:     KindTelemetry,
			Telemetry: &TelemetryPayload{
				Pose:           rec.Pose,
				Velocity:       rec.Velocity,
				State:          k.agents[id].State(),
				BatteryPercent: batt,
				Payload:        rec.Energy.Payload.Remaining(),
			},
		}
		k.broadcast(id, msg)
	}

	// Event messages bypass the ETM gate but share the lossy medium.
	for _, id := range k.agentIDs {
		ev := events[id]
		for i := range ev.Detections {
			k.broadcast(id, Message{
				SenderID:  id,
				SendTime:  now,
				Kind:      KindFireDetection,
				Detection: &ev.Detections[i],
			})
		}
		for i := range ev.Suppressions {
			k.broadcast(id, Message{
				SenderID:    id,
				SendTime:    now,
				Kind:        KindSuppression,
				Suppression: &ev.Suppressions[i],
			})
		}
	}

	// Deliver everything due this tick.
	for _, d := range k.bus.DeliverDue(now) {
		receiver, ok := k.agents[d.ReceiverID]
		if !ok {
			continue
		}
		switch d.Kind {
		case KindTelemetry:
			receiver.ReceiveTelemetry(d.SenderID, *d.Telemetry, d.SendTime, now)
		case KindFireDetection:
			if receiver.State() == StateSearch {
				receiver.waypoint = d.Detection.Position
				receiver.hasWaypoint = true
			}
		case KindCommand:
			batt, _ := k.engine.Battery(d.ReceiverID)
			receiver.HandleCommand(*d.Command, batt.Percent, k.rtlThreshold)
		}
	}
}

func (k *Kernel) broadcast(senderID int, msg Message) {
	sender, err := k.engine.Drone(senderID)
	if err != nil {
		return
	}
	for _, rid := range k.agentIDs {
		if rid == senderID {
			continue
		}
		receiver, err := k.engine.Drone(rid)
		if err != nil {
			continue
		}
		d := sender.Pose.DistanceTo(receiver.Pose)
		link := k.engine.Channel().State(senderID, rid, d, k.engine.Now())
		k.bus.Offer(msg, rid, link)
	}
}

func (k *Kernel) recordMetrics(now float64) {
	summary := k.engine.Fire().Summary()
	busStats := k.bus.Stats()

	swarm := SwarmMetrics{
		TimeS:             now,
		Tick:              k.engine.Tick(),
		NumDrones:         len(k.agentIDs),
		BurningCells:      summary.BurningCount,
		PerimeterCells:    summary.PerimeterCount,
		MaxFireIntensity:  summary.MaxIntensity,
		MessagesEnqueued:  busStats.Enqueued,
		MessagesDropped:   busStats.Dropped,
		MessagesDelivered: busStats.Delivered,
	}

	drones := make([]DroneMetrics, 0, len(k.agentIDs))
	var battSum float64
	for _, id := range k.agentIDs {
		rec, err := k.engine.Drone(id)
		if err != nil {
			continue
		}
		a := k.agents[id]
		batt := rec.Energy.Battery.State()
		battSum += batt.Percent
		if a.State() != StateIdle {
			swarm.NumAirborne++
		}
		if batt.Critical {
			swarm.NumCriticalBatt++
		}
		etmState, _ := k.etm.State(id)
		drones = append(drones, DroneMetrics{
			DroneID:          id,
			TimeS:            now,
			State:            a.State().String(),
			BatteryPercent:   batt.Percent,
			PayloadRemaining: rec.Energy.Payload.Remaining(),
			TotalDistanceM:   rec.TotalDistanceM,
			FiresDetected:    a.FiresDetected,
			SuppressionTicks: a.SuppressionTicks,
			Transmissions:    etmState.TotalTransmissions,
			Suppressed:       etmState.TotalSuppressed,
		})
	}
	if len(drones) > 0 {
		swarm.AvgBatteryPercent = battSum / float64(len(drones))
	}

	k.metrics.Record(swarm, drones)
}

// Run drives the tick loop until the context is cancelled. The shutdown
// flag is checked between ticks; an in-flight tick always completes.
// A kernel invariant violation stops the loop and is returned.
func (k *Kernel) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if k.params.RealTime {
		ticker = time.NewTicker(time.Duration(k.dtS * float64(time.Second)))
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !k.running {
			// Paused: keep draining the inbox so start/stop and
			// configuration commands are still acknowledged.
			k.drainInbox()
			select {
			case cmd := <-k.inbox:
				res := k.applyCommand(cmd)
				if cmd.Reply != nil {
					cmd.Reply <- res
				}
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if err := k.Step(); err != nil {
			return err
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
