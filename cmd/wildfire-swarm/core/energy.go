package core

import "math"

// BatteryState is a point-in-time battery reading.
type BatteryState struct {
	Percent      float64 `json:"battery_percent"`
	RemainingWh  float64 `json:"remaining_wh"`
	CapacityWh   float64 `json:"capacity_wh"`
	VoltageV     float64 `json:"voltage_v"`
	TimeToEmptyS float64 `json:"time_to_empty_s"`
	Critical     bool    `json:"critical"`
	Depleted     bool    `json:"depleted"`
}

// Battery models a drone battery as an energy reservoir. Charge only
// moves down outside of an explicit dock reset.
type Battery struct {
	capacityWh   float64
	remainingWh  float64
	voltageV     float64
	drainPerM    float64
	drainHoverPS float64
	rtlPercent   float64
	lastDrainW   float64
}

// BatteryParams configures a Battery.
type BatteryParams struct {
	CapacityMAH         float64
	VoltageV            float64
	DrainPerMeter       float64
	DrainHoverPerSecond float64
	RTLThresholdPercent float64
}

// NewBattery creates a fully charged battery.
func NewBattery(p BatteryParams) *Battery {
	if p.CapacityMAH <= 0 {
		p.CapacityMAH = DefaultBatteryCapacityMAH
	}
	if p.VoltageV <= 0 {
		p.VoltageV = DefaultBatteryVoltageV
	}
	if p.DrainPerMeter <= 0 {
		p.DrainPerMeter = DefaultDrainPerMeter
	}
	if p.DrainHoverPerSecond <= 0 {
		p.DrainHoverPerSecond = DefaultDrainHoverPerSec
	}
	if p.RTLThresholdPercent <= 0 {
		p.RTLThresholdPercent = DefaultRTLThresholdPercent
	}
	capacity := p.CapacityMAH / 1000.0 * p.VoltageV
	return &Battery{
		capacityWh:   capacity,
		remainingWh:  capacity,
		voltageV:     p.VoltageV,
		drainPerM:    p.DrainPerMeter,
		drainHoverPS: p.DrainHoverPerSecond,
		rtlPercent:   p.RTLThresholdPercent,
	}
}

// DrainFlight consumes energy for a flight segment: distance-based drain
// plus hover drain for the elapsed time. Returns the energy consumed.
func (b *Battery) DrainFlight(distanceM, elapsedS float64) float64 {
	consumed := distanceM*b.drainPerM/1000.0 + elapsedS*b.drainHoverPS
	b.remainingWh = math.Max(0, b.remainingWh-consumed)
	if elapsedS > 0 {
		b.lastDrainW = consumed / elapsedS * 3600
	}
	return consumed
}

// Recharge resets the battery to full. The only path by which charge
// increases.
func (b *Battery) Recharge() { b.remainingWh = b.capacityWh }

// SetRTLThreshold replaces the critical-battery percentage. Applied on
// hot config updates between ticks.
func (b *Battery) SetRTLThreshold(percent float64) {
	if percent > 0 && percent < 100 {
		b.rtlPercent = percent
	}
}

// Percent returns the remaining charge in [0,100].
func (b *Battery) Percent() float64 {
	return Clamp(b.remainingWh/b.capacityWh*100, 0, 100)
}

// Critical reports whether the battery is at or below the RTL threshold.
func (b *Battery) Critical() bool { return b.Percent() <= b.rtlPercent }

// State returns a snapshot of the battery.
func (b *Battery) State() BatteryState {
	pct := b.Percent()
	tte := math.Inf(1)
	if b.lastDrainW > 0 {
		tte = b.remainingWh / b.lastDrainW * 3600
	}
	return BatteryState{
		Percent:      pct,
		RemainingWh:  b.remainingWh,
		CapacityWh:   b.capacityWh,
		VoltageV:     b.voltageV,
		TimeToEmptyS: tte,
		Critical:     pct <= b.rtlPercent,
		Depleted:     pct <= 0,
	}
}

// Payload tracks the finite suppression agent a drone carries.
type Payload struct {
	maxUnits  float64
	remaining float64
}

// NewPayload creates a full payload tank.
func NewPayload(maxUnits float64) *Payload {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxPayloadUnits
	}
	return &Payload{maxUnits: maxUnits, remaining: maxUnits}
}

// Consume removes up to units from the tank, returning the amount taken.
func (p *Payload) Consume(units float64) float64 {
	taken := math.Min(units, p.remaining)
	p.remaining -= taken
	return taken
}

// Refill resets the tank to full.
func (p *Payload) Refill() { p.remaining = p.maxUnits }

// Remaining returns the units left.
func (p *Payload) Remaining() float64 { return p.remaining }

// Max returns the tank capacity.
func (p *Payload) Max() float64 { return p.maxUnits }

// Empty reports whether the tank is exhausted.
func (p *Payload) Empty() bool { return p.remaining <= 0 }

// EnergyManager bundles a drone's battery and payload and enforces the
// hard return-to-launch override.
type EnergyManager struct {
	Battery *Battery
	Payload *Payload
}

// NewEnergyManager creates a fully charged, fully loaded manager.
func NewEnergyManager(bp BatteryParams, maxPayload float64) *EnergyManager {
	return &EnergyManager{Battery: NewBattery(bp), Payload: NewPayload(maxPayload)}
}

// RTLOverride reports whether a hard return is required and why.
func (e *EnergyManager) RTLOverride() (bool, string) {
	if e.Battery.Critical() {
		return true, "battery_critical"
	}
	if e.Payload.Empty() {
		return true, "payload_empty"
	}
	return false, ""
}

// Dock refills both battery and payload.
func (e *EnergyManager) Dock() {
	e.Battery.Recharge()
	e.Payload.Refill()
}
