package core

import "math"

// Simulation timing defaults.
const (
	DefaultTickSeconds = 0.1
	DefaultSeed        = 0
)

// Drone defaults.
const (
	DefaultBatteryCapacityMAH  = 5000.0
	DefaultBatteryVoltageV     = 14.8
	DefaultDrainPerMeter       = 0.08
	DefaultDrainHoverPerSec    = 0.0001
	DefaultRTLThresholdPercent = 20.0
	DefaultMaxPayloadUnits     = 40
	DefaultCruiseSpeedMS       = 15.0
	DefaultMaxSpeedMS          = 20.0
	DefaultTakeoffAltitudeM    = 20.0
	DefaultLandingRadiusM      = 5.0
	DefaultSensorRangeM        = 50.0
	DefaultMinSeparationM      = 10.0
)

// Fire grid defaults.
const (
	DefaultGridWidth        = 100
	DefaultGridHeight       = 100
	DefaultCellSizeM        = 10.0
	DefaultSpreadRateMPM    = 30.0
	DefaultSuppressionK     = 0.9
	DefaultIntensityDecay   = 0.95
	DefaultWindFactorK      = 1.0
	IgnitionThreshold       = 0.1
	BurningEpsilon          = 0.01
	DetectionThreshold      = 0.1
	SpreadIgnitionScale     = 0.3
	SpreadIntensityCarry    = 0.8
	FuelBurnRatePerUnit     = 0.01
	AmbientTemperatureK     = 293.0
	ActiveFireTemperatureK  = 500.0
	FireTemperatureSpreadK  = 700.0
	FireTemperatureFloorK   = 300.0
)

// RF channel defaults.
const (
	DefaultReferenceDistanceM  = 1.0
	DefaultPathLossExponent    = 3.0
	DefaultReferenceRSSIDBm    = -40.0
	DefaultRiceKFactor         = 8.0
	DefaultFadingStdDB         = 2.0
	DefaultMaxBroadcastRangeM  = 100.0
	PacketLossFloorRSSIDBm     = -100.0
	LatencyReferenceRSSIDBm    = -60.0
	BaseLatencySeconds         = 0.005
	LatencyPerDBSeconds        = 0.0005
)

// SelfLinkRSSI is the sentinel returned for a drone's link to itself: a
// zero-distance link never attenuates, so it reports infinite strength
// and zero latency.
var SelfLinkRSSI = math.Inf(1)

// ETM defaults.
const (
	DefaultEta0       = 1.0
	DefaultLambda     = 0.5
	DefaultEtaMin     = 0.01
)

// Observer defaults.
const (
	DefaultMaxEstimateAgeS = 0.5
	ConfidenceDropFactor   = 0.8
)

// Lévy search defaults.
const (
	DefaultLevyAlpha       = 1.5
	DefaultLevyStepScaleM  = 50.0
	DefaultLevyAngularDeg  = 180.0
)

// Pheromone grid defaults.
const (
	DefaultPheromoneDeposit   = 1.0
	DefaultPheromoneDecay     = 0.95
	DefaultPheromoneThreshold = 0.1
	DefaultPheromoneRadius    = 3
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
