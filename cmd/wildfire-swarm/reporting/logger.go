package reporting

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

// Event types recorded during a run.
const (
	EventTypeIgnition    = "ignition"
	EventTypeDetection   = "detection"
	EventTypeSuppression = "suppression"
	EventTypeRTL         = "rtl"
	EventTypeDock        = "dock"
	EventTypeSystem      = "system"
)

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var (
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorCritical = color.New(color.FgRed, color.Bold)
)

// RunEvent is one logged simulation event.
type RunEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	SimTimeS  float64                `json:"sim_time_s"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	DroneID   int                    `json:"drone_id,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// RunLogger accumulates the event history of one simulation run.
type RunLogger struct {
	runID     uuid.UUID
	startTime time.Time

	mu     sync.RWMutex
	events []RunEvent
}

// NewRunLogger starts an event log with a fresh run id.
func NewRunLogger() *RunLogger {
	rl := &RunLogger{
		runID:     uuid.New(),
		startTime: time.Now(),
	}
	logger.Infof("Run %s started", rl.runID)
	return rl
}

// RunID returns the run's unique identifier.
func (rl *RunLogger) RunID() uuid.UUID { return rl.runID }

// StartTime returns when the run began.
func (rl *RunLogger) StartTime() time.Time { return rl.startTime }

// LogIgnition records a fire ignition.
func (rl *RunLogger) LogIgnition(simTime, x, y, intensity float64) {
	rl.log(RunEvent{
		SimTimeS: simTime,
		Type:     EventTypeIgnition,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("fire ignited at (%.0f, %.0f) intensity %.2f", x, y, intensity),
		Details:  map[string]interface{}{"x": x, "y": y, "intensity": intensity},
	})
}

// LogDetection records a drone's fire detection.
func (rl *RunLogger) LogDetection(simTime float64, droneID int, intensity float64) {
	rl.log(RunEvent{
		SimTimeS: simTime,
		Type:     EventTypeDetection,
		Severity: SeverityInfo,
		DroneID:  droneID,
		Message:  fmt.Sprintf("drone %d detected fire (intensity %.2f)", droneID, intensity),
	})
}

// LogRTL records a return-to-launch override.
func (rl *RunLogger) LogRTL(simTime float64, droneID int, reason string) {
	rl.log(RunEvent{
		SimTimeS: simTime,
		Type:     EventTypeRTL,
		Severity: SeverityWarning,
		DroneID:  droneID,
		Message:  fmt.Sprintf("drone %d returning to launch: %s", droneID, reason),
	})
}

// LogSystem records a run-level event.
func (rl *RunLogger) LogSystem(simTime float64, severity, message string) {
	rl.log(RunEvent{
		SimTimeS: simTime,
		Type:     EventTypeSystem,
		Severity: severity,
		Message:  message,
	})
}

// Events returns a copy of the recorded events.
func (rl *RunLogger) Events() []RunEvent {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RunEvent, len(rl.events))
	copy(out, rl.events)
	return out
}

func (rl *RunLogger) log(ev RunEvent) {
	ev.Timestamp = time.Now()

	rl.mu.Lock()
	rl.events = append(rl.events, ev)
	rl.mu.Unlock()

	line := fmt.Sprintf("[t=%.1fs] %s", ev.SimTimeS, ev.Message)
	switch ev.Severity {
	case SeverityCritical:
		logger.Error(colorCritical.Sprint(line))
	case SeverityWarning:
		logger.Warn(colorWarning.Sprint(line))
	default:
		logger.Debug(colorInfo.Sprint(line))
	}
}
