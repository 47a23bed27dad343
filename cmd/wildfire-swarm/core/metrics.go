package core

import "sync"

// DroneMetrics is a per-drone metrics sample.
type DroneMetrics struct {
	DroneID          int     `json:"drone_id"`
	TimeS            float64 `json:"time_s"`
	State            string  `json:"state"`
	BatteryPercent   float64 `json:"battery_percent"`
	PayloadRemaining float64 `json:"payload_remaining"`
	TotalDistanceM   float64 `json:"total_distance_m"`
	FiresDetected    int     `json:"fires_detected"`
	SuppressionTicks int     `json:"suppression_ticks"`
	Transmissions    int     `json:"transmissions"`
	Suppressed       int     `json:"suppressed_triggers"`
}

// SwarmMetrics aggregates one tick of swarm-level measurements.
type SwarmMetrics struct {
	TimeS             float64 `json:"time_s"`
	Tick              uint64  `json:"tick"`
	NumDrones         int     `json:"num_drones"`
	NumAirborne       int     `json:"num_airborne"`
	AvgBatteryPercent float64 `json:"avg_battery_percent"`
	NumCriticalBatt   int     `json:"num_critical_battery"`
	BurningCells      int     `json:"burning_cells"`
	PerimeterCells    int     `json:"perimeter_cells"`
	MaxFireIntensity  float64 `json:"max_fire_intensity"`
	MessagesEnqueued  int     `json:"messages_enqueued"`
	MessagesDropped   int     `json:"messages_dropped"`
	MessagesDelivered int     `json:"messages_delivered"`
}

// MetricsSnapshot is the full export handed to the REST surface.
type MetricsSnapshot struct {
	Swarm  SwarmMetrics   `json:"swarm"`
	Drones []DroneMetrics `json:"drones"`
}

// MetricsCollector folds per-tick counters into rolling aggregates with
// a bounded history ring. The tick thread writes; monitoring surfaces
// read concurrently.
type MetricsCollector struct {
	mu         sync.RWMutex
	historyLen int
	swarmHist  []SwarmMetrics
	latest     MetricsSnapshot
	hasLatest  bool
}

// NewMetricsCollector creates a collector keeping up to historyLen
// swarm samples.
func NewMetricsCollector(historyLen int) *MetricsCollector {
	if historyLen <= 0 {
		historyLen = 1000
	}
	return &MetricsCollector{historyLen: historyLen}
}

// Record folds one tick's measurements into the history.
func (m *MetricsCollector) Record(swarm SwarmMetrics, drones []DroneMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swarmHist = append(m.swarmHist, swarm)
	if len(m.swarmHist) > m.historyLen {
		m.swarmHist = m.swarmHist[len(m.swarmHist)-m.historyLen:]
	}
	m.latest = MetricsSnapshot{Swarm: swarm, Drones: drones}
	m.hasLatest = true
}

// Latest returns the most recent snapshot.
func (m *MetricsCollector) Latest() (MetricsSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasLatest
}

// SwarmHistory returns a copy of the retained swarm samples.
func (m *MetricsCollector) SwarmHistory() []SwarmMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SwarmMetrics, len(m.swarmHist))
	copy(out, m.swarmHist)
	return out
}
