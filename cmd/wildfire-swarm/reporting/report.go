package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/core"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

// Report is the end-of-run summary written to disk.
type Report struct {
	Metadata ReportMetadata       `json:"metadata"`
	Summary  RunSummary           `json:"summary"`
	Drones   []core.DroneMetrics  `json:"drones"`
	History  []core.SwarmMetrics  `json:"swarm_history"`
	Events   []RunEvent           `json:"events"`
}

// ReportMetadata identifies the run.
type ReportMetadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration"`
	SimTimeS    float64   `json:"sim_time_s"`
	Ticks       uint64    `json:"ticks"`
}

// RunSummary captures the headline outcomes.
type RunSummary struct {
	Outcome            string  `json:"outcome"`
	BurningCellsEnd    int     `json:"burning_cells_end"`
	PeakBurningCells   int     `json:"peak_burning_cells"`
	TotalTransmissions int     `json:"total_transmissions"`
	TotalSuppressed    int     `json:"total_suppressed_triggers"`
	MessageReduction   float64 `json:"message_reduction_percent"`
	MessagesDropped    int     `json:"messages_dropped"`
	AvgBatteryPercent  float64 `json:"avg_battery_percent"`
}

// ReportGenerator assembles and writes the run report.
type ReportGenerator struct {
	runLog    *RunLogger
	outputDir string
}

// NewReportGenerator creates a generator writing into outputDir.
func NewReportGenerator(runLog *RunLogger, outputDir string) *ReportGenerator {
	if outputDir == "" {
		outputDir = "./reports"
	}
	return &ReportGenerator{runLog: runLog, outputDir: outputDir}
}

// Build assembles the report from the metrics collector.
func (g *ReportGenerator) Build(metrics *core.MetricsCollector) Report {
	history := metrics.SwarmHistory()
	latest, _ := metrics.Latest()

	var summary RunSummary
	for _, s := range history {
		if s.BurningCells > summary.PeakBurningCells {
			summary.PeakBurningCells = s.BurningCells
		}
	}
	summary.BurningCellsEnd = latest.Swarm.BurningCells
	summary.AvgBatteryPercent = latest.Swarm.AvgBatteryPercent
	summary.MessagesDropped = latest.Swarm.MessagesDropped
	for _, d := range latest.Drones {
		summary.TotalTransmissions += d.Transmissions
		summary.TotalSuppressed += d.Suppressed
	}
	if decisions := summary.TotalTransmissions + summary.TotalSuppressed; decisions > 0 {
		summary.MessageReduction = float64(summary.TotalSuppressed) / float64(decisions) * 100
	}

	switch {
	case summary.BurningCellsEnd == 0 && summary.PeakBurningCells > 0:
		summary.Outcome = "contained"
	case summary.BurningCellsEnd < summary.PeakBurningCells:
		summary.Outcome = "suppressing"
	case summary.PeakBurningCells == 0:
		summary.Outcome = "no_fire"
	default:
		summary.Outcome = "spreading"
	}

	return Report{
		Metadata: ReportMetadata{
			RunID:       g.runLog.RunID().String(),
			GeneratedAt: time.Now(),
			StartedAt:   g.runLog.StartTime(),
			Duration:    time.Since(g.runLog.StartTime()).Round(time.Millisecond).String(),
			SimTimeS:    latest.Swarm.TimeS,
			Ticks:       latest.Swarm.Tick,
		},
		Summary: summary,
		Drones:  latest.Drones,
		History: history,
		Events:  g.runLog.Events(),
	}
}

// Write builds the report and writes it as JSON, returning the path.
func (g *ReportGenerator) Write(metrics *core.MetricsCollector) (string, error) {
	report := g.Build(metrics)

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(g.outputDir, fmt.Sprintf("run-%s.json", report.Metadata.RunID))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	logger.Successf("Run report written to %s (outcome: %s)", path, report.Summary.Outcome)
	return path, nil
}
