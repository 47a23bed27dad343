package reporting

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/core"
)

func seededMetrics() *core.MetricsCollector {
	m := core.NewMetricsCollector(100)
	m.Record(core.SwarmMetrics{Tick: 1, TimeS: 0.1, NumDrones: 2, BurningCells: 40}, nil)
	m.Record(core.SwarmMetrics{Tick: 2, TimeS: 0.2, NumDrones: 2, BurningCells: 10, AvgBatteryPercent: 90},
		[]core.DroneMetrics{
			{DroneID: 1, Transmissions: 10, Suppressed: 90},
			{DroneID: 2, Transmissions: 5, Suppressed: 95},
		})
	return m
}

func TestBuildSummarizesRun(t *testing.T) {
	rl := NewRunLogger()
	rl.LogIgnition(0, 250, 250, 1.0)
	rl.LogDetection(1.5, 1, 0.8)

	g := NewReportGenerator(rl, t.TempDir())
	report := g.Build(seededMetrics())

	if report.Summary.PeakBurningCells != 40 {
		t.Errorf("peak = %d, want 40", report.Summary.PeakBurningCells)
	}
	if report.Summary.BurningCellsEnd != 10 {
		t.Errorf("end = %d, want 10", report.Summary.BurningCellsEnd)
	}
	if report.Summary.Outcome != "suppressing" {
		t.Errorf("outcome = %q", report.Summary.Outcome)
	}
	if report.Summary.TotalTransmissions != 15 {
		t.Errorf("transmissions = %d, want 15", report.Summary.TotalTransmissions)
	}
	// 185 suppressed of 200 decisions.
	if report.Summary.MessageReduction < 90 || report.Summary.MessageReduction > 95 {
		t.Errorf("reduction = %.1f%%", report.Summary.MessageReduction)
	}
	if len(report.Events) != 2 {
		t.Errorf("events = %d, want 2", len(report.Events))
	}
}

func TestWriteProducesValidJSON(t *testing.T) {
	dir := t.TempDir()
	g := NewReportGenerator(NewRunLogger(), dir)

	path, err := g.Write(seededMetrics())
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report.Metadata.RunID == "" {
		t.Error("run id missing")
	}
}

func TestOutcomeClassification(t *testing.T) {
	g := NewReportGenerator(NewRunLogger(), t.TempDir())

	contained := core.NewMetricsCollector(10)
	contained.Record(core.SwarmMetrics{BurningCells: 30}, nil)
	contained.Record(core.SwarmMetrics{BurningCells: 0}, nil)
	if got := g.Build(contained).Summary.Outcome; got != "contained" {
		t.Errorf("outcome = %q, want contained", got)
	}

	noFire := core.NewMetricsCollector(10)
	noFire.Record(core.SwarmMetrics{}, nil)
	if got := g.Build(noFire).Summary.Outcome; got != "no_fire" {
		t.Errorf("outcome = %q, want no_fire", got)
	}
}
