package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/config"
	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/core"
	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/reporting"
	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/server"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
	"github.com/Shybit1/drone-swarm-comms/pkg/simulation"
	"github.com/Shybit1/drone-swarm-comms/pkg/sitl"
)

func init() {
	_ = simulation.DefaultRegistry.Register("wildfire-swarm", NewWildfireSimulation)
}

// WildfireSimulation runs the wildfire containment scenario: a
// deterministic kernel plus REST and WebSocket monitoring surfaces.
type WildfireSimulation struct {
	cfg      *config.SimulationConfig
	duration time.Duration

	igniteX, igniteY float64

	kernel   *core.Kernel
	runLog   *reporting.RunLogger
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewWildfireSimulation creates an unconfigured scenario instance.
func NewWildfireSimulation() simulation.Simulation {
	return &WildfireSimulation{stopChan: make(chan struct{})}
}

// Name returns the scenario name.
func (s *WildfireSimulation) Name() string { return "wildfire-swarm" }

// Description returns the scenario description.
func (s *WildfireSimulation) Description() string {
	return "Autonomous drone swarm containing a wind-driven wildfire under realistic RF and energy constraints"
}

// Configure resolves scenario parameters. The config file is loaded
// first; individual parameters override its fields.
func (s *WildfireSimulation) Configure(params map[string]interface{}) error {
	configPath := ""
	if v, ok := params["config_file"].(string); ok {
		configPath = v
	}

	cfg, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	asInt := func(v interface{}) (int, bool) {
		switch n := v.(type) {
		case int:
			return n, true
		case float64:
			return int(n), true
		}
		return 0, false
	}

	if v, ok := asInt(params["num_leaders"]); ok {
		cfg.Swarm.NumLeaders = v
	}
	if v, ok := asInt(params["num_followers"]); ok {
		cfg.Swarm.NumFollowers = v
	}
	if v, ok := asInt(params["seed"]); ok {
		cfg.Sim.Seed = int64(v)
	}
	if v, ok := params["real_time"].(bool); ok {
		cfg.Sim.RealTime = v
	}

	s.duration = 5 * time.Minute
	if v, ok := params["duration"].(time.Duration); ok && v > 0 {
		s.duration = v
	}

	s.igniteX = float64(cfg.Fire.GridWidth) * cfg.Fire.CellSizeM / 2
	s.igniteY = float64(cfg.Fire.GridHeight) * cfg.Fire.CellSizeM / 2
	if v, ok := params["ignite_x"].(float64); ok {
		s.igniteX = v
	}
	if v, ok := params["ignite_y"].(float64); ok {
		s.igniteY = v
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	logger.Infof("Configured: %d leaders + %d followers, seed %d, %s run",
		cfg.Swarm.NumLeaders, cfg.Swarm.NumFollowers, cfg.Sim.Seed, s.duration)
	return nil
}

// Run builds the kernel, starts the monitoring surfaces, and drives the
// scenario to completion.
func (s *WildfireSimulation) Run(ctx context.Context) error {
	if s.cfg == nil {
		return fmt.Errorf("simulation not configured")
	}
	cfg := s.cfg

	norm := core.NormL2
	if cfg.Swarm.DetmNorm == "linf" {
		norm = core.NormLInf
	}

	kernel, err := core.NewKernel(core.KernelParams{
		DtS:          cfg.Sim.DtS,
		Seed:         cfg.Sim.Seed,
		NumLeaders:   cfg.Swarm.NumLeaders,
		NumFollowers: cfg.Swarm.NumFollowers,
		RealTime:     cfg.Sim.RealTime,
		Fire: core.FireGridParams{
			Width:             cfg.Fire.GridWidth,
			Height:            cfg.Fire.GridHeight,
			CellSizeM:         cfg.Fire.CellSizeM,
			SpreadRateMPM:     cfg.Fire.SpreadRateMPM,
			SuppressionFactor: cfg.Fire.SuppressionEffectiveness,
		},
		Channel: core.ChannelParams{
			PathLossExponent:  cfg.Channel.PathLossExponent,
			ReferenceRSSIDBm:  cfg.Channel.ReferenceRSSIDBm,
			RiceKFactor:       cfg.Channel.RiceKFactor,
			MaxBroadcastRange: cfg.Channel.MaxBroadcastRangeM,
		},
		Battery: core.BatteryParams{
			CapacityMAH:         cfg.Battery.CapacityMAH,
			VoltageV:            cfg.Battery.VoltageV,
			DrainPerMeter:       cfg.Battery.EnergyDrainPerMeter,
			DrainHoverPerSecond: cfg.Battery.HoverDrainPerSec,
		},
		ETM: core.ETMParams{
			Eta0:   cfg.Swarm.DetmEta0,
			Lambda: cfg.Swarm.DetmLambda,
			Norm:   norm,
		},
		MaxPayload:          cfg.Swarm.MaxPayloadUnits,
		RTLThresholdPercent: cfg.Battery.RTLThresholdPercent,
		CruiseSpeedMS:       cfg.Swarm.CruiseSpeedMS,
		SensorRangeM:        cfg.Swarm.SensorRangeM,
		MinSeparationM:      cfg.Swarm.MinSeparationM,
		SuppressStrength:    cfg.Swarm.SuppressStrength,
		MaxEstimateAgeS:     cfg.Swarm.ObserverMaxAgeS,
		LevyAlpha:           cfg.Swarm.LevyAlpha,
		LevyStepScaleM:      cfg.Swarm.LevyStepScaleM,
	})
	if err != nil {
		return fmt.Errorf("failed to build kernel: %w", err)
	}
	s.kernel = kernel
	s.runLog = reporting.NewRunLogger()
	kernel.SetEventSink(runLogSink{s.runLog})

	total := cfg.Swarm.NumLeaders + cfg.Swarm.NumFollowers
	assignments, err := sitl.AssignAll(total)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		logger.Debugf("drone %d: flight controller %s, SYSID %d", a.DroneID, a.ConnectionString(), a.SystemID)
	}

	if cfg.Fire.WindSpeedMS > 0 {
		kernel.Engine().Fire().SetWind(cfg.Fire.WindSpeedMS, cfg.Fire.WindHeadingRad)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	apiServer := server.NewAPIServer(kernel, cfg.Server.APIPort)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	wsServer := server.NewWSServer(kernel, cfg.Server.WSPort)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := wsServer.Start(runCtx); err != nil {
			logger.Errorf("WebSocket server failed: %v", err)
		}
	}()

	kernelDone := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		kernelDone <- kernel.Run(runCtx)
	}()

	// Mission setup: light the fire, plan leader deployment zones, and
	// send everything airborne.
	if err := s.missionSetup(runCtx); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	logger.LogSection("Simulation running")

	var runErr error
	select {
	case <-time.After(s.duration):
		logger.Info("Simulation duration reached")
	case <-s.stopChan:
		logger.Info("Simulation stopped by user")
	case <-ctx.Done():
		logger.Info("Simulation cancelled")
		runErr = ctx.Err()
	case err := <-kernelDone:
		if err != nil {
			// A kernel error at this point is an invariant violation;
			// the caller maps it to exit code 2.
			runErr = fmt.Errorf("kernel invariant violation: %w", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = apiServer.Shutdown(shutdownCtx)
	shutdownCancel()
	wg.Wait()

	if cfg.Report.Enabled {
		gen := reporting.NewReportGenerator(s.runLog, cfg.Report.OutputDir)
		if _, err := gen.Write(kernel.Metrics()); err != nil {
			logger.Errorf("Failed to write run report: %v", err)
		}
	}

	return runErr
}

func (s *WildfireSimulation) missionSetup(ctx context.Context) error {
	res, err := s.kernel.Submit(ctx, core.KernelCommand{
		Kind: core.CmdIgnite, X: s.igniteX, Y: s.igniteY, Intensity: 1.0,
	})
	if err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("initial ignition rejected: %w", res.Err)
	}
	s.runLog.LogIgnition(0, s.igniteX, s.igniteY, 1.0)

	// The kernel is still paused here, so planning against the freshly
	// ignited grid is safe before ticks begin.
	s.kernel.DeployLeaders()

	for _, id := range s.kernel.Engine().DroneIDs() {
		if _, err := s.kernel.Submit(ctx, core.KernelCommand{
			Kind:    core.CmdDrone,
			DroneID: id,
			Drone:   core.CommandPayload{Name: "takeoff"},
		}); err != nil {
			return err
		}
	}

	if _, err := s.kernel.Submit(ctx, core.KernelCommand{Kind: core.CmdStart}); err != nil {
		return err
	}

	logger.Successf("Mission started: fire at (%.0f, %.0f), %d drones airborne",
		s.igniteX, s.igniteY, len(s.kernel.Engine().DroneIDs()))
	return nil
}

// Stop requests a graceful shutdown; the in-flight tick completes.
func (s *WildfireSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// runLogSink bridges kernel events into the run logger.
type runLogSink struct {
	rl *reporting.RunLogger
}

func (s runLogSink) FireDetected(timeS float64, droneID int, intensity float64) {
	s.rl.LogDetection(timeS, droneID, intensity)
}

func (s runLogSink) ReturnToLaunch(timeS float64, droneID int, reason string) {
	s.rl.LogRTL(timeS, droneID, reason)
}
