package config

import "fmt"

// SimulationConfig holds the complete wildfire scenario configuration.
type SimulationConfig struct {
	Swarm   SwarmConfig   `yaml:"swarm"`
	Battery BatteryConfig `yaml:"battery"`
	Fire    FireConfig    `yaml:"fire"`
	Channel ChannelConfig `yaml:"channel"`
	Sim     SimConfig     `yaml:"sim"`
	Server  ServerConfig  `yaml:"server"`
	Report  ReportConfig  `yaml:"report"`
}

// SwarmConfig defines the swarm composition and messaging behavior.
type SwarmConfig struct {
	NumLeaders       int     `yaml:"num_leaders"`
	NumFollowers     int     `yaml:"num_followers"`
	DetmEta0         float64 `yaml:"detm_eta0"`
	DetmLambda       float64 `yaml:"detm_lambda"`
	DetmNorm         string  `yaml:"detm_norm"` // "l2" or "linf"
	CruiseSpeedMS    float64 `yaml:"cruise_speed_ms"`
	SensorRangeM     float64 `yaml:"sensor_range_m"`
	MinSeparationM   float64 `yaml:"min_separation_m"`
	SuppressStrength float64 `yaml:"suppress_strength"`
	MaxPayloadUnits  float64 `yaml:"max_payload_units"`
	ObserverMaxAgeS  float64 `yaml:"observer_max_age_s"`
	LevyAlpha        float64 `yaml:"levy_alpha"`
	LevyStepScaleM   float64 `yaml:"levy_step_scale_m"`
}

// BatteryConfig defines the energy model.
type BatteryConfig struct {
	CapacityMAH         float64 `yaml:"capacity_mah"`
	VoltageV            float64 `yaml:"voltage_v"`
	EnergyDrainPerMeter float64 `yaml:"energy_drain_per_meter"` // mWh/m
	HoverDrainPerSec    float64 `yaml:"hover_drain_per_sec"`    // Wh/s
	RTLThresholdPercent float64 `yaml:"rtl_threshold_percent"`
}

// FireConfig defines the cellular automaton.
type FireConfig struct {
	GridWidth                 int     `yaml:"grid_width"`
	GridHeight                int     `yaml:"grid_height"`
	CellSizeM                 float64 `yaml:"cell_size_m"`
	SpreadRateMPM             float64 `yaml:"spread_rate_mpm"`
	SuppressionEffectiveness  float64 `yaml:"suppression_effectiveness"`
	WindSpeedMS               float64 `yaml:"wind_speed_ms"`
	WindHeadingRad            float64 `yaml:"wind_heading_rad"`
}

// ChannelConfig defines the RF model.
type ChannelConfig struct {
	PathLossExponent   float64 `yaml:"path_loss_exponent"`
	ReferenceRSSIDBm   float64 `yaml:"reference_rssi_dbm"`
	RiceKFactor        float64 `yaml:"rice_k_factor"`
	MaxBroadcastRangeM float64 `yaml:"max_broadcast_range_m"`
}

// SimConfig defines kernel timing and seeding.
type SimConfig struct {
	DtS      float64 `yaml:"dt_s"`
	Seed     int64   `yaml:"seed"`
	RealTime bool    `yaml:"real_time"`
}

// ServerConfig defines the monitoring surfaces.
type ServerConfig struct {
	APIPort int `yaml:"api_port"`
	WSPort  int `yaml:"ws_port"`
}

// ReportConfig defines end-of-run reporting.
type ReportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// GetDefaultConfig returns the documented defaults.
func GetDefaultConfig() *SimulationConfig {
	return &SimulationConfig{
		Swarm: SwarmConfig{
			NumLeaders:       3,
			NumFollowers:     10,
			DetmEta0:         1.0,
			DetmLambda:       0.5,
			DetmNorm:         "l2",
			CruiseSpeedMS:    15,
			SensorRangeM:     50,
			MinSeparationM:   10,
			SuppressStrength: 1.0,
			MaxPayloadUnits:  40,
			ObserverMaxAgeS:  0.5,
			LevyAlpha:        1.5,
			LevyStepScaleM:   50,
		},
		Battery: BatteryConfig{
			CapacityMAH:         5000,
			VoltageV:            14.8,
			EnergyDrainPerMeter: 0.08,
			HoverDrainPerSec:    0.0001,
			RTLThresholdPercent: 20,
		},
		Fire: FireConfig{
			GridWidth:                100,
			GridHeight:               100,
			CellSizeM:                10,
			SpreadRateMPM:            30,
			SuppressionEffectiveness: 0.9,
		},
		Channel: ChannelConfig{
			PathLossExponent:   3.0,
			ReferenceRSSIDBm:   -40,
			RiceKFactor:        8.0,
			MaxBroadcastRangeM: 100,
		},
		Sim: SimConfig{
			DtS:  0.1,
			Seed: 0,
		},
		Server: ServerConfig{
			APIPort: 8080,
			WSPort:  8081,
		},
		Report: ReportConfig{
			Enabled:   true,
			OutputDir: "./reports",
		},
	}
}

// Validate checks the configuration for out-of-range values. A failure
// here surfaces at startup and exits with code 1.
func (c *SimulationConfig) Validate() error {
	if c.Swarm.NumLeaders < 0 || c.Swarm.NumFollowers < 0 {
		return fmt.Errorf("swarm counts must be non-negative")
	}
	if c.Swarm.NumLeaders+c.Swarm.NumFollowers == 0 {
		return fmt.Errorf("swarm must contain at least one drone")
	}
	if c.Swarm.DetmEta0 < 0 {
		return fmt.Errorf("detm_eta0 must be non-negative")
	}
	if c.Swarm.DetmLambda <= 0 {
		return fmt.Errorf("detm_lambda must be positive")
	}
	if c.Swarm.DetmNorm != "" && c.Swarm.DetmNorm != "l2" && c.Swarm.DetmNorm != "linf" {
		return fmt.Errorf("detm_norm must be l2 or linf, got %q", c.Swarm.DetmNorm)
	}
	if c.Swarm.SuppressStrength <= 0 || c.Swarm.SuppressStrength > 1 {
		return fmt.Errorf("suppress_strength must be in (0,1]")
	}
	if c.Battery.CapacityMAH <= 0 {
		return fmt.Errorf("battery capacity must be positive")
	}
	if c.Battery.RTLThresholdPercent <= 0 || c.Battery.RTLThresholdPercent >= 100 {
		return fmt.Errorf("rtl_threshold_percent must be in (0,100)")
	}
	if c.Fire.GridWidth <= 0 || c.Fire.GridHeight <= 0 {
		return fmt.Errorf("fire grid dimensions must be positive")
	}
	if c.Fire.CellSizeM <= 0 {
		return fmt.Errorf("fire cell_size_m must be positive")
	}
	if c.Fire.SpreadRateMPM <= 0 {
		return fmt.Errorf("fire spread_rate_mpm must be positive")
	}
	if c.Fire.SuppressionEffectiveness <= 0 || c.Fire.SuppressionEffectiveness > 1 {
		return fmt.Errorf("suppression_effectiveness must be in (0,1]")
	}
	if c.Channel.PathLossExponent <= 0 {
		return fmt.Errorf("path_loss_exponent must be positive")
	}
	if c.Channel.MaxBroadcastRangeM <= 0 {
		return fmt.Errorf("max_broadcast_range_m must be positive")
	}
	if c.Sim.DtS <= 0 {
		return fmt.Errorf("sim dt_s must be positive")
	}
	if c.Server.APIPort <= 0 || c.Server.APIPort > 65535 {
		return fmt.Errorf("api_port out of range")
	}
	if c.Server.WSPort <= 0 || c.Server.WSPort > 65535 {
		return fmt.Errorf("ws_port out of range")
	}
	return nil
}
