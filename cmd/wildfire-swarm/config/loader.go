package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

// LoadConfig loads and validates configuration from a YAML file.
func LoadConfig(path string) (*SimulationConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigOrDefault loads config from the given path, from default
// locations, or falls back to defaults. Viper-visible overrides (the CLI
// config file and SWARM_ environment variables) are applied last.
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig

	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if config == nil {
		for _, p := range []string{
			"wildfire-swarm.yaml",
			"config.yaml",
			filepath.Join("cmd", "wildfire-swarm", "config.yaml"),
		} {
			if _, err := os.Stat(p); err == nil {
				loaded, err := LoadConfig(p)
				if err != nil {
					return nil, err
				}
				logger.Infof("Loaded config from: %s", p)
				config = loaded
				break
			}
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	applyViperOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyViperOverrides merges viper-visible keys over the file values, so
// an environment variable such as SWARM_SIM_SEED=7 wins over the YAML.
func applyViperOverrides(config *SimulationConfig) {
	set := func(key string, apply func()) {
		if viper.IsSet(key) {
			apply()
		}
	}

	set("swarm.num_leaders", func() { config.Swarm.NumLeaders = viper.GetInt("swarm.num_leaders") })
	set("swarm.num_followers", func() { config.Swarm.NumFollowers = viper.GetInt("swarm.num_followers") })
	set("swarm.detm_eta0", func() { config.Swarm.DetmEta0 = viper.GetFloat64("swarm.detm_eta0") })
	set("swarm.detm_lambda", func() { config.Swarm.DetmLambda = viper.GetFloat64("swarm.detm_lambda") })
	set("battery.capacity_mah", func() { config.Battery.CapacityMAH = viper.GetFloat64("battery.capacity_mah") })
	set("battery.energy_drain_per_meter", func() {
		config.Battery.EnergyDrainPerMeter = viper.GetFloat64("battery.energy_drain_per_meter")
	})
	set("battery.rtl_threshold_percent", func() {
		config.Battery.RTLThresholdPercent = viper.GetFloat64("battery.rtl_threshold_percent")
	})
	set("fire.cell_size_m", func() { config.Fire.CellSizeM = viper.GetFloat64("fire.cell_size_m") })
	set("fire.spread_rate_mpm", func() { config.Fire.SpreadRateMPM = viper.GetFloat64("fire.spread_rate_mpm") })
	set("fire.suppression_effectiveness", func() {
		config.Fire.SuppressionEffectiveness = viper.GetFloat64("fire.suppression_effectiveness")
	})
	set("channel.path_loss_exponent", func() {
		config.Channel.PathLossExponent = viper.GetFloat64("channel.path_loss_exponent")
	})
	set("channel.rice_k_factor", func() { config.Channel.RiceKFactor = viper.GetFloat64("channel.rice_k_factor") })
	set("channel.max_broadcast_range_m", func() {
		config.Channel.MaxBroadcastRangeM = viper.GetFloat64("channel.max_broadcast_range_m")
	})
	set("sim.dt_s", func() { config.Sim.DtS = viper.GetFloat64("sim.dt_s") })
	set("sim.seed", func() { config.Sim.Seed = viper.GetInt64("sim.seed") })
}

// SaveConfig writes a configuration file, validating first.
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
