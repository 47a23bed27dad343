package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Shybit1/drone-swarm-comms/pkg/config"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
	"github.com/Shybit1/drone-swarm-comms/pkg/simulation"
	"github.com/Shybit1/drone-swarm-comms/pkg/utils"

	// Import simulations to register them.
	_ "github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long:  `Run a simulation interactively or with specified parameters`,
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("profile", "p", "", "run profile to apply")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	simName, err := selectSimulation(cmd)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	var simConfig *simulation.SimulationConfig
	for _, info := range simInfos {
		if info.Config.Name == simName {
			simConfig = &info.Config
			break
		}
	}
	if simConfig == nil {
		return fmt.Errorf("%w: simulation manifest not found for %s", errConfig, simName)
	}

	params, err := utils.PromptForParameters(simConfig.Parameters)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}
	applyProfile(cmd, params)

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Received interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		cancel()
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %v", errInvariant, err)
	}

	logger.Success("Simulation completed")
	return nil
}

// applyProfile overlays a saved run profile's config path and seed onto
// the params. The profile's API and WebSocket ports are not applied; the
// servers listen on the ports of the loaded scenario config.
func applyProfile(cmd *cobra.Command, params map[string]interface{}) {
	name, _ := cmd.Flags().GetString("profile")
	profiles, err := config.LoadProfiles()
	if err != nil {
		logger.Warnf("failed to load profiles: %v", err)
		return
	}

	var profile *config.Profile
	if name != "" {
		p, ok := profiles.Get(name)
		if !ok {
			logger.Warnf("profile %q not found", name)
			return
		}
		profile = p
	} else if p, ok := profiles.Active(); ok {
		profile = p
	}
	if profile == nil {
		return
	}

	logger.Infof("Applying profile %q", profile.Name)
	if profile.ConfigPath != "" {
		params["config_file"] = profile.ConfigPath
	}
	if profile.Seed != nil {
		params["seed"] = int(*profile.Seed)
	}
}

// selectSimulation picks the scenario from the flag or interactively.
func selectSimulation(cmd *cobra.Command) (string, error) {
	if name, _ := cmd.Flags().GetString("simulation"); name != "" {
		return name, nil
	}

	available := simulation.DefaultRegistry.List()
	if len(available) == 0 {
		return "", fmt.Errorf("no simulations registered")
	}
	if len(available) == 1 {
		return available[0], nil
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select a simulation to run:",
		Options: available,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
