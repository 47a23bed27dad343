package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

// errConfig marks failures that should exit with code 1.
var errConfig = errors.New("configuration error")

// errInvariant marks kernel invariant violations, exit code 2.
var errInvariant = errors.New("kernel invariant violation")

// ExitCode maps an error to the documented process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errInvariant):
		return 2
	default:
		return 1
	}
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "swarm-sim",
	Short: "Wildfire swarm simulation CLI",
	Long: `swarm-sim runs software-in-the-loop simulations of autonomous
aerial-vehicle swarms performing wildfire containment, with modeled RF
links, battery constraints, and event-triggered telemetry.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wildfire-sim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(profileCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads the CLI config file and environment overrides.
func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/.wildfire-sim")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("swarm")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}
