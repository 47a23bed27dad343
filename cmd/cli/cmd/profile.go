package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Shybit1/drone-swarm-comms/pkg/config"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage run profiles",
	Long:  `Create, list, select, and delete saved run profiles`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if len(profiles.Profiles) == 0 {
			fmt.Println("No profiles saved")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tCONFIG\tAPI\tWS\tSEED\tACTIVE")
		for _, p := range profiles.Profiles {
			seed := "-"
			if p.Seed != nil {
				seed = strconv.FormatInt(*p.Seed, 10)
			}
			active := ""
			if profiles.Selected == p.Name {
				active = "*"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				p.Name, p.ConfigPath, p.APIPort, p.WSPort, seed, active)
		}
		return w.Flush()
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}

		profile := config.Profile{Name: args[0]}
		profile.ConfigPath, _ = cmd.Flags().GetString("config-path")
		profile.APIPort, _ = cmd.Flags().GetInt("api-port")
		profile.WSPort, _ = cmd.Flags().GetInt("ws-port")
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			profile.Seed = &seed
		}

		profiles.Upsert(profile)
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		logger.Successf("Profile %q saved", profile.Name)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if _, ok := profiles.Get(args[0]); !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		profiles.Selected = args[0]
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		logger.Successf("Active profile: %s", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if !profiles.Remove(args[0]) {
			return fmt.Errorf("profile %q not found", args[0])
		}
		if err := config.SaveProfiles(profiles); err != nil {
			return err
		}
		logger.Successf("Profile %q removed", args[0])
		return nil
	},
}

func init() {
	profileAddCmd.Flags().String("config-path", "", "scenario config file for this profile")
	profileAddCmd.Flags().Int("api-port", 8080, "REST API port")
	profileAddCmd.Flags().Int("ws-port", 8081, "WebSocket port")
	profileAddCmd.Flags().Int64("seed", 0, "master RNG seed override")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}
