package main

import (
	"fmt"
	"os"

	// Import to register the simulation.
	_ "github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/simulation"
)

func main() {
	fmt.Println("Wildfire swarm simulation registered. Use 'swarm-sim run' to execute.")
	os.Exit(0)
}
