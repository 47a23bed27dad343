package simulation

import "context"

// Simulation is the contract every runnable scenario implements.
type Simulation interface {
	// Name returns the scenario name.
	Name() string

	// Description returns a one-line description of the scenario.
	Description() string

	// Configure applies the resolved parameter map before Run.
	Configure(params map[string]interface{}) error

	// Run executes the scenario until completion or context cancellation.
	Run(ctx context.Context) error

	// Stop requests a graceful shutdown.
	Stop() error
}
