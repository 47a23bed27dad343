package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
	"github.com/Shybit1/drone-swarm-comms/pkg/simulation"
)

// SimulationInfo is one discovered scenario manifest.
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds every simulation.yaml under the project's
// cmd directory.
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	var found []SimulationInfo
	err = filepath.Walk(filepath.Join(rootDir, "cmd"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() != "simulation.yaml" {
			return nil
		}
		simInfo, err := loadManifest(path)
		if err != nil {
			logger.Warnf("skipping %s: %v", path, err)
			return nil
		}
		found = append(found, *simInfo)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}
	return found, nil
}

func loadManifest(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var config simulation.SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if config.Name == "" {
		return nil, fmt.Errorf("manifest missing name")
	}

	return &SimulationInfo{Path: filepath.Dir(path), Config: config}, nil
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
