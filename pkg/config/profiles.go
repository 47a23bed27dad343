package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is a named run configuration: a scenario config file, server
// ports and a seed. `run` applies only the config file and the seed.
type Profile struct {
	Name       string `yaml:"name"`
	ConfigPath string `yaml:"config_path,omitempty"`
	APIPort    int    `yaml:"api_port,omitempty"`
	WSPort     int    `yaml:"ws_port,omitempty"`
	Seed       *int64 `yaml:"seed,omitempty"`
}

// Profiles holds all saved profiles and the active selection.
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
	Selected string    `yaml:"selected,omitempty"`
}

func profilesPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".wildfire-sim", "profiles.yaml"), nil
}

// LoadProfiles reads the saved profiles from the default location. A
// missing file returns an empty set rather than an error.
func LoadProfiles() (*Profiles, error) {
	path, err := profilesPath()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(path)
}

// LoadProfilesFromFile reads profiles from a specific file.
func LoadProfilesFromFile(path string) (*Profiles, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Profiles{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return &profiles, nil
}

// SaveProfiles writes the profiles to the default location.
func SaveProfiles(profiles *Profiles) error {
	path, err := profilesPath()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(profiles, path)
}

// SaveProfilesToFile writes profiles to a specific file.
func SaveProfilesToFile(profiles *Profiles, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Get returns the named profile.
func (p *Profiles) Get(name string) (*Profile, bool) {
	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			return &p.Profiles[i], true
		}
	}
	return nil, false
}

// Upsert adds or replaces a profile by name.
func (p *Profiles) Upsert(profile Profile) {
	for i := range p.Profiles {
		if p.Profiles[i].Name == profile.Name {
			p.Profiles[i] = profile
			return
		}
	}
	p.Profiles = append(p.Profiles, profile)
}

// Remove deletes a profile by name, reporting whether it existed.
func (p *Profiles) Remove(name string) bool {
	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			p.Profiles = append(p.Profiles[:i], p.Profiles[i+1:]...)
			if p.Selected == name {
				p.Selected = ""
			}
			return true
		}
	}
	return false
}

// Active returns the selected profile, if any.
func (p *Profiles) Active() (*Profile, bool) {
	if p.Selected == "" {
		return nil, false
	}
	return p.Get(p.Selected)
}
