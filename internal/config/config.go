package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds tool-level defaults. Command-line flags override these, and
// both override the matching top-level spec fields.
type Config struct {
	SpecFile        string `yaml:"spec_file" json:"spec_file"`
	MasterAccountID string `yaml:"master_account_id" json:"master_account_id"`
	AuthAccountID   string `yaml:"auth_account_id" json:"auth_account_id"`
	OrgAccessRole   string `yaml:"org_access_role" json:"org_access_role"`
	Region          string `yaml:"region" json:"region"`
}

var probeNames = []string{"awsorgctl.yml", "awsorgctl.yaml", "awsorgctl.json"}

// Load reads the configuration from dir (either .yaml or .json). A missing
// config file is not an error; flags can supply everything.
func Load(fs afero.Fs, dir string) (*Config, error) {
	path, ok := findConfigFile(fs, dir)
	if !ok {
		return &Config{}, nil
	}

	fileData, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Try to unmarshal YAML first
	var cfg Config
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		// If YAML fails, try JSON
		if err := json.Unmarshal(fileData, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	return &cfg, nil
}

// findConfigFile looks for awsorgctl.yml, awsorgctl.yaml, or awsorgctl.json
// in dir.
func findConfigFile(fs afero.Fs, dir string) (string, bool) {
	for _, name := range probeNames {
		possiblePath := filepath.Join(dir, name)
		if _, err := fs.Stat(possiblePath); err == nil {
			return possiblePath, true
		}
	}
	return "", false
}

// Merge overlays non-empty override values onto c.
func (c *Config) Merge(override Config) {
	if override.SpecFile != "" {
		c.SpecFile = override.SpecFile
	}
	if override.MasterAccountID != "" {
		c.MasterAccountID = override.MasterAccountID
	}
	if override.AuthAccountID != "" {
		c.AuthAccountID = override.AuthAccountID
	}
	if override.OrgAccessRole != "" {
		c.OrgAccessRole = override.OrgAccessRole
	}
	if override.Region != "" {
		c.Region = override.Region
	}
}
