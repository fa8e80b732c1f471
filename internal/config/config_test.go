package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/internal/config"
)

func writeFile(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
}

func TestLoad_YAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/awsorgctl.yml", "spec_file: /spec.yml\nregion: eu-west-1\n")

	cfg, err := config.Load(fs, "/etc")
	require.NoError(t, err)
	assert.Equal(t, "/spec.yml", cfg.SpecFile)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoad_JSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/awsorgctl.json", `{"spec_file": "/spec.yml", "org_access_role": "CustomRole"}`)

	cfg, err := config.Load(fs, "/etc")
	require.NoError(t, err)
	assert.Equal(t, "/spec.yml", cfg.SpecFile)
	assert.Equal(t, "CustomRole", cfg.OrgAccessRole)
}

func TestLoad_ProbeOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/awsorgctl.yml", "region: from-yml\n")
	writeFile(t, fs, "/etc/awsorgctl.yaml", "region: from-yaml\n")
	writeFile(t, fs, "/etc/awsorgctl.json", `{"region": "from-json"}`)

	cfg, err := config.Load(fs, "/etc")
	require.NoError(t, err)
	assert.Equal(t, "from-yml", cfg.Region, ".yml wins over .yaml and .json")
}

func TestLoad_MissingFileIsEmptyConfig(t *testing.T) {
	cfg, err := config.Load(afero.NewMemMapFs(), "/etc")
	require.NoError(t, err)
	assert.Equal(t, &config.Config{}, cfg)
}

func TestLoad_Malformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/awsorgctl.yml", "spec_file: [unclosed\n")

	_, err := config.Load(fs, "/etc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestMerge_OverlaysNonEmptyValues(t *testing.T) {
	cfg := config.Config{
		SpecFile:      "/spec.yml",
		OrgAccessRole: "OrganizationAccountAccessRole",
		Region:        "eu-west-1",
	}
	cfg.Merge(config.Config{Region: "us-east-1", MasterAccountID: "111111111111"})

	assert.Equal(t, "/spec.yml", cfg.SpecFile)
	assert.Equal(t, "OrganizationAccountAccessRole", cfg.OrgAccessRole)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "111111111111", cfg.MasterAccountID)
}
