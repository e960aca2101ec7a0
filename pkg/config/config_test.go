package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.12, cfg.OMC.PatentAbove)
	assert.Equal(t, 0.08, cfg.OMC.ObstructedBelow)
	assert.Equal(t, 256, cfg.Threshold.Bins)
	assert.Equal(t, 0.10, cfg.Threshold.ValleyFraction)
	assert.Equal(t, 50, cfg.Cyst.MinVoxels)
	assert.Equal(t, 20, cfg.Reference.MinVoxels)
	assert.Positive(t, cfg.Processing.NumCores)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sclerosis, cfg.Sclerosis)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sinusct.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.OMC.PatentAbove = 0.2
	cfg.Cyst.CavityMarginMM = 4
	cfg.Anatomy.Maxillary.Left.Z.Hi = 0.6
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	yaml := `
omc:
  patentAbove: 0.15
cyst:
  minVoxels: 80
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.15, cfg.OMC.PatentAbove)
	assert.Equal(t, 0.08, cfg.OMC.ObstructedBelow)
	assert.Equal(t, 80, cfg.Cyst.MinVoxels)
	assert.Equal(t, 60.0, cfg.Cyst.MaxHU)
	assert.Equal(t, 5.0, cfg.Cyst.CavityMarginMM)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	yaml := `
sclerosis:
  innerMarginMM: 8
  outerMarginMM: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "sclerosis")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("omc: [unterminated"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "valleyFraction: 0.1")
	assert.Contains(t, string(data), "cavityMarginMM: 5")
}

func TestValidateLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.LogFormat = "xml"
	assert.Error(t, cfg.Validate())
}
