package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sinusct.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "valleyFraction")

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "existing files are kept")

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestPhantomReport(t *testing.T) {
	out, err := execute(t, "--config", missingConfig(t), "phantom", "--size", "48")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Contains(t, report, "threshold")
	assert.Contains(t, report["omc"], "left")
	assert.NotContains(t, report, "lund_mackay")
}

func TestPhantomRoundTripThroughAnalyze(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "phantom.raw")
	overlays := filepath.Join(dir, "overlays")
	metricsFile := filepath.Join(dir, "metrics.prom")
	cfg := missingConfig(t)

	_, err := execute(t, "--config", cfg, "phantom", "--size", "48", "--save-raw", raw)
	require.NoError(t, err)

	info, err := os.Stat(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(48*48*48*4), info.Size())

	out, err := execute(t, "--config", cfg, "analyze", raw,
		"--width", "48", "--height", "48", "--depth", "48",
		"--grades", "maxillary_left=2,frontal_right=1",
		"--overlay-dir", overlays,
		"--metrics-file", metricsFile)
	require.NoError(t, err)

	var report struct {
		Volume struct {
			Width int `json:"width"`
		} `json:"volume"`
		LundMackay struct {
			Status string `json:"status"`
			Result struct {
				LM20 int `json:"lm20"`
			} `json:"result"`
		} `json:"lund_mackay"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 48, report.Volume.Width)
	if report.LundMackay.Status == "measured" {
		assert.Equal(t, 3, report.LundMackay.Result.LM20)
	} else {
		assert.Equal(t, "not_computed", report.LundMackay.Status)
	}

	entries, err := os.ReadDir(overlays)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sinusct_analyses_total")
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "short.raw")
	require.NoError(t, os.WriteFile(raw, make([]byte, 16), 0644))
	cfg := missingConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing dims", []string{"analyze", raw}},
		{"truncated file", []string{"analyze", raw, "--width", "8", "--height", "8", "--depth", "8"}},
		{"missing file", []string{"analyze", filepath.Join(dir, "nope.raw"), "--width", "1", "--height", "1", "--depth", "1"}},
		{"bad type", []string{"analyze", raw, "--width", "2", "--height", "2", "--depth", "1", "--type", "uint8"}},
		{"bad spacing", []string{"analyze", raw, "--width", "2", "--height", "2", "--depth", "1", "--spacing", "1,1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfg}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestBadGrades(t *testing.T) {
	cfg := missingConfig(t)
	_, err := execute(t, "--config", cfg, "phantom", "--size", "32", "--grades", "nasal_left=1")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "phantom", "--size", "32", "--grades", "maxillary_left=3")
	assert.Error(t, err)
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "--config", missingConfig(t), "--log-format", "xml", "phantom")
	assert.Error(t, err)
}
