package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := levelCmd()
	if len(args) > 0 && args[0] == "sweep" {
		cmd = sweepCmd()
		args = args[1:]
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLevelCommand(t *testing.T) {
	cases := []struct {
		points string
		want   string
	}{
		{"0", "level=1 next_level_points=200 points_to_next_level=200\n"},
		{"250", "level=2 next_level_points=400 points_to_next_level=150\n"},
		{"1000", "level=5 next_level_points=1800 points_to_next_level=800\n"},
	}
	for _, tc := range cases {
		out, err := runCmd(t, tc.points)
		require.NoError(t, err, tc.points)
		assert.Equal(t, tc.want, out, tc.points)
	}
}

func TestLevelCommandRejects(t *testing.T) {
	_, err := runCmd(t, "--", "-5")
	assert.ErrorContains(t, err, "non-negative")

	_, err = runCmd(t, "lots")
	assert.ErrorContains(t, err, "points must be an integer")

	_, err = runCmd(t)
	assert.Error(t, err)
}

func TestSweepCommandOnMemoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_driver: memory\n"), 0o600))
	configPath = path

	out, err := runCmd(t, "sweep", "--lookback", "1h")
	require.NoError(t, err)
	assert.Equal(t, "users=0 granted=0 failed=0\n", out)
}
