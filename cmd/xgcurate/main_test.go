// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xgcurate/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvOutputDir, dir)
	textfile := filepath.Join(dir, "xgcurate.prom")
	t.Setenv(config.EnvMetricsTextfile, textfile)

	out, err := execute(t, "run", "--config", "testdata/config.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "playlist: "+filepath.Join(dir, "arabic.m3u"))
	assert.Contains(t, out, "guide:    "+filepath.Join(dir, "arabic.xml"))

	playlist, err := os.ReadFile(filepath.Join(dir, "arabic.m3u"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(playlist), "#EXTM3U"))
	assert.Contains(t, string(playlist), `tvg-id="MBC.1.ae"`)
	assert.NotContains(t, string(playlist), "Iran International")

	guide, err := os.ReadFile(filepath.Join(dir, "arabic.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(guide), `<channel id="MBC.1.ae">`)
	assert.NotContains(t, string(guide), "CNN.us")

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "xgcurate_build_info")
}

func TestRun_PlaylistUnavailable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvOutputDir, dir)
	t.Setenv(config.EnvPlaylistURL, filepath.Join(dir, "missing.m3u"))

	_, err := execute(t, "run", "-c", "testdata/config.yaml")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(config.EnvOutputDir, t.TempDir())
	_, err := execute(t, "run", "--config", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCheck(t *testing.T) {
	t.Setenv(config.EnvOutputDir, t.TempDir())

	out, err := execute(t, "check", "--config", "testdata/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ testdata/config.yaml is valid")
	assert.Contains(t, out, "policy include, 1 guide source(s)")

	_, err = execute(t, "check", "--config", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
}

func TestCheck_MissingFile(t *testing.T) {
	_, err := execute(t, "check", "--config", "testdata/nope.yaml")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev (commit: unknown, built: unknown)\n", out)
}

func TestRejectsPositionalArgs(t *testing.T) {
	_, err := execute(t, "version", "extra")
	require.Error(t, err)
}
