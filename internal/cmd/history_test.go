package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, env *testEnv) {
	t.Helper()

	store, err := history.New(context.Background(), env.s.cfg.Paths.DBFile, 0, nil)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	records := []core.HistoryRecord{
		{TaskID: "t1", PackageName: "firefox", PackagePath: "/p/firefox.deb", Format: core.FormatDeb, Status: core.StatusSucceeded, Attempts: 1, Timestamp: now.Add(-2 * time.Hour)},
		{TaskID: "t2", PackageName: "gimp", PackagePath: "/p/gimp.flatpak", Format: core.FormatFlatpak, Status: core.StatusFailed, ErrorKind: "dependency_error", Attempts: 1, Timestamp: now.Add(-time.Hour)},
		{TaskID: "t3", PackageName: "vlc", PackagePath: "/p/vlc.snap", Format: core.FormatSnap, Status: core.StatusCancelled, ErrorKind: "installation_cancelled", Timestamp: now},
	}
	for _, r := range records {
		require.NoError(t, store.Record(context.Background(), r))
	}
}

func TestHistoryList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedHistory(t, env)

	stdout, _, err := execute(newHistoryCmd(env.s), "list", "--json")
	require.NoError(t, err)

	var records []core.HistoryRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "vlc", records[0].PackageName)

	stdout, _, err = execute(newHistoryCmd(env.s), "list", "--status", "failed", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "gimp", records[0].PackageName)

	stdout, _, err = execute(newHistoryCmd(env.s), "list", "--format", "deb")
	require.NoError(t, err)
	assert.Contains(t, stdout, "firefox")
	assert.NotContains(t, stdout, "gimp")
}

func TestHistoryList_InvalidFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, _, err := execute(newHistoryCmd(env.s), "list", "--status", "running")
	assert.Error(t, err)

	_, _, err = execute(newHistoryCmd(env.s), "list", "--format", "appimage")
	assert.Error(t, err)
}

func TestHistoryList_Empty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, _, err := execute(newHistoryCmd(env.s), "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No installations recorded")
}

func TestHistoryStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedHistory(t, env)

	stdout, _, err := execute(newHistoryCmd(env.s), "stats", "--json")
	require.NoError(t, err)

	var st history.Stats
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Succeeded)
	assert.InDelta(t, 33.3, st.SuccessRate, 0.1)

	stdout, _, err = execute(newHistoryCmd(env.s), "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Success rate: 33.3%")
	assert.Contains(t, stdout, "flatpak: 1")
}

func TestHistoryExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedHistory(t, env)
	out := filepath.Join(t.TempDir(), "history.csv")

	_, stderr, err := execute(newHistoryCmd(env.s), "export", "--format", "csv", "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "History exported to")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,task_id"))

	_, _, err = execute(newHistoryCmd(env.s), "export", "--format", "xml")
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
}

func TestHistoryClear(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedHistory(t, env)

	_, _, err := execute(newHistoryCmd(env.s), "clear")
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))

	env.s.interactive = true
	env.s.confirm = func(string) (bool, error) { return false, nil }
	stdout, _, err := execute(newHistoryCmd(env.s), "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "History kept")

	stdout, _, err = execute(newHistoryCmd(env.s), "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 3 history records")

	stdout, _, err = execute(newHistoryCmd(env.s), "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No installations recorded")
}
