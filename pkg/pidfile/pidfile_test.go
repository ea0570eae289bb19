package pidfile

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPid(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data[:len(data)-1]))
	require.NoError(t, err)
	return pid
}

func TestInitAndTeardown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "endpointd.pid")
	p := New(path)
	ctx := context.Background()

	require.NoError(t, p.Init(ctx))
	assert.Equal(t, os.Getpid(), readPid(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	require.NoError(t, p.Teardown(ctx))
	assert.NoFileExists(t, path)

	require.NoError(t, p.Teardown(ctx), "teardown is idempotent")
}

func TestInit_ReplacesStaleFile(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "dead process", contents: "99999999\n"},
		{name: "garbage", contents: "not a pid"},
		{name: "empty", contents: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "endpointd.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o644))

			require.NoError(t, New(path).Init(context.Background()))
			assert.Equal(t, os.Getpid(), readPid(t, path))
		})
	}
}

func TestInit_RefusesLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpointd.pid")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	err := New(path).Init(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(data), "file must be left untouched")
}

func TestTeardown_LeavesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpointd.pid")
	p := New(path)
	ctx := context.Background()

	require.NoError(t, p.Init(ctx))
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	require.NoError(t, p.Teardown(ctx))
	assert.FileExists(t, path)
}

func TestLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpointd.pid")
	lc := New(path).Lifecycle()

	assert.Equal(t, "pidfile", lc.Name)
	require.NoError(t, lc.Init(context.Background()))
	assert.FileExists(t, path)
	require.NoError(t, lc.Teardown(context.Background()))
	assert.NoFileExists(t, path)
}
