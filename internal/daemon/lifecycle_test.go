package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	tmpDir := t.TempDir()

	lm := NewLifecycleManager(tmpDir, zerolog.Nop())
	assert.NotNil(t, lm)
	assert.Equal(t, filepath.Join(tmpDir, "tagbot.pid"), lm.pidFile)
	assert.Equal(t, PIDFilePath(tmpDir), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "data")
	lm := NewLifecycleManager(tmpDir, zerolog.Nop())

	require.NoError(t, lm.Start())
	assert.True(t, lm.Locked())

	pid, err := ReadPID(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, os.Getpid(), RunningPID(tmpDir))

	require.NoError(t, lm.Stop())
	assert.False(t, lm.Locked())

	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err), "PID file should be removed")
	assert.Equal(t, 0, RunningPID(tmpDir))
}

func TestLifecycleManagerSingleInstance(t *testing.T) {
	tmpDir := t.TempDir()

	first := NewLifecycleManager(tmpDir, zerolog.Nop())
	require.NoError(t, first.Start())
	defer first.Stop()

	second := NewLifecycleManager(tmpDir, zerolog.Nop())
	err := second.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, second.Locked())

	pid, err := ReadPID(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid, "the running instance's PID file is untouched")
}

func TestReadPID(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := ReadPID(tmpDir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(PIDFilePath(tmpDir), []byte("not-a-pid"), 0o644))
	_, err = ReadPID(tmpDir)
	assert.ErrorContains(t, err, "invalid PID file")

	require.NoError(t, os.WriteFile(PIDFilePath(tmpDir), []byte("1234\n"), 0o644))
	pid, err := ReadPID(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)
}

func TestProcessRunning(t *testing.T) {
	assert.True(t, ProcessRunning(os.Getpid()))
	assert.False(t, ProcessRunning(0))
	assert.False(t, ProcessRunning(-1))
}
