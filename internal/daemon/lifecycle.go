package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

const (
	pidFileName  = "tagbot.pid"
	lockFileName = "tagbot.lock"
)

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another tagbot instance is already running")

// LifecycleManager holds the single-instance lock and the PID file.
type LifecycleManager struct {
	dataDir string
	pidFile string
	lock    *flock.Flock
	logger  zerolog.Logger
}

// NewLifecycleManager creates a lifecycle manager for dataDir.
func NewLifecycleManager(dataDir string, logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		dataDir: dataDir,
		pidFile: PIDFilePath(dataDir),
		lock:    flock.New(filepath.Join(dataDir, lockFileName)),
		logger:  logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Start takes the instance lock and writes the PID file.
func (l *LifecycleManager) Start() error {
	if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if err := l.writePIDFile(); err != nil {
		_ = l.lock.Unlock()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.logger.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file and releases the lock.
func (l *LifecycleManager) Stop() error {
	var errs []error
	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove PID file: %w", err))
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
	}

	l.logger.Info().Msg("Lifecycle manager stopped")
	return errors.Join(errs...)
}

// Locked reports whether this manager holds the instance lock.
func (l *LifecycleManager) Locked() bool {
	return l.lock.Locked()
}

func (l *LifecycleManager) writePIDFile() error {
	return os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// PIDFilePath is where a daemon using dataDir records its PID.
func PIDFilePath(dataDir string) string {
	return filepath.Join(dataDir, pidFileName)
}

// ReadPID returns the PID recorded in dataDir.
func ReadPID(dataDir string) (int, error) {
	data, err := os.ReadFile(PIDFilePath(dataDir))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}

	return pid, nil
}

// ProcessRunning reports whether a process with pid exists.
func ProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so probe with signal 0
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// RunningPID returns the PID of a live daemon using dataDir, or 0.
func RunningPID(dataDir string) int {
	pid, err := ReadPID(dataDir)
	if err != nil || !ProcessRunning(pid) {
		return 0
	}
	return pid
}
