// Package lockfile guards a state directory so only one OpsCopilot process
// uses its database at a time.
//
// The lock is an flock on a file inside the directory, so the kernel drops
// it when the process exits, however it exits.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "opscopilot.lock"

// ErrLocked matches a LockError with errors.Is.
var ErrLocked = errors.New("state directory is locked by another process")

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID     int
	Started time.Time
	Mode    string // "api" or "console"
}

func (h Holder) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", h.PID)
	if !h.Started.IsZero() {
		fmt.Fprintf(&b, "started=%s\n", h.Started.UTC().Format(time.RFC3339))
	}
	if h.Mode != "" {
		fmt.Fprintf(&b, "mode=%s\n", h.Mode)
	}
	return b.String()
}

// Lock represents an acquired state directory lock
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// AcquireLock takes an exclusive, non-blocking lock on stateDir, creating the
// directory if needed. A held lock yields a *LockError describing the holder.
func AcquireLock(stateDir, mode string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("AcquireLock: attempting", "lock_path", lockPath, "mode", mode)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("AcquireLock: failed to create state directory", "error", err, "state_dir", stateDir)
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC is deferred until the lock is held so a losing process never
	// wipes the holder's information.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		slog.Error("AcquireLock: failed to open lock file", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder, readErr := ReadHolder(lockPath)
		lerr := &LockError{LockPath: lockPath, Cause: err}
		if readErr == nil {
			lerr.Holder = &holder
			lerr.Running = isProcessRunning(holder.PID)
		}
		slog.Error("AcquireLock: another OpsCopilot instance holds the lock", "error", err, "lock_path", lockPath, "holder_pid", holder.PID)
		return nil, lerr
	}

	holder := Holder{PID: os.Getpid(), Started: time.Now(), Mode: mode}
	if err := writeHolder(file, holder); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		slog.Error("AcquireLock: failed to record holder", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", holder.PID, "mode", mode)
	return &Lock{file: file, path: lockPath, holder: holder}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Holder returns the information this process recorded.
func (l *Lock) Holder() Holder {
	return l.holder
}

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	var errs []error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		// The flock is already gone; a leftover file is harmless.
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	l.file = nil
	if err := errors.Join(errs...); err != nil {
		slog.Error("Lock.Release: failed", "error", err, "lock_path", l.path)
		return err
	}
	slog.Info("Released state directory lock", "lock_path", l.path)
	return nil
}

// LockError reports a lock held by another process.
type LockError struct {
	LockPath string
	Holder   *Holder // nil when the lock file could not be parsed
	Running  bool    // whether Holder.PID answered signal 0
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another OpsCopilot instance is using this state directory (lock file %s)", e.LockPath)
	if e.Holder != nil {
		state := "running"
		if !e.Running {
			state = "not running, lock may be stale"
		}
		fmt.Fprintf(&b, "; held by pid %d (%s)", e.Holder.PID, state)
		if e.Holder.Mode != "" {
			fmt.Fprintf(&b, " in %s mode", e.Holder.Mode)
		}
	}
	fmt.Fprintf(&b, "; remove %s only if no other instance is running", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// Is matches ErrLocked.
func (e *LockError) Is(target error) bool {
	return target == ErrLocked
}

// ReadHolder parses the key=value lines of a lock file.
func ReadHolder(lockPath string) (Holder, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		return Holder{}, err
	}
	defer f.Close()

	var h Holder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "started":
			h.Started, _ = time.Parse(time.RFC3339, value)
		case "mode":
			h.Mode = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Holder{}, err
	}
	if h.PID <= 0 {
		return Holder{}, fmt.Errorf("lock file %s has no pid", lockPath)
	}
	return h, nil
}

func writeHolder(file *os.File, h Holder) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(h.String()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("writeHolder: failed to sync lock file", "error", err, "lock_path", file.Name())
	}
	return nil
}

// isProcessRunning sends signal 0, which checks existence without delivering anything.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
