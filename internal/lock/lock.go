// Package lock implements the project-root file lock (C14) the applicator
// uses to serialize concurrent Apply calls against the same project root.
// O_CREATE|O_EXCL is the only portable primitive the corpus or the
// standard library offers for this — no third-party file-locking library
// appears anywhere in the example pack.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const lockFileName = ".dedup.lock"

// ErrBusy is returned by Acquire in NonBlocking mode when the lock is held.
var ErrBusy = errors.New("lock: project root is busy")

type lockPayload struct {
	PID       int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a held advisory lock over one project root; Release must be
// called exactly once.
type Lock struct {
	path string
}

// Acquire takes the lock at <projectRoot>/.dedup.lock. If nonBlocking is
// true, it returns ErrBusy immediately when the lock is held by a live
// process; otherwise it retries with jittered backoff until ctx is done or
// the lock is obtained. A lock file whose recorded PID is no longer alive
// is reclaimed automatically.
func Acquire(ctx context.Context, projectRoot string, nonBlocking bool) (*Lock, error) {
	path := filepath.Join(projectRoot, lockFileName)

	for {
		if err := tryCreate(path); err == nil {
			return &Lock{path: path}, nil
		} else if !os.IsExist(err) {
			return nil, fmt.Errorf("lock: create %s: %w", path, err)
		}

		if reclaimStale(path) {
			continue
		}

		if nonBlocking {
			return nil, ErrBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitteredBackoff()):
		}
	}
}

func tryCreate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	payload := lockPayload{PID: os.Getpid(), AcquiredAt: time.Now()}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// reclaimStale removes the lock file if the PID it records is no longer
// alive, returning true if it did so.
func reclaimStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	if payload.PID <= 0 || processAlive(payload.PID) {
		return false
	}
	return os.Remove(path) == nil
}

func processAlive(pid int) bool {
	// Signal 0 performs no-op error checking only: ESRCH means the
	// process is gone, EPERM means it exists but we can't signal it.
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func jitteredBackoff() time.Duration {
	base := 100 * time.Millisecond
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond
	return base + jitter
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}
