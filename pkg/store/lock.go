package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// LockFileName is the advisory lock file kept in the store root.
const LockFileName = ".lock"

const lockPollInterval = 25 * time.Millisecond

// errWouldBlock is returned by the platform tryLock when another holder exists.
var errWouldBlock = errors.New("lock held")

// FileLock is an advisory, process-exclusive lock on the store root.
// Mutating operations hold it for their whole read-modify-write cycle.
//
// FileLock is not safe for concurrent use; callers serialize through it
// from a single goroutine or guard it with their own mutex.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unacquired lock for the store rooted at root.
func NewFileLock(root string) *FileLock {
	return &FileLock{path: filepath.Join(root, LockFileName)}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire blocks until the lock is held, polling until ctx is done or
// timeout elapses. Returns model.ErrLocked when the wait runs out.
// A zero timeout makes a single attempt.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if l.file != nil {
		return fmt.Errorf("lock %s already acquired", l.path)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return &model.StorageError{Op: "create lock directory", Path: filepath.Dir(l.path), Err: err}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &model.StorageError{Op: "open lock", Path: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		err := tryLock(file)
		if err == nil {
			l.file = file
			return nil
		}
		if !errors.Is(err, errWouldBlock) {
			file.Close()
			return &model.StorageError{Op: "lock", Path: l.path, Err: err}
		}
		if !time.Now().Before(deadline) {
			file.Close()
			return model.ErrLocked
		}
		select {
		case <-ctx.Done():
			file.Close()
			return fmt.Errorf("%w: %v", model.ErrLocked, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Release drops the lock. The lock file itself is left in place so that
// concurrent waiters keep contending on the same inode.
// Safe to call on an unacquired lock.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = unlock(l.file)
	err := l.file.Close()
	l.file = nil
	return err
}
