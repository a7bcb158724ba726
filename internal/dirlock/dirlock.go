// Package dirlock implements the single-process directory ownership guard
// spec.md §4.H/§6 requires: an advisory exclusive lock on a FLOCK file in
// the database directory. Uses golang.org/x/sys/unix the same way
// _examples/yonwoo9-go-bitcask/file.go reaches into the same package for
// unix.Mmap/unix.Munmap — a different syscall, same "talk to the OS below
// the stdlib" concern the corpus already pulls this dependency in for.
package dirlock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("dirlock: directory already in use")

// FileName is the lock file's fixed name within the database directory.
const FileName = "FLOCK"

// Lock is a held, exclusive, non-blocking flock on a directory's lock file.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if absent) path and takes a non-blocking
// exclusive flock on it, returning ErrLocked if another process holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
