package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofrs/flock"

	"github.com/hpungsan/cardbot/internal/errors"
)

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// InstanceLock ensures one poller per channel on a host.
type InstanceLock struct {
	file    *flock.Flock
	path    string
	channel string
}

// New prepares a lock file for channel under dir. The lock is not taken.
func New(dir, channel string) (*InstanceLock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(dir, sanitize(channel)+".lock")
	return &InstanceLock{file: flock.New(path), path: path, channel: channel}, nil
}

// TryLock takes the lock without blocking. It returns INSTANCE_LOCKED when
// another process holds it.
func (l *InstanceLock) TryLock() error {
	ok, err := l.file.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return errors.NewInstanceLocked(l.channel)
	}
	return nil
}

// Unlock releases the lock.
func (l *InstanceLock) Unlock() error {
	return l.file.Unlock()
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

func sanitize(channel string) string {
	s := strings.NewReplacer("/", "--", "\\", "--", ":", "--", "#", "").Replace(channel)
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, ".-")
	if s == "" {
		s = "default"
	}
	return s
}
