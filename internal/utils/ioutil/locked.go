package ioutil

import (
	"io"
	"sync"
)

// LockedReadCloser holds a read lock on an artifact for as long as its
// content is being streamed. Close releases the lock exactly once, so callers
// may close both on the success path and in a deferred cleanup.
type LockedReadCloser struct {
	io.ReadCloser
	lock *sync.RWMutex
	once sync.Once
}

func (l *LockedReadCloser) Close() error {
	var err error
	l.once.Do(func() {
		err = l.ReadCloser.Close()
		l.lock.RUnlock()
	})
	return err
}

// NewLockedReadCloser wraps r; lock must already be read-locked by the caller.
func NewLockedReadCloser(r io.ReadCloser, lock *sync.RWMutex) *LockedReadCloser {
	return &LockedReadCloser{ReadCloser: r, lock: lock}
}
