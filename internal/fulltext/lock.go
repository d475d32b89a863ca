package fulltext

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/hyperjump/notesearch/internal/models"
)

// lockRetryDelay is how often a process waiting for another one's lock file retries.
const lockRetryDelay = 20 * time.Millisecond

// writerLocks serializes the writers of one index location inside the process.
// Other processes are kept out by the location's lock file, see lockFile.
type writerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newWriterLocks() *writerLocks {
	return &writerLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until the caller is the only writer of path in this process.
func (w *writerLocks) lock(path string) (unlock func()) {
	w.mu.Lock()
	m, ok := w.locks[path]
	if !ok {
		m = &sync.Mutex{}
		w.locks[path] = m
	}
	w.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// lockFile takes the exclusive lock file (<location>.lock) of path, waiting
// for other processes until ctx is done.
func lockFile(ctx context.Context, path string) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err == nil && !ok {
		err = ctx.Err()
	}
	if err != nil {
		return nil, &models.StorageIOError{Op: "lock index", Path: path, Err: err}
	}
	return fl, nil
}
