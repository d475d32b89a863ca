package fulltext

import (
	"context"
	"errors"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/models"
)

// errIndexAbsent is returned by openers when no index exists at a location yet.
var errIndexAbsent = errors.New("index does not exist")

// handle is a location in use by this process. Calls running at the same
// time share it and its open index; the lock file is held until the last of
// them releases it, so indexes are never kept open between calls and other
// processes can take their turn.
type handle struct {
	path  string
	index bleve.Index
	lock  *flock.Flock
	refs  int
}

// site tracks the handle of one location.
type site struct {
	mu       sync.Mutex
	cond     *sync.Cond
	h        *handle
	swapping bool
}

// handleTable hands out handles per location.
type handleTable struct {
	mu     sync.Mutex
	sites  map[string]*site
	logger *zap.Logger
}

func newHandleTable(logger *zap.Logger) *handleTable {
	return &handleTable{sites: make(map[string]*site), logger: logger}
}

func (t *handleTable) site(path string) *site {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sites[path]
	if !ok {
		s = &site{}
		s.cond = sync.NewCond(&s.mu)
		t.sites[path] = s
	}
	return s
}

// acquire returns the handle of path, taking the lock file when this process
// holds no handle for it yet. A nil open leaves the index closed; otherwise
// the index is opened with open unless it already is. When open reports
// errIndexAbsent the handle is released and the error returned. The caller
// must release the handle when done.
func (t *handleTable) acquire(ctx context.Context, path string, open func() (bleve.Index, error)) (*handle, error) {
	s := t.site(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.swapping {
		s.cond.Wait()
	}
	if s.h == nil {
		fl, err := lockFile(ctx, path)
		if err != nil {
			return nil, err
		}
		s.h = &handle{path: path, lock: fl}
	}
	h := s.h
	h.refs++
	if open != nil && h.index == nil {
		idx, err := open()
		if err != nil {
			t.releaseLocked(s, h)
			return nil, err
		}
		h.index = idx
	}
	return h, nil
}

func (t *handleTable) release(h *handle) {
	s := t.site(h.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	t.releaseLocked(s, h)
}

func (t *handleTable) releaseLocked(s *site, h *handle) {
	h.refs--
	if h.refs == 0 {
		if err := closeHandle(h); err != nil {
			t.logger.Warn("failed to close index", zap.String("path", h.path), zap.Error(err))
		}
		s.h = nil
	}
	s.cond.Broadcast()
}

// replace waits until h is the only user of its location, closes the open
// index and runs swap while no other call can use the location. The lock
// file stays held throughout.
func (t *handleTable) replace(h *handle, swap func() error) error {
	s := t.site(h.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swapping = true
	defer func() {
		s.swapping = false
		s.cond.Broadcast()
	}()
	for h.refs > 1 {
		s.cond.Wait()
	}
	if h.index != nil {
		err := h.index.Close()
		h.index = nil
		if err != nil {
			return &models.StorageIOError{Op: "close index", Path: h.path, Err: err}
		}
	}
	return swap()
}

// closeAll closes the handles still in use, for shutdown.
func (t *handleTable) closeAll() error {
	t.mu.Lock()
	sites := make([]*site, 0, len(t.sites))
	for _, s := range t.sites {
		sites = append(sites, s)
	}
	t.mu.Unlock()

	var result *multierror.Error
	for _, s := range sites {
		s.mu.Lock()
		if s.h != nil {
			if err := closeHandle(s.h); err != nil {
				result = multierror.Append(result, err)
			}
			s.h = nil
		}
		s.mu.Unlock()
	}
	return result.ErrorOrNil()
}

// closeHandle closes the index before giving up the lock file.
func closeHandle(h *handle) error {
	var result *multierror.Error
	if h.index != nil {
		if err := h.index.Close(); err != nil {
			result = multierror.Append(result, &models.StorageIOError{Op: "close index", Path: h.path, Err: err})
		}
		h.index = nil
	}
	if err := h.lock.Unlock(); err != nil {
		result = multierror.Append(result, &models.StorageIOError{Op: "unlock index", Path: h.path, Err: err})
	}
	return result.ErrorOrNil()
}
