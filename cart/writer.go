package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gofalre.io/marketplace/models"
)

type snapshot struct {
	version  uint64
	products []models.Product
}

// snapshotWriter persists cart snapshots from a single goroutine. Only the
// newest queued snapshot is kept, so a slow store never writes an older
// state after a newer one.
type snapshotWriter struct {
	repo    Repository
	logger  *zap.Logger
	onError func(error)
	timeout time.Duration

	mu        sync.Mutex
	pending   *snapshot
	persisted uint64
	lastErr   error
	progress  chan struct{}
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newSnapshotWriter(repo Repository, timeout time.Duration, onError func(error), logger *zap.Logger) *snapshotWriter {
	w := &snapshotWriter{
		repo:     repo,
		logger:   logger,
		onError:  onError,
		timeout:  timeout,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
	w.drain()
}

func (w *snapshotWriter) drain() {
	for {
		w.mu.Lock()
		snap := w.pending
		w.pending = nil
		w.mu.Unlock()

		if snap == nil {
			return
		}

		err := w.write(snap)

		w.mu.Lock()
		w.persisted = snap.version
		w.lastErr = err
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *snapshotWriter) write(snap *snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.repo.Save(ctx, snap.products); err != nil {
		w.logger.Error("Failed to persist cart snapshot",
			zap.Error(err),
			zap.Uint64("version", snap.version),
			zap.Int("items", len(snap.products)))
		perr := &PersistError{Version: snap.version, Err: err}
		if w.onError != nil {
			w.onError(perr)
		}
		return perr
	}

	w.logger.Debug("Cart snapshot persisted",
		zap.Uint64("version", snap.version),
		zap.Int("items", len(snap.products)))
	return nil
}

// enqueue replaces any snapshot still waiting to be written. Snapshots
// enqueued after stop are dropped; callers reject changes before that.
func (w *snapshotWriter) enqueue(snap snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.logger.Warn("Dropping cart snapshot enqueued after stop", zap.Uint64("version", snap.version))
		return
	}
	if w.pending == nil || w.pending.version < snap.version {
		w.pending = &snap
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// flush waits until version (or a later one) has been written and returns
// the outcome of the most recent write.
func (w *snapshotWriter) flush(ctx context.Context, version uint64) error {
	for {
		w.mu.Lock()
		if w.persisted >= version {
			err := w.lastErr
			w.mu.Unlock()
			return err
		}
		progress := w.progress
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-progress:
		}
	}
}

// stop lets the queued snapshot be written and waits for the goroutine to exit.
func (w *snapshotWriter) stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.wake)
	}
	w.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}
