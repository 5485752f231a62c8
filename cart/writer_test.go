package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofalre.io/marketplace/models"
)

type recordingRepository struct {
	mu     sync.Mutex
	saved  [][]models.Product
	err    error
	block  chan struct{}
	inSave chan struct{}
}

func (r *recordingRepository) Load(context.Context) ([]models.Product, bool, error) {
	return nil, false, nil
}

func (r *recordingRepository) Save(_ context.Context, products []models.Product) error {
	r.mu.Lock()
	block, inSave := r.block, r.inSave
	r.inSave = nil
	r.mu.Unlock()

	if inSave != nil {
		close(inSave)
	}
	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, products)
	return r.err
}

func (r *recordingRepository) Delete(context.Context) error {
	return nil
}

func (r *recordingRepository) versions() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.saved))
	for _, products := range r.saved {
		out = append(out, len(products))
	}
	return out
}

// snap builds a snapshot whose length equals its version.
func snap(version uint64) snapshot {
	products := make([]models.Product, version)
	return snapshot{version: version, products: products}
}

func TestSnapshotWriter_IgnoresOlderSnapshots(t *testing.T) {
	block, inSave := make(chan struct{}), make(chan struct{})
	repo := &recordingRepository{block: block, inSave: inSave}
	w := newSnapshotWriter(repo, defaultWriteTimeout, nil, zap.NewNop())

	w.enqueue(snap(1))
	<-inSave

	w.enqueue(snap(3))
	w.enqueue(snap(2))
	close(block)

	require.NoError(t, w.flush(context.Background(), 3))
	require.NoError(t, w.stop(context.Background()))

	assert.Equal(t, []int{1, 3}, repo.versions())

	w.enqueue(snap(4))
	assert.Equal(t, []int{1, 3}, repo.versions())
}

func TestSnapshotWriter_ReportsFailures(t *testing.T) {
	repo := &recordingRepository{err: errors.New("boom")}

	var got []error
	var mu sync.Mutex
	w := newSnapshotWriter(repo, defaultWriteTimeout, func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	}, zap.NewNop())

	w.enqueue(snap(1))
	err := w.flush(context.Background(), 1)

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, uint64(1), perr.Version)
	assert.ErrorIs(t, err, repo.err)

	assert.ErrorIs(t, w.stop(context.Background()), repo.err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
}

func TestSnapshotWriter_StopWritesPending(t *testing.T) {
	repo := &recordingRepository{}
	w := newSnapshotWriter(repo, defaultWriteTimeout, nil, zap.NewNop())

	w.enqueue(snap(2))
	require.NoError(t, w.stop(context.Background()))
	require.NoError(t, w.stop(context.Background()))

	assert.Equal(t, []int{2}, repo.versions())
}
