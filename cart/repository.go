package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gofalre.io/marketplace/driver"
	"gofalre.io/marketplace/models"
)

// SnapshotKey is the storage key the whole cart is persisted under.
const SnapshotKey = "@GoMarketPlace:products"

// ErrCorruptSnapshot is returned when the stored snapshot cannot be decoded
// or violates the cart invariants.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

var _ Repository = (*repository)(nil)

type Repository interface {
	// Load returns the stored cart. found is false when nothing was saved yet.
	Load(ctx context.Context) (products []models.Product, found bool, err error)
	// Save overwrites the stored cart with products.
	Save(ctx context.Context, products []models.Product) error
	// Delete drops the stored cart.
	Delete(ctx context.Context) error
}

type repository struct {
	kv     driver.KeyValueStore
	logger *zap.Logger
}

func NewRepository(kv driver.KeyValueStore, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &repository{
		kv:     kv,
		logger: logger,
	}
}

func (r *repository) Load(ctx context.Context) ([]models.Product, bool, error) {
	raw, found, err := r.kv.Get(ctx, SnapshotKey)
	if err != nil {
		r.logger.Error("Failed to read cart snapshot", zap.Error(err))
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	products, err := DecodeSnapshot([]byte(raw))
	if err != nil {
		r.logger.Warn("Failed to decode cart snapshot", zap.Error(err), zap.Int("bytes", len(raw)))
		return nil, true, err
	}

	return products, true, nil
}

func (r *repository) Save(ctx context.Context, products []models.Product) error {
	data, err := EncodeSnapshot(products)
	if err != nil {
		return err
	}

	if err = r.kv.Set(ctx, SnapshotKey, string(data)); err != nil {
		r.logger.Error("Failed to write cart snapshot", zap.Error(err), zap.Int("items", len(products)))
		return err
	}

	return nil
}

func (r *repository) Delete(ctx context.Context) error {
	if err := r.kv.Remove(ctx, SnapshotKey); err != nil {
		r.logger.Error("Failed to delete cart snapshot", zap.Error(err))
		return err
	}
	return nil
}

// EncodeSnapshot serializes products as a JSON array. A nil cart encodes as [].
func EncodeSnapshot(products []models.Product) ([]byte, error) {
	if products == nil {
		products = []models.Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot. Snapshots with
// empty ids, quantities below one or repeated ids are rejected.
func DecodeSnapshot(data []byte) ([]models.Product, error) {
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrCorruptSnapshot, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	return products, nil
}
