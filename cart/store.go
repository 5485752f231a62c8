// Package cart keeps the shopping cart in memory and mirrors every change to
// a single snapshot in durable storage.
//
// Mutations are applied to memory synchronously and persisted write-behind:
// callers never wait for storage, and a failed write does not undo the
// change. Use Flush or Close when the snapshot must be on disk, for example
// before the process exits.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gofalre.io/marketplace/models"
	"gofalre.io/marketplace/models/enum"
)

var _ Service = (*Store)(nil)

type subscriber struct {
	id uint64
	fn func(models.CartEvent)
}

type Store struct {
	repo         Repository
	logger       *zap.Logger
	onError      func(error)
	refreshOnAdd bool
	writeTimeout time.Duration

	// initMu serializes Initialize and Reload.
	initMu sync.Mutex

	mu       sync.RWMutex
	products []models.Product
	version  uint64
	ready    bool
	closed   bool

	// changeMu serializes changes together with their delivery to
	// subscribers. It is always taken before mu.
	changeMu    sync.Mutex
	subsMu      sync.Mutex
	subscribers []subscriber
	nextSubID   uint64

	writer *snapshotWriter
}

// New returns a store backed by repo. The store is unusable until Initialize
// returns.
func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		logger:       zap.NewNop(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newSnapshotWriter(repo, s.writeTimeout, s.onError, s.logger)
	return s
}

// Initialize loads the persisted cart. It only loads once; later calls return
// nil. A corrupt snapshot is reported and replaced by an empty cart. Errors
// reading from storage are returned and Initialize may be retried.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.RLock()
	ready, closed := s.ready, s.closed
	s.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if ready {
		return nil
	}
	return s.load(ctx)
}

// Reload waits for pending writes and reads the snapshot again. Mutations
// issued meanwhile wait until the reloaded cart is in place.
func (s *Store) Reload(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	if err := s.Flush(ctx); err != nil {
		var perr *PersistError
		if !errors.As(err, &perr) {
			return err
		}
		s.logger.Warn("Reloading cart after a failed write", zap.Error(err))
	}
	return s.load(ctx)
}

// load replaces the cart with the stored snapshot. changeMu must be held.
func (s *Store) load(ctx context.Context) error {
	products, found, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptSnapshot) {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		s.logger.Error("Discarding corrupt cart snapshot", zap.Error(err))
		s.report(err)
		products = nil
	}
	if products == nil {
		products = []models.Product{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.products = products
	s.ready = true
	event := s.eventLocked(enum.CartEventTypeLoaded, "")
	s.mu.Unlock()

	s.logger.Info("Cart loaded", zap.Bool("found", found), zap.Int("items", len(products)))
	s.publish(event)
	return nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Products returns a copy of the cart in insertion order.
func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneProducts(s.products)
}

// Product returns the cart line for id.
func (s *Store) Product(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf(s.products, id); i >= 0 {
		return s.products[i], true
	}
	return models.Product{}, false
}

// AddToCart appends candidate with quantity 1, or increments the quantity
// when the product is already in the cart.
func (s *Store) AddToCart(candidate models.ProductInput) error {
	return s.mutate(candidate.ID, func(products []models.Product) ([]models.Product, enum.CartEventType, bool) {
		i := indexOf(products, candidate.ID)
		if i < 0 {
			next := make([]models.Product, len(products), len(products)+1)
			copy(next, products)
			return append(next, models.NewProduct(candidate)), enum.CartEventTypeAdded, true
		}

		next := models.CloneProducts(products)
		if s.refreshOnAdd {
			next[i].Title = candidate.Title
			next[i].ImageURL = candidate.ImageURL
			next[i].Price = candidate.Price
		}
		next[i].Quantity++
		return next, enum.CartEventTypeIncremented, true
	})
}

// Increment adds one to the quantity of id. Unknown ids are ignored.
func (s *Store) Increment(id string) error {
	return s.mutate(id, func(products []models.Product) ([]models.Product, enum.CartEventType, bool) {
		i := indexOf(products, id)
		if i < 0 {
			return nil, "", false
		}

		next := models.CloneProducts(products)
		next[i].Quantity++
		return next, enum.CartEventTypeIncremented, true
	})
}

// Decrement subtracts one from the quantity of id, removing the line when it
// reaches zero. Unknown ids are ignored.
func (s *Store) Decrement(id string) error {
	return s.mutate(id, func(products []models.Product) ([]models.Product, enum.CartEventType, bool) {
		i := indexOf(products, id)
		if i < 0 {
			return nil, "", false
		}

		if products[i].Quantity <= 1 {
			next := make([]models.Product, 0, len(products)-1)
			next = append(next, products[:i]...)
			next = append(next, products[i+1:]...)
			return next, enum.CartEventTypeRemoved, true
		}

		next := models.CloneProducts(products)
		next[i].Quantity--
		return next, enum.CartEventTypeDecremented, true
	})
}

// mutate applies fn to the current cart. fn must not modify its argument; it
// returns the replacement cart, or changed=false to leave the cart alone.
func (s *Store) mutate(id string, fn func([]models.Product) ([]models.Product, enum.CartEventType, bool)) error {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}

	if id == "" {
		s.mu.Unlock()
		return nil
	}

	next, eventType, changed := fn(s.products)
	if !changed {
		s.mu.Unlock()
		s.logger.Debug("Cart unchanged, product not in cart", zap.String("product_id", id))
		return nil
	}

	s.products = next
	s.version++
	s.writer.enqueue(snapshot{version: s.version, products: models.CloneProducts(next)})
	event := s.eventLocked(eventType, id)
	s.mu.Unlock()

	s.logger.Debug("Cart updated",
		zap.String("event", eventType.String()),
		zap.String("product_id", id),
		zap.Uint64("version", event.Version))
	s.publish(event)
	return nil
}

// Flush blocks until every change made so far has been written and returns
// the result of the latest write.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	version := s.version
	s.mu.RUnlock()

	if version == 0 {
		return nil
	}
	return s.writer.flush(ctx, version)
}

// Close rejects further changes, writes the pending snapshot and stops the
// writer. It returns the result of the final write.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.writer.stop(ctx)
}

// Subscribe registers fn to be called after every change, in change order.
// fn runs on the mutating goroutine. It may read the store but must not
// change it.
func (s *Store) Subscribe(fn func(models.CartEvent)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) eventLocked(eventType enum.CartEventType, id string) models.CartEvent {
	return models.CartEvent{
		Type:      eventType,
		ProductID: id,
		Products:  models.CloneProducts(s.products),
		Version:   s.version,
		CreatedAt: time.Now(),
	}
}

func (s *Store) publish(event models.CartEvent) {
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
}

func (s *Store) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func indexOf(products []models.Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
