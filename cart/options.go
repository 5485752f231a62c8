package cart

import (
	"time"

	"go.uber.org/zap"
)

const defaultWriteTimeout = 10 * time.Second

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler receives snapshot write failures (as *PersistError) and
// discarded corrupt snapshots. Write failures are reported from the writer
// goroutine, corrupt snapshots from the goroutine calling Initialize or
// Reload.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

// WithRefreshOnAdd makes AddToCart on a product already in the cart replace
// its title, image and price with the candidate's, in addition to bumping the
// quantity. By default the stored fields are kept.
func WithRefreshOnAdd(refresh bool) Option {
	return func(s *Store) {
		s.refreshOnAdd = refresh
	}
}

// WithWriteTimeout bounds each snapshot write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.writeTimeout = timeout
		}
	}
}
