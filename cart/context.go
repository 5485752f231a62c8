package cart

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Store, error) {
	s, ok := ctx.Value(contextKey{}).(*Store)
	if !ok || s == nil {
		return nil, ErrNoStore
	}
	return s, nil
}

// MustFromContext is like FromContext but panics when ctx carries no store.
func MustFromContext(ctx context.Context) *Store {
	s, err := FromContext(ctx)
	if err != nil {
		panic("cart: MustFromContext must be used with a context created by cart.NewContext")
	}
	return s
}
