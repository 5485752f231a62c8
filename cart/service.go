package cart

import (
	"gofalre.io/marketplace/models"
)

// Service is what cart consumers depend on.
type Service interface {
	Products() []models.Product
	AddToCart(candidate models.ProductInput) error
	Increment(id string) error
	Decrement(id string) error
	Subscribe(fn func(models.CartEvent)) (unsubscribe func())
}
