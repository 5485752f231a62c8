package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a fixed-point product price. It is encoded as a bare JSON number so
// snapshots stay readable by clients that expect `"price": 10.5`.
type Price struct {
	decimal.Decimal
}

func NewPrice(value float64) Price {
	return Price{Decimal: decimal.NewFromFloat(value)}
}

func ParsePrice(value string) (Price, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", value, err)
	}
	return Price{Decimal: d}, nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (p *Price) UnmarshalJSON(data []byte) error {
	return p.Decimal.UnmarshalJSON(data)
}

// Product 代表購物車中的單個商品項目
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Price    Price  `json:"price"`
	Quantity int    `json:"quantity"`
}

// ProductInput is a product as offered to the cart, before it has a quantity.
type ProductInput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Price    Price  `json:"price"`
}

func NewProduct(input ProductInput) Product {
	return Product{
		ID:       input.ID,
		Title:    input.Title,
		ImageURL: input.ImageURL,
		Price:    input.Price,
		Quantity: 1,
	}
}

// Input strips the quantity from p.
func (p Product) Input() ProductInput {
	return ProductInput{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
	}
}

// Validate checks the per-item cart invariants.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product id is empty")
	}
	if p.Quantity < 1 {
		return fmt.Errorf("product %s has quantity %d", p.ID, p.Quantity)
	}
	return nil
}

// CloneProducts returns a copy of products that shares no backing array with
// the original.
func CloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
