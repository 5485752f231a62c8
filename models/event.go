package models

import (
	"time"

	"gofalre.io/marketplace/models/enum"
)

// CartEvent describes a cart state change delivered to observers.
type CartEvent struct {
	Type      enum.CartEventType `json:"type"`
	ProductID string             `json:"product_id,omitempty"`
	Products  []Product          `json:"products"`
	Version   uint64             `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
}
