package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// CartLine pairs a user with a product and quantity. Mutable until its order
// captures, at which point Purchased flips and the line is frozen.
type CartLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Kind      enums.OrderKind `gorm:"column:kind;not null"`
	Quantity  int             `gorm:"column:quantity;not null;default:1"`
	Purchased bool            `gorm:"column:purchased;not null;default:false"`

	// Set at freeze time; totals are computed from this snapshot, never from
	// the live catalog price.
	OrderID         *uuid.UUID `gorm:"column:order_id;type:uuid;index"`
	UnitPricePaise  int64      `gorm:"column:unit_price_paise;not null;default:0"`

	// Lab-test lines only: per-line payment tracking.
	PayStatus enums.TestPayStatus `gorm:"column:pay_status;not null;default:'unpaid'"`
	PaidAt    *time.Time          `gorm:"column:paid_at"`

	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotalPaise is quantity times the frozen unit price.
func (c *CartLine) LineTotalPaise() int64 {
	return int64(c.Quantity) * c.UnitPricePaise
}
