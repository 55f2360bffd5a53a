package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// PaymentIntent mirrors one gateway order (or a COD pseudo-payment) for one
// of ours. GatewayOrderID is unique; Live stays true for created/captured
// intents and backs the one-live-intent-per-order partial unique index.
type PaymentIntent struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	GatewayOrderID   string             `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string            `gorm:"column:gateway_payment_id"`
	Signature        *string            `gorm:"column:signature"`
	AmountPaise      int64              `gorm:"column:amount_paise;not null"`
	Currency         string             `gorm:"column:currency;not null;default:'INR'"`
	Status           enums.IntentStatus `gorm:"column:status;not null;default:'created'"`
	Kind             enums.PaymentKind  `gorm:"column:kind;not null"`
	Live             bool               `gorm:"column:live;not null;default:true"`

	// Customer snapshot, frozen at intent creation.
	CustomerName    string  `gorm:"column:customer_name;not null"`
	CustomerEmail   string  `gorm:"column:customer_email;not null"`
	CustomerPhone   *string `gorm:"column:customer_phone"`
	CustomerAddress *string `gorm:"column:customer_address"`

	ReceiptID string            `gorm:"column:receipt_id;not null"`
	Notes     map[string]string `gorm:"column:notes;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
