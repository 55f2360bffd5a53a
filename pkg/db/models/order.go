package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	"github.com/mahima-medicare/healthstack-backend/pkg/types"
)

// Order is a frozen cart with delivery details and computed totals. Monetary
// fields never change after freeze; only the status columns move.
type Order struct {
	ID      uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID  uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Kind    enums.OrderKind `gorm:"column:kind;not null"`
	Ordered bool            `gorm:"column:ordered;not null;default:false"`

	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;not null;default:'pickup'"`
	DeliveryAddress *string              `gorm:"column:delivery_address"`
	DeliveryPhone   *string              `gorm:"column:delivery_phone"`

	OrderStatus      enums.OrderStatus      `gorm:"column:order_status;not null;default:'pending'"`
	CollectionStatus enums.CollectionStatus `gorm:"column:collection_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;not null;default:'pending'"`

	SubtotalPaise    int64 `gorm:"column:subtotal_paise;not null;default:0"`
	TaxPaise         int64 `gorm:"column:tax_paise;not null;default:0"`
	DeliveryFeePaise int64 `gorm:"column:delivery_fee_paise;not null;default:0"`
	TotalPaise       int64 `gorm:"column:total_paise;not null;default:0"`

	// Home sample collection scheduling (test orders).
	CollectionDate *time.Time `gorm:"column:collection_date"`
	CollectionTime *string    `gorm:"column:collection_time"`

	StaffNotes *string          `gorm:"column:staff_notes"`
	AuditLog   types.AuditTrail `gorm:"column:audit_log;type:jsonb;serializer:json"`

	Lines     []CartLine `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
