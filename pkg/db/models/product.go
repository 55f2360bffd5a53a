package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Product is a sellable catalog row: a medicine or a lab test.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name        string            `gorm:"column:name;not null"`
	Composition *string           `gorm:"column:composition"`
	HSNCode     *string           `gorm:"column:hsn_code"`
	Kind        enums.ProductKind `gorm:"column:kind;not null"`
	PricePaise  int64             `gorm:"column:price_paise;not null"`
	AvailableQty int              `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int              `gorm:"column:reserved_qty;not null;default:0"`
	ExpiryDate  *time.Time        `gorm:"column:expiry_date"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether a medicine can no longer be sold. Lab tests never
// expire.
func (p *Product) IsExpired(today time.Time) bool {
	if p.Kind != enums.ProductKindMedicine || p.ExpiryDate == nil {
		return false
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !p.ExpiryDate.After(day)
}
