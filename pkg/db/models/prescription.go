package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// PrescriptionUpload is a patient-submitted prescription image that a
// pharmacist reviews, prices, and converts into an order.
type PrescriptionUpload struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	ImageBlobID *uuid.UUID               `gorm:"column:image_blob_id;type:uuid"`
	Status      enums.PrescriptionStatus `gorm:"column:status;not null;default:'pending'"`
	ReviewerID  *uuid.UUID               `gorm:"column:reviewer_id;type:uuid"`

	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;not null;default:'pickup'"`
	DeliveryAddress *string              `gorm:"column:delivery_address"`
	DeliveryPhone   *string              `gorm:"column:delivery_phone"`

	EstimatedPaise int64      `gorm:"column:estimated_paise;not null;default:0"`
	RelatedOrderID *uuid.UUID `gorm:"column:related_order_id;type:uuid"`

	Medicines []PrescriptionMedicine `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// PrescriptionMedicine is a pharmacist-attached product with a set price.
type PrescriptionMedicine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PrescriptionID uuid.UUID `gorm:"column:prescription_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int       `gorm:"column:quantity;not null;default:1"`
	UnitPricePaise int64     `gorm:"column:unit_price_paise;not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
