package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the immutable tax document for one captured payment.
// Regeneration deletes and replaces the row; numbers are never reused.
type Invoice struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber   string    `gorm:"column:invoice_number;not null;uniqueIndex"`
	PaymentIntentID uuid.UUID `gorm:"column:payment_intent_id;type:uuid;not null;uniqueIndex"`

	CustomerName    string  `gorm:"column:customer_name;not null"`
	CustomerEmail   string  `gorm:"column:customer_email;not null"`
	CustomerPhone   *string `gorm:"column:customer_phone"`
	CustomerAddress *string `gorm:"column:customer_address"`

	// Business header, frozen at generation time.
	CompanyName    string `gorm:"column:company_name;not null"`
	CompanyAddress string `gorm:"column:company_address;not null"`
	CompanyPhone   string `gorm:"column:company_phone;not null"`
	LicenseNo      string `gorm:"column:license_no;not null"`
	GSTIN          string `gorm:"column:gstin;not null"`
	StateCode      string `gorm:"column:state_code;not null"`

	SubtotalPaise int64 `gorm:"column:subtotal_paise;not null"`
	TaxPaise      int64 `gorm:"column:tax_paise;not null;default:0"`
	DiscountPaise int64 `gorm:"column:discount_paise;not null;default:0"`
	DeliveryPaise int64 `gorm:"column:delivery_paise;not null;default:0"`
	TotalPaise    int64 `gorm:"column:total_paise;not null"`

	TermsConditions string     `gorm:"column:terms_conditions;not null"`
	PDFBlobID       *uuid.UUID `gorm:"column:pdf_blob_id;type:uuid"`

	Items     []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// InvoiceItem is one itemized row on an invoice.
type InvoiceItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID      uuid.UUID  `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description    string     `gorm:"column:description;not null"`
	Quantity       int        `gorm:"column:quantity;not null;default:1"`
	UnitPricePaise int64      `gorm:"column:unit_price_paise;not null"`
	TotalPaise     int64      `gorm:"column:total_paise;not null"`
	ItemType       string     `gorm:"column:item_type"`
	ItemRef        *uuid.UUID `gorm:"column:item_ref;type:uuid"`
}

// InvoiceSequence backs monotonic per-month invoice numbering.
type InvoiceSequence struct {
	Period    string    `gorm:"column:period;primaryKey"`
	NextValue int64     `gorm:"column:next_value;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
