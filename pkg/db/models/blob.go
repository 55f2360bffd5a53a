package models

import (
	"time"

	"github.com/google/uuid"
)

// Blob stores binary artifacts (generated invoice PDFs, prescription images)
// keyed by an object-store-style path.
type Blob struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Path        string    `gorm:"column:path;not null;uniqueIndex"`
	ContentType string    `gorm:"column:content_type;not null"`
	Data        []byte    `gorm:"column:data;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
