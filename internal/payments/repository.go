package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Repository wires payment-intent persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new intent row.
func (r *Repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

// FindByID loads one intent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// LockByGatewayOrderID loads the intent under FOR UPDATE. Capture and
// failure transitions must hold this lock.
func (r *Repository) LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error) {
	tx := r.db.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var intent models.PaymentIntent
	if err := tx.First(&intent, "gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindLiveByOrder returns the live intent for an order, if any.
func (r *Repository) FindLiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		First(&intent, "order_id = ? AND live = ?", orderID, true).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// Save persists the whole intent row.
func (r *Repository) Save(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Save(intent).Error
}

// MarkDead clears the live flag so a replacement intent can be created.
func (r *Repository) MarkDead(ctx context.Context, intentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Update("live", false).Error
}

// UpdateStatus moves the intent status and records gateway identifiers.
func (r *Repository) UpdateStatus(ctx context.Context, intentID uuid.UUID, status enums.IntentStatus, fields map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range fields {
		updates[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Updates(updates).Error
}
