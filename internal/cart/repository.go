package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Repository wires cart-line persistence helpers.
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

// FindLine loads one cart line by id, scoped to its owner.
func (r *Repository) FindLine(ctx context.Context, lineID, userID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		First(&line, "id = ? AND user_id = ?", lineID, userID).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// FindOpenLine returns the unpurchased, unfrozen line for (user, product).
func (r *Repository) FindOpenLine(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		First(&line, "user_id = ? AND product_id = ? AND purchased = ? AND order_id IS NULL", userID, productID, false).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// ListOpenLines returns the user's unfrozen lines of one kind with products
// preloaded, oldest first.
func (r *Repository) ListOpenLines(ctx context.Context, userID uuid.UUID, kind enums.OrderKind) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND kind = ? AND purchased = ? AND order_id IS NULL", userID, kind, false).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// Create inserts a new line.
func (r *Repository) Create(ctx context.Context, line *models.CartLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateQuantity persists a new quantity on an existing line.
func (r *Repository) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// Delete removes a line.
func (r *Repository) Delete(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartLine{}, "id = ?", lineID).Error
}
