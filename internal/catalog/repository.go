package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Repository wires catalog persistence helpers.
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

// FindByID loads a product without locking.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockByIDs loads the products under FOR UPDATE in ascending id order.
// Ascending order keeps concurrent multi-product reservations deadlock-free.
func (r *Repository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	tx := r.db.WithContext(ctx)
	// sqlite serializes writers itself and rejects FOR UPDATE syntax.
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var products []models.Product
	if err := tx.Where("id IN ?", sorted).Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateCounts persists the stock counters of an already-locked product.
func (r *Repository) UpdateCounts(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"available_qty": product.AvailableQty,
			"reserved_qty":  product.ReservedQty,
		}).Error
}

// Create inserts a product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListExpiring returns medicines whose expiry falls on or before the horizon,
// soonest first.
func (r *Repository) ListExpiring(ctx context.Context, horizon time.Time) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("kind = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", enums.ProductKindMedicine, horizon).
		Order("expiry_date ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
