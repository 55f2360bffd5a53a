package prescriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Repository wires prescription-upload persistence helpers.
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

// Create inserts the upload row.
func (r *Repository) Create(ctx context.Context, upload *models.PrescriptionUpload) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(upload).Error
}

// FindByID loads one upload with its attached medicines and products.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PrescriptionUpload, error) {
	var upload models.PrescriptionUpload
	err := r.db.WithContext(ctx).
		Preload("Medicines").
		Preload("Medicines.Product").
		First(&upload, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// LockByID loads an upload under FOR UPDATE so concurrent reviews or
// checkouts serialize on the row.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PrescriptionUpload, error) {
	tx := r.db.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var upload models.PrescriptionUpload
	if err := tx.First(&upload, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// LoadMedicines returns the attached medicines with their products.
func (r *Repository) LoadMedicines(ctx context.Context, uploadID uuid.UUID) ([]models.PrescriptionMedicine, error) {
	var rows []models.PrescriptionMedicine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("prescription_id = ?", uploadID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUser returns a user's uploads newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PrescriptionUpload, error) {
	var rows []models.PrescriptionUpload
	err := r.db.WithContext(ctx).
		Preload("Medicines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPending returns uploads awaiting pharmacist review, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]models.PrescriptionUpload, error) {
	var rows []models.PrescriptionUpload
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PrescriptionStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Save persists the full upload row.
func (r *Repository) Save(ctx context.Context, upload *models.PrescriptionUpload) error {
	return r.db.WithContext(ctx).Save(upload).Error
}

// ReplaceMedicines swaps the attached medicine set.
func (r *Repository) ReplaceMedicines(ctx context.Context, uploadID uuid.UUID, medicines []models.PrescriptionMedicine) error {
	if err := r.db.WithContext(ctx).
		Where("prescription_id = ?", uploadID).
		Delete(&models.PrescriptionMedicine{}).Error; err != nil {
		return err
	}
	for i := range medicines {
		if medicines[i].ID == uuid.Nil {
			medicines[i].ID = uuid.New()
		}
		medicines[i].PrescriptionID = uploadID
	}
	if len(medicines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&medicines).Error
}

// CreateBlob stores the uploaded prescription image.
func (r *Repository) CreateBlob(ctx context.Context, blob *models.Blob) error {
	if blob.ID == uuid.Nil {
		blob.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(blob).Error
}

// FindBlob loads a stored image.
func (r *Repository) FindBlob(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	var blob models.Blob
	if err := r.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &blob, nil
}
