package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
)

// Service exposes catalog read paths used outside of transactions.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListExpiring(ctx context.Context, withinDays int) ([]ExpiringProduct, error)
}

// ExpiringProduct is one row of the staff expiring-stock report.
type ExpiringProduct struct {
	ProductID    uuid.UUID `json:"product_id"`
	Name         string    `json:"name"`
	ExpiryDate   time.Time `json:"expiry_date"`
	DaysLeft     int       `json:"days_left"`
	AvailableQty int       `json:"available_qty"`
	ReservedQty  int       `json:"reserved_qty"`
}

type service struct {
	repo              *Repository
	defaultWindowDays int
}

// NewService wires the catalog service.
func NewService(repo *Repository, defaultWindowDays int) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if defaultWindowDays <= 0 {
		defaultWindowDays = 90
	}
	return &service{repo: repo, defaultWindowDays: defaultWindowDays}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
	}
	return product, nil
}

func (s *service) ListExpiring(ctx context.Context, withinDays int) ([]ExpiringProduct, error) {
	if withinDays <= 0 {
		withinDays = s.defaultWindowDays
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, withinDays)

	rows, err := s.repo.ListExpiring(ctx, horizon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing expiring products")
	}

	report := make([]ExpiringProduct, 0, len(rows))
	for _, row := range rows {
		if row.ExpiryDate == nil {
			continue
		}
		report = append(report, ExpiringProduct{
			ProductID:    row.ID,
			Name:         row.Name,
			ExpiryDate:   *row.ExpiryDate,
			DaysLeft:     int(row.ExpiryDate.Sub(today).Hours() / 24),
			AvailableQty: row.AvailableQty,
			ReservedQty:  row.ReservedQty,
		})
	}
	return report, nil
}
