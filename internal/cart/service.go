package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
)

// Service defines cart mutation and read operations.
type Service interface {
	Add(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartLine, error)
	Increment(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error)
	// Decrement lowers quantity by one; at quantity one the line is removed
	// and nil is returned.
	Decrement(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error)
	Remove(ctx context.Context, userID, lineID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, kind enums.OrderKind) (*Summary, error)
}

// Summary is a cart read with live-price line totals. These are advisory;
// freeze snapshots the prices that actually bind.
type Summary struct {
	Kind          enums.OrderKind   `json:"kind"`
	Lines         []models.CartLine `json:"lines"`
	SubtotalPaise int64             `json:"subtotal_paise"`
}

type service struct {
	client  *db.Client
	repo    *Repository
	catalog *catalog.Repository
}

// NewService wires cart dependencies.
func NewService(client *db.Client, repo *Repository, catalogRepo *catalog.Repository) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if repo == nil || catalogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repositories required")
	}
	return &service{client: client, repo: repo, catalog: catalogRepo}, nil
}

func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartLine, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and product ids required")
	}
	if qty <= 0 {
		qty = 1
	}

	var line *models.CartLine
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products, err := s.catalog.WithTx(tx).LockByIDs(ctx, []uuid.UUID{productID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking product")
		}
		if len(products) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		product := &products[0]
		if product.IsExpired(time.Now().UTC()) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is past its expiry date", product.Name))
		}

		existing, err := repo.FindOpenLine(ctx, userID, productID)
		switch {
		case err == nil:
			newQty := existing.Quantity + qty
			if err := checkAvailability(product, newQty); err != nil {
				return err
			}
			if err := repo.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating cart line")
			}
			existing.Quantity = newQty
			line = existing
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := checkAvailability(product, qty); err != nil {
				return err
			}
			fresh := &models.CartLine{
				UserID:    userID,
				ProductID: productID,
				Kind:      orderKindFor(product.Kind),
				Quantity:  qty,
				PayStatus: enums.TestPayStatusUnpaid,
			}
			if err := repo.Create(ctx, fresh); err != nil {
				if db.IsUniqueViolation(err) {
					// lost the insert race; the winner's line absorbs the qty
					return pkgerrors.New(pkgerrors.CodeConflict, "cart updated concurrently, retry")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating cart line")
			}
			line = fresh
			return nil

		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart line")
		}
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) Increment(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error) {
	var line *models.CartLine
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := s.loadOpenLine(ctx, repo, lineID, userID)
		if err != nil {
			return err
		}
		products, err := s.catalog.WithTx(tx).LockByIDs(ctx, []uuid.UUID{existing.ProductID})
		if err != nil || len(products) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := checkAvailability(&products[0], existing.Quantity+1); err != nil {
			return err
		}
		existing.Quantity++
		if err := repo.UpdateQuantity(ctx, existing.ID, existing.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating cart line")
		}
		line = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) Decrement(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error) {
	var line *models.CartLine
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := s.loadOpenLine(ctx, repo, lineID, userID)
		if err != nil {
			return err
		}
		if existing.Quantity <= 1 {
			return repo.Delete(ctx, existing.ID)
		}
		existing.Quantity--
		if err := repo.UpdateQuantity(ctx, existing.ID, existing.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating cart line")
		}
		line = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) Remove(ctx context.Context, userID, lineID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := s.loadOpenLine(ctx, repo, lineID, userID)
		if err != nil {
			return err
		}
		return repo.Delete(ctx, existing.ID)
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID, kind enums.OrderKind) (*Summary, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart kind")
	}
	lines, err := s.repo.ListOpenLines(ctx, userID, kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing cart lines")
	}

	summary := &Summary{Kind: kind, Lines: lines}
	for _, l := range lines {
		if l.Product != nil {
			summary.SubtotalPaise += int64(l.Quantity) * l.Product.PricePaise
		}
	}
	return summary, nil
}

func (s *service) loadOpenLine(ctx context.Context, repo *Repository, lineID, userID uuid.UUID) (*models.CartLine, error) {
	existing, err := repo.FindLine(ctx, lineID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart line")
	}
	if existing.Purchased || existing.OrderID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart line is already frozen")
	}
	return existing, nil
}

func checkAvailability(product *models.Product, wanted int) error {
	if product.AvailableQty < wanted {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is out of stock", product.Name)).
			WithDetails(map[string]any{
				"product_id": product.ID,
				"available":  product.AvailableQty,
				"requested":  wanted,
			})
	}
	return nil
}

func orderKindFor(kind enums.ProductKind) enums.OrderKind {
	if kind == enums.ProductKindTest {
		return enums.OrderKindTest
	}
	return enums.OrderKindPharmacy
}
