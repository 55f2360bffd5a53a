package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

// StockRequest asks for qty units of one product.
type StockRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// StockShortage describes one product that could not satisfy a reservation.
type StockShortage struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
	Reason      string    `json:"reason"`
}

const (
	shortageReasonInsufficient = "insufficient_stock"
	shortageReasonExpired      = "product_expired"
	shortageReasonMissing      = "product_missing"
)

// Reserve moves qty units from available to reserved for every request, all
// or nothing. Callers must already be inside a transaction; rows are locked
// in ascending product-id order. Requests for the same product are merged
// before validation.
func Reserve(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	requests, products, err := lockAndIndex(ctx, tx, requests)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var shortages []StockShortage
	for _, req := range requests {
		product, ok := products[req.ProductID]
		if !ok {
			shortages = append(shortages, StockShortage{ProductID: req.ProductID, Requested: req.Qty, Reason: shortageReasonMissing})
			continue
		}
		if product.IsExpired(now) {
			shortages = append(shortages, StockShortage{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   req.Qty,
				Available:   product.AvailableQty,
				Reason:      shortageReasonExpired,
			})
			continue
		}
		if product.AvailableQty < req.Qty {
			shortages = append(shortages, StockShortage{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   req.Qty,
				Available:   product.AvailableQty,
				Reason:      shortageReasonInsufficient,
			})
		}
	}
	if len(shortages) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "stock reservation failed").
			WithDetails(map[string]any{"shortages": shortages})
	}

	repo := NewRepository(tx)
	for _, req := range requests {
		product := products[req.ProductID]
		product.AvailableQty -= req.Qty
		product.ReservedQty += req.Qty
		if err := repo.UpdateCounts(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting reservation")
		}
	}
	return nil
}

// CommitReservation finalizes reserved units as sold. Reserved counts must
// cover every request.
func CommitReservation(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	requests, products, err := lockAndIndex(ctx, tx, requests)
	if err != nil {
		return err
	}

	for _, req := range requests {
		product, ok := products[req.ProductID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("product %s missing during commit", req.ProductID))
		}
		if product.ReservedQty < req.Qty {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("product %s has %d reserved, commit wants %d", product.ID, product.ReservedQty, req.Qty))
		}
	}

	repo := NewRepository(tx)
	for _, req := range requests {
		product := products[req.ProductID]
		product.ReservedQty -= req.Qty
		if err := repo.UpdateCounts(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting stock commit")
		}
	}
	return nil
}

// ReleaseReservation returns reserved units to available. A release larger
// than the reserved count is clamped and logged as a consistency warning.
func ReleaseReservation(ctx context.Context, tx *gorm.DB, requests []StockRequest, logg *logger.Logger) error {
	requests, products, err := lockAndIndex(ctx, tx, requests)
	if err != nil {
		return err
	}

	repo := NewRepository(tx)
	for _, req := range requests {
		product, ok := products[req.ProductID]
		if !ok {
			continue
		}
		qty := req.Qty
		if qty > product.ReservedQty {
			if logg != nil {
				wctx := logg.WithFields(ctx, map[string]any{
					"product_id": product.ID.String(),
					"reserved":   product.ReservedQty,
					"release":    qty,
				})
				logg.Warn(wctx, "release exceeds reserved count, clamping")
			}
			qty = product.ReservedQty
		}
		product.ReservedQty -= qty
		product.AvailableQty += qty
		if err := repo.UpdateCounts(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting stock release")
		}
	}
	return nil
}

// RestoreSold puts already-committed units straight back into available. Used
// when a captured order is cancelled after its stock commit.
func RestoreSold(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	requests, products, err := lockAndIndex(ctx, tx, requests)
	if err != nil {
		return err
	}

	repo := NewRepository(tx)
	for _, req := range requests {
		product, ok := products[req.ProductID]
		if !ok {
			continue
		}
		product.AvailableQty += req.Qty
		if err := repo.UpdateCounts(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting stock restore")
		}
	}
	return nil
}

// lockAndIndex merges duplicate product requests, locks the rows, and
// returns the merged request list alongside the locked products by id.
func lockAndIndex(ctx context.Context, tx *gorm.DB, requests []StockRequest) ([]StockRequest, map[uuid.UUID]*models.Product, error) {
	if len(requests) == 0 {
		return nil, map[uuid.UUID]*models.Product{}, nil
	}
	totals := map[uuid.UUID]int{}
	order := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity must be positive")
		}
		if _, seen := totals[req.ProductID]; !seen {
			order = append(order, req.ProductID)
		}
		totals[req.ProductID] += req.Qty
	}

	merged := make([]StockRequest, 0, len(order))
	for _, id := range order {
		merged = append(merged, StockRequest{ProductID: id, Qty: totals[id]})
	}

	rows, err := NewRepository(tx).LockByIDs(ctx, order)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking products")
	}

	products := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return merged, products, nil
}
