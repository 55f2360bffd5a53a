package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
)

// Retry clears a failed attempt so the order can open a fresh gateway
// widget. Reservations are untouched.
func (s *service) Retry(ctx context.Context, orderID, userID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockUnpaidOrder(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusFailed && order.PaymentStatus != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order payment is %s, nothing to retry", order.PaymentStatus))
		}

		if err := s.retireLiveIntent(ctx, tx, orderID); err != nil {
			return err
		}

		if err := s.orderRepo.WithTx(tx).UpdateFields(ctx, orderID, map[string]any{
			"payment_status": enums.PaymentStatusPending,
			"ordered":        false,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resetting order for retry")
		}

		s.logger.Info(s.logger.WithOrderID(ctx, orderID.String()), "order reset for payment retry")
		return nil
	})
}

// ConvertToCOD flips an unpaid online order to cash on delivery. Stock is
// committed now; cash settles at handover via RecordCODCapture.
func (s *service) ConvertToCOD(ctx context.Context, orderID, userID uuid.UUID) error {
	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockUnpaidOrder(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		order = locked

		if err := s.retireLiveIntent(ctx, tx, orderID); err != nil {
			return err
		}

		orderRepo := s.orderRepo.WithTx(tx)
		lines, err := orderRepo.LoadLines(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order lines")
		}
		if err := catalog.CommitReservation(ctx, tx, stockRequests(lines)); err != nil {
			return err
		}

		fields := map[string]any{
			"payment_status": enums.PaymentStatusCODPending,
			"ordered":        true,
		}
		if order.Kind != enums.OrderKindTest && order.OrderStatus == enums.OrderStatusPending {
			fields["order_status"] = enums.OrderStatusConfirmed
		}
		if err := orderRepo.UpdateFields(ctx, orderID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "converting order to cod")
		}
		if order.Kind == enums.OrderKindTest {
			if err := orderRepo.MarkTestLinesPaid(ctx, orderID, enums.TestPayStatusCODPending); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking test lines cod pending")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(s.logger.WithOrderID(ctx, orderID.String()), "order converted to cash on delivery")
	return nil
}

// Cancel abandons an unpaid order: the live intent dies, reservations go
// back to the shelf, and both state machines land on cancelled.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockUnpaidOrder(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}

		if err := s.retireLiveIntent(ctx, tx, orderID); err != nil {
			return err
		}

		orderRepo := s.orderRepo.WithTx(tx)
		lines, err := orderRepo.LoadLines(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order lines")
		}
		if order.Ordered {
			// cod_pending orders committed stock at freeze
			if err := catalog.RestoreSold(ctx, tx, stockRequests(lines)); err != nil {
				return err
			}
		} else {
			if err := catalog.ReleaseReservation(ctx, tx, stockRequests(lines), s.logger); err != nil {
				return err
			}
		}

		if err := orderRepo.UpdateFields(ctx, orderID, map[string]any{
			"order_status":      enums.OrderStatusCancelled,
			"collection_status": enums.CollectionStatusCancelled,
			"payment_status":    enums.PaymentStatusCancelled,
			"ordered":           false,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling order")
		}

		s.logger.Info(s.logger.WithOrderID(ctx, orderID.String()), "unpaid order cancelled")
		return nil
	})
}

// lockUnpaidOrder locks the order and rejects paid ones. Recovery actions
// only apply before money has settled.
func (s *service) lockUnpaidOrder(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking order")
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.OrderStatus == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	return order, nil
}

// retireLiveIntent kills the live created/failed intent so the partial
// unique index admits a successor. Captured intents block recovery.
func (s *service) retireLiveIntent(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	intent, err := repo.FindLiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading live payment intent")
	}
	if intent.Status == enums.IntentStatusCaptured {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has a captured payment")
	}
	if err := repo.MarkDead(ctx, intent.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retiring payment intent")
	}
	return nil
}

func stockRequests(lines []models.CartLine) []catalog.StockRequest {
	requests := make([]catalog.StockRequest, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, catalog.StockRequest{ProductID: line.ProductID, Qty: line.Quantity})
	}
	return requests
}
