package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
)

const (
	// EventCaptured and EventFailed are the webhook event names.
	EventCaptured = "payment.captured"
	EventFailed   = "payment.failed"

	codSignature = "COD"
)

// Confirm verifies the browser-returned signature and applies the capture.
// A bad signature fails the intent and leaves the order retryable.
func (s *service) Confirm(ctx context.Context, params ConfirmParams) (*models.PaymentIntent, error) {
	if params.GatewayOrderID == "" || params.GatewayPaymentID == "" || params.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id, and signature required")
	}

	if !s.gateway.VerifyPaymentSignature(params.GatewayOrderID, params.GatewayPaymentID, params.Signature) {
		s.failIntent(ctx, params.GatewayOrderID, params.GatewayPaymentID, "signature_mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment signature verification failed")
	}

	return s.capture(ctx, params.GatewayOrderID, params.GatewayPaymentID, &params.Signature)
}

// ApplyGatewayEvent applies a webhook notification. The transition logic is
// shared with the browser confirm path, so replays and races settle
// identically whichever side lands first.
func (s *service) ApplyGatewayEvent(ctx context.Context, event string, gatewayOrderID, gatewayPaymentID string) error {
	switch event {
	case EventCaptured:
		_, err := s.capture(ctx, gatewayOrderID, gatewayPaymentID, nil)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				s.logger.Warn(s.logger.WithField(ctx, "gateway_order_id", gatewayOrderID), "webhook for unknown gateway order, ignoring")
				return nil
			}
		}
		return err

	case EventFailed:
		s.failIntent(ctx, gatewayOrderID, gatewayPaymentID, "gateway_reported_failure")
		return nil

	default:
		s.logger.Warn(s.logger.WithField(ctx, "event", event), "unhandled gateway event, ignoring")
		return nil
	}
}

// capture is the single transition point for both confirm paths. The intent
// row lock serializes concurrent browser+webhook attempts; the second caller
// observes the captured state and no-ops.
func (s *service) capture(ctx context.Context, gatewayOrderID, gatewayPaymentID string, signature *string) (*models.PaymentIntent, error) {
	var (
		intent  *models.PaymentIntent
		applied bool
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking payment intent")
		}
		intent = locked

		if intent.Status == enums.IntentStatusCaptured {
			return nil // idempotent replay
		}
		if !intent.Status.CanTransitionTo(enums.IntentStatusCaptured) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment intent is %s and cannot capture", intent.Status))
		}

		fields := map[string]any{"gateway_payment_id": gatewayPaymentID}
		if signature != nil {
			fields["signature"] = *signature
		}
		if err := repo.UpdateStatus(ctx, intent.ID, enums.IntentStatusCaptured, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capturing payment intent")
		}
		intent.Status = enums.IntentStatusCaptured
		intent.GatewayPaymentID = &gatewayPaymentID
		intent.Signature = signature

		if intent.OrderID != nil {
			if err := s.settleOrder(ctx, tx, intent); err != nil {
				return err
			}
		}

		if _, err := s.invoices.GenerateForIntent(ctx, tx, intent.ID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return intent, nil
	}

	lctx := s.logger.WithPaymentIntentID(ctx, intent.ID.String())
	s.logger.Info(lctx, "payment captured")
	s.metrics.IncCapture(intent.Kind.String(), "online")

	if s.notifier != nil && intent.OrderID != nil {
		if order, err := s.orderRepo.FindByID(ctx, *intent.OrderID); err == nil {
			s.notifier.NotifyPaymentCaptured(ctx, order, intent)
		}
	}
	return intent, nil
}

// settleOrder commits stock, flips the cart lines, and moves the order into
// its paid/confirmed state. Runs inside the capture transaction.
func (s *service) settleOrder(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent) error {
	orderRepo := s.orderRepo.WithTx(tx)
	order, err := orderRepo.LockByID(ctx, *intent.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking order")
	}

	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil // the other confirm path already settled
	}

	lines, err := orderRepo.LoadLines(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order lines")
	}

	// COD conversions already committed stock at freeze
	if order.PaymentStatus != enums.PaymentStatusCODPending {
		if err := catalog.CommitReservation(ctx, tx, stockRequests(lines)); err != nil {
			return err
		}
	}

	if err := orderRepo.MarkLinesPurchased(ctx, order.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking lines purchased")
	}
	if order.Kind == enums.OrderKindTest {
		if err := orderRepo.MarkTestLinesPaid(ctx, order.ID, enums.TestPayStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking test lines paid")
		}
	}

	fields := map[string]any{
		"ordered":        true,
		"payment_status": enums.PaymentStatusPaid,
	}
	if order.Kind != enums.OrderKindTest && order.OrderStatus == enums.OrderStatusPending {
		fields["order_status"] = enums.OrderStatusConfirmed
	}
	if err := orderRepo.UpdateFields(ctx, order.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settling order")
	}
	return nil
}

// failIntent moves an intent to failed and releases the live slot so the
// order can retry. Reservations stay put.
func (s *service) failIntent(ctx context.Context, gatewayOrderID, gatewayPaymentID, reason string) {
	var (
		intent  *models.PaymentIntent
		applied bool
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // unknown order id: log-and-ignore
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking payment intent")
		}
		intent = locked

		if intent.Status.IsTerminal() {
			return nil // idempotent replay, including captured-then-failed races
		}

		fields := map[string]any{"live": false}
		if gatewayPaymentID != "" {
			fields["gateway_payment_id"] = gatewayPaymentID
		}
		if err := repo.UpdateStatus(ctx, intent.ID, enums.IntentStatusFailed, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failing payment intent")
		}
		intent.Status = enums.IntentStatusFailed

		if intent.OrderID != nil {
			if err := s.orderRepo.WithTx(tx).UpdateFields(ctx, *intent.OrderID, map[string]any{
				"payment_status": enums.PaymentStatusFailed,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking order payment failed")
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "failed to record payment failure", err)
		return
	}
	if intent == nil || !applied {
		return
	}

	lctx := s.logger.WithFields(ctx, map[string]any{
		"payment_intent_id": intent.ID.String(),
		"reason":            reason,
	})
	s.logger.Warn(lctx, "payment intent failed")
	s.metrics.IncFailure(intent.Kind.String(), reason)

	if s.notifier != nil && intent.OrderID != nil {
		if order, err := s.orderRepo.FindByID(ctx, *intent.OrderID); err == nil {
			s.notifier.NotifyPaymentFailed(ctx, order, intent)
		}
	}
}

// RecordCODCapture books the pseudo intent for staff-collected cash and
// invoices it. Must run inside the caller's transaction, which also holds
// the order lock.
func (s *service) RecordCODCapture(ctx context.Context, tx *gorm.DB, order *models.Order, amountPaise int64) (*models.PaymentIntent, error) {
	if order == nil || tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and transaction required")
	}
	if order.PaymentStatus != enums.PaymentStatusCODPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order payment is %s, not awaiting cash collection", order.PaymentStatus))
	}
	if amountPaise != order.TotalPaise {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("collected amount %d does not match order total %d", amountPaise, order.TotalPaise)).
			WithDetails(map[string]any{"expected_paise": order.TotalPaise, "received_paise": amountPaise})
	}

	repo := s.repo.WithTx(tx)
	orderRepo := s.orderRepo.WithTx(tx)

	pseudoID := fmt.Sprintf("COD-%s-%d", order.ID, time.Now().Unix())
	sig := codSignature
	intent := &models.PaymentIntent{
		OrderID:          &order.ID,
		GatewayOrderID:   pseudoID,
		GatewayPaymentID: &pseudoID,
		Signature:        &sig,
		AmountPaise:      amountPaise,
		Currency:         "INR",
		Status:           enums.IntentStatusCaptured,
		Kind:             order.Kind.PaymentKind(),
		Live:             true,
		CustomerName:     "COD Customer",
		CustomerEmail:    "",
		ReceiptID:        pseudoID,
		Notes:            map[string]string{"order_id": order.ID.String(), "method": "cod"},
	}
	if order.DeliveryPhone != nil {
		intent.CustomerPhone = order.DeliveryPhone
	}
	if order.DeliveryAddress != nil {
		intent.CustomerAddress = order.DeliveryAddress
	}
	if err := repo.Create(ctx, intent); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cash collection already recorded for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording cod capture")
	}

	if err := orderRepo.MarkLinesPurchased(ctx, order.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking lines purchased")
	}
	if order.Kind == enums.OrderKindTest {
		if err := orderRepo.MarkTestLinesPaid(ctx, order.ID, enums.TestPayStatusPaid); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking test lines paid")
		}
	}
	if err := orderRepo.UpdateFields(ctx, order.ID, map[string]any{
		"payment_status": enums.PaymentStatusPaid,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settling cod order")
	}
	order.PaymentStatus = enums.PaymentStatusPaid

	if _, err := s.invoices.GenerateForIntent(ctx, tx, intent.ID); err != nil {
		return nil, err
	}

	s.metrics.IncCapture(intent.Kind.String(), "cod")
	return intent, nil
}
