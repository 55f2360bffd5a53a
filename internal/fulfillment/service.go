package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/types"
)

// Actor identifies the staff member driving a transition.
type Actor struct {
	StaffID uuid.UUID
	Role    enums.ActorRole
}

// Notifier emits best-effort status emails. Failures never block the
// transition.
type Notifier interface {
	NotifyOrderTransition(ctx context.Context, order *models.Order, from, to, note string)
}

// Service drives orders through their kind-specific lifecycle.
type Service interface {
	// Transition moves an order to the target status, appending an audit
	// entry. Cancelling returns stock to the shelf.
	Transition(ctx context.Context, orderID uuid.UUID, to string, actor Actor, note string) (*models.Order, error)
	// CollectCOD records cash received at handover and advances the order
	// to its handover status in the same transaction.
	CollectCOD(ctx context.Context, orderID uuid.UUID, actor Actor, amountPaise int64, note string) (*models.Order, error)
}

type service struct {
	client    *db.Client
	orderRepo *orders.Repository
	policies  *orders.Policies
	payments  payments.Service
	notifier  Notifier
	logger    *logger.Logger
}

// NewService wires the fulfillment machine. Notifier may be nil.
func NewService(
	client *db.Client,
	orderRepo *orders.Repository,
	policies *orders.Policies,
	paymentsSvc payments.Service,
	notifier Notifier,
	logg *logger.Logger,
) (Service, error) {
	if client == nil || orderRepo == nil || policies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment persistence dependencies required")
	}
	if paymentsSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment payments service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment logger required")
	}
	return &service{
		client:    client,
		orderRepo: orderRepo,
		policies:  policies,
		payments:  paymentsSvc,
		notifier:  notifier,
		logger:    logg,
	}, nil
}

func (s *service) Transition(ctx context.Context, orderID uuid.UUID, to string, actor Actor, note string) (*models.Order, error) {
	var (
		order *models.Order
		from  string
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockForActor(ctx, tx, orderID, actor)
		if err != nil {
			return err
		}
		order = locked
		from = currentStatus(order)

		if err := s.applyTransition(ctx, tx, order, from, to, actor, note); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, order, from, to, note, actor)
	return order, nil
}

func (s *service) CollectCOD(ctx context.Context, orderID uuid.UUID, actor Actor, amountPaise int64, note string) (*models.Order, error) {
	var (
		order *models.Order
		from  string
		to    string
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockForActor(ctx, tx, orderID, actor)
		if err != nil {
			return err
		}
		order = locked

		if _, err := s.payments.RecordCODCapture(ctx, tx, order, amountPaise); err != nil {
			return err
		}

		from = currentStatus(order)
		to = handoverStatus(order.Kind)
		if note == "" {
			note = "cash collected"
		}
		return s.applyTransition(ctx, tx, order, from, to, actor, note)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, order, from, to, note, actor)
	return order, nil
}

// applyTransition validates the move, mutates the order, and appends the
// audit entry. Runs under the order row lock.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, from, to string, actor Actor, note string) error {
	capability := s.policies.For(order.Kind)

	cancelTarget := cancelStatusFor(order.Kind)
	if to != cancelTarget && !settled(order) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not settled")
	}
	if to == enums.OrderStatusOutForDelivery.String() && order.DeliveryMethod != enums.DeliveryMethodHomeDelivery {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only home-delivery orders go out for delivery")
	}

	if !transitionAllowed(capability.Transitions, from, to) {
		if capability.TerminalStates[from] {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s and accepts no further transitions", from))
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", from, to))
	}

	if to == cancelTarget {
		if err := s.returnStock(ctx, tx, order); err != nil {
			return err
		}
	}

	setStatus(order, to)
	order.AuditLog = order.AuditLog.Append(types.AuditEntry{
		StaffID: actor.StaffID,
		Role:    actor.Role.String(),
		From:    from,
		To:      to,
		Note:    note,
		At:      time.Now().UTC(),
	})
	if err := s.orderRepo.WithTx(tx).Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order transition")
	}
	return nil
}

// returnStock puts a cancelled order's units back on the shelf. Committed
// stock is restored to available; mere reservations are released.
func (s *service) returnStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	lines, err := s.orderRepo.WithTx(tx).LoadLines(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order lines")
	}
	requests := make([]catalog.StockRequest, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, catalog.StockRequest{ProductID: line.ProductID, Qty: line.Quantity})
	}
	if order.Ordered {
		if err := catalog.RestoreSold(ctx, tx, requests); err != nil {
			return err
		}
	} else {
		if err := catalog.ReleaseReservation(ctx, tx, requests, s.logger); err != nil {
			return err
		}
	}
	if order.PaymentStatus == enums.PaymentStatusCODPending {
		order.PaymentStatus = enums.PaymentStatusCancelled
	}
	// both machines land on cancelled regardless of kind
	order.OrderStatus = enums.OrderStatusCancelled
	order.CollectionStatus = enums.CollectionStatusCancelled
	return nil
}

func (s *service) lockForActor(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking order")
	}

	capability := s.policies.For(order.Kind)
	if actor.Role != capability.AllowedRole && actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden,
			fmt.Sprintf("%s orders are handled by %s", order.Kind, capability.AllowedRole))
	}
	return order, nil
}

func (s *service) afterTransition(ctx context.Context, order *models.Order, from, to, note string, actor Actor) {
	lctx := s.logger.WithFields(s.logger.WithActorRole(ctx, actor.Role.String()), map[string]any{
		"order_id": order.ID.String(),
		"from":     from,
		"to":       to,
	})
	s.logger.Info(lctx, "order transitioned")
	if s.notifier != nil {
		s.notifier.NotifyOrderTransition(ctx, order, from, to, note)
	}
}

func currentStatus(order *models.Order) string {
	if order.Kind == enums.OrderKindTest {
		return order.CollectionStatus.String()
	}
	return order.OrderStatus.String()
}

func setStatus(order *models.Order, to string) {
	if order.Kind == enums.OrderKindTest {
		order.CollectionStatus = enums.CollectionStatus(to)
		return
	}
	order.OrderStatus = enums.OrderStatus(to)
}

func cancelStatusFor(kind enums.OrderKind) string {
	if kind == enums.OrderKindTest {
		return enums.CollectionStatusCancelled.String()
	}
	return enums.OrderStatusCancelled.String()
}

func handoverStatus(kind enums.OrderKind) string {
	if kind == enums.OrderKindTest {
		return enums.CollectionStatusCollected.String()
	}
	return enums.OrderStatusDelivered.String()
}

func settled(order *models.Order) bool {
	return order.PaymentStatus == enums.PaymentStatusPaid ||
		order.PaymentStatus == enums.PaymentStatusCODPending
}

func transitionAllowed(table map[string][]string, from, to string) bool {
	for _, candidate := range table[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
