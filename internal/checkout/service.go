package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/cart"
	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

// PaymentMethod selects how a frozen order will be paid.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

// FreezeParams carries the checkout form.
type FreezeParams struct {
	UserID         uuid.UUID
	Kind           enums.OrderKind
	DeliveryMethod enums.DeliveryMethod
	Address        string
	Phone          string
	PaymentMethod  PaymentMethod
	CollectionDate *time.Time
	CollectionTime string
}

// CODNotifier tells staff a cash order needs handling. Best effort.
type CODNotifier interface {
	NotifyStaffCOD(ctx context.Context, order *models.Order)
}

// Service freezes carts into orders.
type Service interface {
	Freeze(ctx context.Context, params FreezeParams) (*models.Order, error)
}

type service struct {
	client      *db.Client
	cartRepo    *cart.Repository
	orderRepo   *orders.Repository
	policies    *orders.Policies
	logger      *logger.Logger
	codNotifier CODNotifier
}

// NewService wires checkout dependencies. The notifier may be nil.
func NewService(client *db.Client, cartRepo *cart.Repository, orderRepo *orders.Repository, policies *orders.Policies, logg *logger.Logger, codNotifier CODNotifier) (Service, error) {
	if client == nil || cartRepo == nil || orderRepo == nil || policies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout dependencies required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout logger required")
	}
	return &service{
		client:      client,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		policies:    policies,
		logger:      logg,
		codNotifier: codNotifier,
	}, nil
}

// Freeze snapshots the user's open cart lines of the requested kind into an
// immutable order, reserving stock in the same transaction. COD orders commit
// stock immediately and confirm; online orders wait for capture.
func (s *service) Freeze(ctx context.Context, params FreezeParams) (*models.Order, error) {
	if err := s.validate(&params); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		lines, err := cartRepo.ListOpenLines(ctx, params.UserID, params.Kind)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart lines")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		requests := make([]catalog.StockRequest, 0, len(lines))
		for _, line := range lines {
			requests = append(requests, catalog.StockRequest{ProductID: line.ProductID, Qty: line.Quantity})
		}
		if err := catalog.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		// snapshot prices after the reservation locked the rows
		var subtotal int64
		for i := range lines {
			if lines[i].Product == nil {
				return pkgerrors.New(pkgerrors.CodeDependency, "cart line missing product")
			}
			lines[i].UnitPricePaise = lines[i].Product.PricePaise
			subtotal += lines[i].LineTotalPaise()
		}

		capability := s.policies.For(params.Kind)
		tax := orders.Tax(subtotal, capability.TaxPercent)
		fee := capability.DeliveryFee(params.DeliveryMethod)

		order = &models.Order{
			UserID:           params.UserID,
			Kind:             params.Kind,
			DeliveryMethod:   params.DeliveryMethod,
			OrderStatus:      enums.OrderStatusPending,
			CollectionStatus: enums.CollectionStatusPending,
			PaymentStatus:    enums.PaymentStatusPending,
			SubtotalPaise:    subtotal,
			TaxPaise:         tax,
			DeliveryFeePaise: fee,
			TotalPaise:       subtotal + tax + fee,
			CollectionDate:   params.CollectionDate,
		}
		if params.Address != "" {
			order.DeliveryAddress = &params.Address
		}
		if params.Phone != "" {
			order.DeliveryPhone = &params.Phone
		}
		if params.CollectionTime != "" {
			order.CollectionTime = &params.CollectionTime
		}
		if params.Kind == enums.OrderKindTest && params.DeliveryMethod == enums.DeliveryMethodHomeCollection {
			order.CollectionStatus = enums.CollectionStatusScheduled
		}

		if params.PaymentMethod == PaymentMethodCOD {
			// the buyer has committed; decrement stock now
			if err := catalog.CommitReservation(ctx, tx, requests); err != nil {
				return err
			}
			order.Ordered = true
			order.PaymentStatus = enums.PaymentStatusCODPending
			if params.Kind != enums.OrderKindTest {
				order.OrderStatus = enums.OrderStatusConfirmed
			}
		}

		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		for i := range lines {
			err := tx.WithContext(ctx).
				Model(&models.CartLine{}).
				Where("id = ?", lines[i].ID).
				Updates(map[string]any{
					"order_id":         order.ID,
					"unit_price_paise": lines[i].UnitPricePaise,
				}).Error
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freezing cart line")
			}
			lines[i].OrderID = &order.ID
		}
		order.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}

	lctx := s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(lctx, "order frozen")

	if params.PaymentMethod == PaymentMethodCOD && s.codNotifier != nil {
		s.codNotifier.NotifyStaffCOD(ctx, order)
	}
	return order, nil
}

func (s *service) validate(params *FreezeParams) error {
	if params.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !params.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind")
	}
	if !params.DeliveryMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if params.PaymentMethod != PaymentMethodOnline && params.PaymentMethod != PaymentMethodCOD {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method must be online or cod")
	}
	if params.DeliveryMethod.RequiresAddress() {
		if strings.TrimSpace(params.Address) == "" || strings.TrimSpace(params.Phone) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "address and phone required for home delivery")
		}
	}
	if params.Kind == enums.OrderKindTest && params.DeliveryMethod == enums.DeliveryMethodHomeCollection {
		if params.CollectionDate == nil || strings.TrimSpace(params.CollectionTime) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "collection date and time required for home collection")
		}
	}
	return nil
}
