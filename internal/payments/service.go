package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
)

// GatewayClient is the outbound payment gateway surface used here.
type GatewayClient interface {
	CreateOrder(ctx context.Context, params gateway.OrderCreateParams) (*gateway.Order, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
	NewReceiptID() string
}

// InvoiceGenerator produces the invoice for a captured intent inside the
// capture transaction.
type InvoiceGenerator interface {
	GenerateForIntent(ctx context.Context, tx *gorm.DB, intentID uuid.UUID) (*models.Invoice, error)
}

// CaptureNotifier emits best-effort emails after payment events.
type CaptureNotifier interface {
	NotifyPaymentCaptured(ctx context.Context, order *models.Order, intent *models.PaymentIntent)
	NotifyPaymentFailed(ctx context.Context, order *models.Order, intent *models.PaymentIntent)
}

// CustomerSnapshot freezes the payer's identity onto the intent.
type CustomerSnapshot struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// WidgetDescriptor is what the browser needs to launch the gateway widget.
type WidgetDescriptor struct {
	KeyID          string `json:"key_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	AmountPaise    int64  `json:"amount_paise"`
	Currency       string `json:"currency"`
	OrderID        string `json:"order_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone,omitempty"`
}

// ConfirmParams is the browser-returned confirm payload.
type ConfirmParams struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Service orchestrates gateway payments for orders.
type Service interface {
	// CreateForOrder returns the widget descriptor for an order, creating a
	// gateway order and intent when no live intent exists yet.
	CreateForOrder(ctx context.Context, orderID, userID uuid.UUID, customer CustomerSnapshot) (*WidgetDescriptor, error)
	// Confirm applies the browser capture path.
	Confirm(ctx context.Context, params ConfirmParams) (*models.PaymentIntent, error)
	// ApplyGatewayEvent applies a webhook capture/failure idempotently.
	// Unknown gateway order ids are logged and ignored.
	ApplyGatewayEvent(ctx context.Context, event string, gatewayOrderID, gatewayPaymentID string) error
	// RecordCODCapture books a pseudo intent for cash collected by staff and
	// triggers invoicing. Runs inside the caller's transaction.
	RecordCODCapture(ctx context.Context, tx *gorm.DB, order *models.Order, amountPaise int64) (*models.PaymentIntent, error)
	// Retry resets a pending/failed order for a fresh payment attempt.
	Retry(ctx context.Context, orderID, userID uuid.UUID) error
	// ConvertToCOD flips an unpaid order to cash on delivery.
	ConvertToCOD(ctx context.Context, orderID, userID uuid.UUID) error
	// Cancel releases reservations and cancels an unpaid order.
	Cancel(ctx context.Context, orderID, userID uuid.UUID) error
}

type service struct {
	client    *db.Client
	repo      *Repository
	orderRepo *orders.Repository
	policies  *orders.Policies
	gateway   GatewayClient
	invoices  InvoiceGenerator
	notifier  CaptureNotifier
	metrics   *metrics.PaymentMetrics
	logger    *logger.Logger
}

// NewService wires payment orchestration. Notifier and metrics may be nil.
func NewService(
	client *db.Client,
	repo *Repository,
	orderRepo *orders.Repository,
	policies *orders.Policies,
	gatewayClient GatewayClient,
	invoices InvoiceGenerator,
	notifier CaptureNotifier,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if client == nil || repo == nil || orderRepo == nil || policies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments persistence dependencies required")
	}
	if gatewayClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments gateway client required")
	}
	if invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments invoice generator required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments logger required")
	}
	return &service{
		client:    client,
		repo:      repo,
		orderRepo: orderRepo,
		policies:  policies,
		gateway:   gatewayClient,
		invoices:  invoices,
		notifier:  notifier,
		metrics:   paymentMetrics,
		logger:    logg,
	}, nil
}

func (s *service) CreateForOrder(ctx context.Context, orderID, userID uuid.UUID, customer CustomerSnapshot) (*WidgetDescriptor, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if customer.Name == "" || customer.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name and email required")
	}

	order, err := s.loadOwnedOrder(ctx, s.orderRepo, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, not awaiting online payment", order.PaymentStatus))
	}

	// reuse the live intent if the user reopened the widget
	existing, err := s.repo.FindLiveByOrder(ctx, orderID)
	if err == nil && existing.Status == enums.IntentStatusCreated {
		return s.descriptor(order, existing), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment intent")
	}
	if err == nil && existing.Status != enums.IntentStatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a settled payment intent")
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.OrderCreateParams{
		AmountPaise: order.TotalPaise,
		Currency:    "INR",
		Receipt:     s.gateway.NewReceiptID(),
		Notes: map[string]string{
			"order_id": order.ID.String(),
			"kind":     order.Kind.String(),
		},
	})
	if err != nil {
		// surface the COD fallback so the UI can offer it
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUpstream {
			return nil, typed.WithDetails(map[string]any{"cod_available": true})
		}
		return nil, err
	}

	intent := &models.PaymentIntent{
		OrderID:        &order.ID,
		GatewayOrderID: gwOrder.ID,
		AmountPaise:    order.TotalPaise,
		Currency:       "INR",
		Status:         enums.IntentStatusCreated,
		Kind:           order.Kind.PaymentKind(),
		Live:           true,
		CustomerName:   customer.Name,
		CustomerEmail:  customer.Email,
		ReceiptID:      gwOrder.Receipt,
		Notes:          map[string]string{"order_id": order.ID.String()},
	}
	if customer.Phone != "" {
		intent.CustomerPhone = &customer.Phone
	}
	if customer.Address != "" {
		intent.CustomerAddress = &customer.Address
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a live payment intent already exists for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment intent")
	}

	lctx := s.logger.WithPaymentIntentID(s.logger.WithOrderID(ctx, order.ID.String()), intent.ID.String())
	s.logger.Info(lctx, "payment intent created")
	return s.descriptor(order, intent), nil
}

func (s *service) descriptor(order *models.Order, intent *models.PaymentIntent) *WidgetDescriptor {
	desc := &WidgetDescriptor{
		KeyID:          s.gateway.KeyID(),
		GatewayOrderID: intent.GatewayOrderID,
		AmountPaise:    intent.AmountPaise,
		Currency:       intent.Currency,
		OrderID:        order.ID.String(),
		CustomerName:   intent.CustomerName,
		CustomerEmail:  intent.CustomerEmail,
	}
	if intent.CustomerPhone != nil {
		desc.CustomerPhone = *intent.CustomerPhone
	}
	return desc
}

func (s *service) loadOwnedOrder(ctx context.Context, repo *orders.Repository, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
