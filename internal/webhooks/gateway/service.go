package gatewaywebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
)

// Scope separates gateway webhook dedupe keys from other idempotency users.
const Scope = "gateway-webhook"

// signatureVerifier is the slice of the gateway client the sink needs.
type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// eventGuard is satisfied by IdempotencyGuard.
type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// event is the wire shape of a gateway notification.
type event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Service is the idempotent webhook sink. Signature failures are the only
// rejections; processing outcomes always acknowledge so the gateway stops
// redelivering.
type Service struct {
	verifier signatureVerifier
	guard    eventGuard
	payments payments.Service
	metrics  *metrics.PaymentMetrics
	logger   *logger.Logger
}

type ServiceParams struct {
	Verifier signatureVerifier
	Guard    eventGuard
	Payments payments.Service
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// NewService wires the sink. Guard and metrics may be nil; without a guard
// every event goes to the database, where the intent lock still dedupes.
func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook signature verifier required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook payments service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook logger required")
	}
	return &Service{
		verifier: params.Verifier,
		guard:    params.Guard,
		payments: params.Payments,
		metrics:  params.Metrics,
		logger:   params.Logger,
	}, nil
}

// Handle verifies and applies one raw webhook delivery. eventID may be
// empty; the body hash stands in so replays of the same delivery dedupe.
func (s *Service) Handle(ctx context.Context, body []byte, signature, eventID string) error {
	if !s.verifier.VerifyWebhookSignature(body, signature) {
		s.metrics.IncWebhook("unknown", "bad_signature")
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook signature verification failed")
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		s.metrics.IncWebhook("unknown", "malformed")
		s.logger.Warn(ctx, "malformed webhook payload ignored")
		return nil
	}

	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, eventID)
		if err != nil {
			// redis down: fall through, the intent row lock still dedupes
			s.logger.Error(ctx, "webhook dedupe check failed, processing anyway", err)
		} else if seen {
			s.metrics.IncWebhook(evt.Event, "duplicate")
			return nil
		}
	}

	err := s.payments.ApplyGatewayEvent(ctx, evt.Event, evt.Payload.Payment.Entity.OrderID, evt.Payload.Payment.Entity.ID)
	if err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, eventID); delErr != nil {
				s.logger.Error(ctx, "failed to release webhook dedupe key", delErr)
			}
		}
		s.metrics.IncWebhook(evt.Event, "error")
		return err
	}

	s.metrics.IncWebhook(evt.Event, "applied")
	return nil
}
