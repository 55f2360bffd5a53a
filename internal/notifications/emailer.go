package notifications

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/mailer"
)

// Recipients resolves the email address for an order's owner. The order row
// only stores the user id; account details live elsewhere.
type Recipients interface {
	EmailForUser(ctx context.Context, order *models.Order) (string, error)
}

// Emailer sends the transactional order emails. Every send is best effort:
// failures are logged and swallowed so they never block a transition.
type Emailer struct {
	sender     mailer.Sender
	recipients Recipients
	staffInbox string
	logger     *logger.Logger
}

// NewEmailer wires the notification templates to a mail sender.
func NewEmailer(sender mailer.Sender, recipients Recipients, cfg config.SendgridConfig, logg *logger.Logger) (*Emailer, error) {
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications mail sender required")
	}
	if recipients == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications recipient resolver required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications logger required")
	}
	return &Emailer{
		sender:     sender,
		recipients: recipients,
		staffInbox: cfg.StaffInbox,
		logger:     logg,
	}, nil
}

// NotifyStaffCOD tells the back office a cash order needs confirmation.
func (e *Emailer) NotifyStaffCOD(ctx context.Context, order *models.Order) {
	if e.staffInbox == "" {
		return
	}
	msg := mailer.Message{
		To:      e.staffInbox,
		Subject: fmt.Sprintf("COD order %s awaiting handling", shortID(order)),
		Body: fmt.Sprintf(
			"A cash-on-delivery %s order for Rs. %.2f was placed.\nOrder ID: %s\nCollect payment at handover.",
			order.Kind, rupees(order.TotalPaise), order.ID),
	}
	e.deliver(ctx, "staff cod alert", msg)
}

// NotifyPaymentCaptured confirms a successful payment to the customer.
func (e *Emailer) NotifyPaymentCaptured(ctx context.Context, order *models.Order, intent *models.PaymentIntent) {
	to, err := e.recipients.EmailForUser(ctx, order)
	if err != nil || to == "" {
		if intent != nil {
			to = intent.CustomerEmail
		}
	}
	if to == "" {
		return
	}
	msg := mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("Payment received for order %s", shortID(order)),
		Body: fmt.Sprintf(
			"We received your payment of Rs. %.2f.\nOrder ID: %s\nYour order is confirmed and will be processed shortly.",
			rupees(order.TotalPaise), order.ID),
	}
	e.deliver(ctx, "payment captured mail", msg)
}

// NotifyPaymentFailed nudges the customer to retry or switch to cash.
func (e *Emailer) NotifyPaymentFailed(ctx context.Context, order *models.Order, intent *models.PaymentIntent) {
	to := ""
	if intent != nil {
		to = intent.CustomerEmail
	}
	if to == "" {
		var err error
		to, err = e.recipients.EmailForUser(ctx, order)
		if err != nil || to == "" {
			return
		}
	}
	msg := mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("Payment failed for order %s", shortID(order)),
		Body: fmt.Sprintf(
			"Your payment attempt for order %s did not go through.\nYour items are still held for you. You can retry the payment or switch to cash on delivery.",
			order.ID),
	}
	e.deliver(ctx, "payment failed mail", msg)
}

// NotifyOrderTransition emails the per-status template to the order owner.
func (e *Emailer) NotifyOrderTransition(ctx context.Context, order *models.Order, from, to, note string) {
	recipient, err := e.recipients.EmailForUser(ctx, order)
	if err != nil || recipient == "" {
		return
	}
	subject, body := transitionTemplate(order, to)
	if subject == "" {
		return
	}
	if note != "" {
		body += "\nNote: " + note
	}
	e.deliver(ctx, "transition mail", msg(recipient, subject, body))
}

func (e *Emailer) deliver(ctx context.Context, what string, msgs ...mailer.Message) {
	var errs error
	for _, m := range msgs {
		if m.To == "" {
			continue
		}
		errs = multierr.Append(errs, e.sender.Send(ctx, m))
	}
	if errs != nil {
		e.logger.Error(ctx, "failed to send "+what, errs)
	}
}

func msg(to, subject, body string) mailer.Message {
	return mailer.Message{To: to, Subject: subject, Body: body}
}

// transitionTemplate returns the customer-facing copy for a status. Unknown
// statuses produce no mail.
func transitionTemplate(order *models.Order, to string) (string, string) {
	id := shortID(order)
	switch to {
	case enums.OrderStatusPreparing.String():
		return fmt.Sprintf("Order %s is being prepared", id),
			"Our pharmacist is preparing your medicines."
	case enums.OrderStatusReady.String():
		if order.DeliveryMethod == enums.DeliveryMethodPickup {
			return fmt.Sprintf("Order %s is ready for pickup", id),
				"Your order is packed and waiting at the counter."
		}
		return fmt.Sprintf("Order %s is ready", id),
			"Your order is packed and will be dispatched soon."
	case enums.OrderStatusOutForDelivery.String():
		return fmt.Sprintf("Order %s is out for delivery", id),
			"Your medicines are on the way."
	case enums.OrderStatusDelivered.String():
		return fmt.Sprintf("Order %s delivered", id),
			"Your order has been delivered. Get well soon!"
	case enums.CollectionStatusScheduled.String():
		body := "Your sample collection has been scheduled."
		if order.CollectionDate != nil {
			body = fmt.Sprintf("Your sample collection is scheduled for %s.", order.CollectionDate.Format("02 Jan 2006"))
			if order.CollectionTime != nil {
				body = fmt.Sprintf("Your sample collection is scheduled for %s at %s.",
					order.CollectionDate.Format("02 Jan 2006"), *order.CollectionTime)
			}
		}
		return fmt.Sprintf("Sample collection scheduled for order %s", id), body
	case enums.CollectionStatusInProgress.String():
		return fmt.Sprintf("Sample collection under way for order %s", id),
			"Our technician is on the way to collect your sample."
	case enums.CollectionStatusCollected.String():
		return fmt.Sprintf("Sample collected for order %s", id),
			"Your sample has been collected and sent to the lab."
	case enums.CollectionStatusProcessing.String():
		return fmt.Sprintf("Tests in progress for order %s", id),
			"Your sample is being processed. Results will follow shortly."
	case enums.OrderStatusCompleted.String(), enums.CollectionStatusCompleted.String():
		return fmt.Sprintf("Order %s completed", id),
			"Thank you for choosing Mahima Medicare."
	case enums.OrderStatusCancelled.String(), enums.CollectionStatusCancelled.String():
		return fmt.Sprintf("Order %s cancelled", id),
			"Your order has been cancelled. Any payment made will be refunded."
	default:
		return "", ""
	}
}

func shortID(order *models.Order) string {
	s := order.ID.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

func rupees(paise int64) float64 {
	return float64(paise) / 100
}
