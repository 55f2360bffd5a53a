package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/mailer"
)

type recordingSender struct {
	sent []mailer.Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	if r.fail {
		return errors.New("smtp down")
	}
	r.sent = append(r.sent, msg)
	return nil
}

type staticRecipients struct {
	email string
	err   error
}

func (s staticRecipients) EmailForUser(context.Context, *models.Order) (string, error) {
	return s.email, s.err
}

func newEmailer(t *testing.T, sender *recordingSender, recipients Recipients, staffInbox string) *Emailer {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	e, err := NewEmailer(sender, recipients, config.SendgridConfig{StaffInbox: staffInbox}, logg)
	require.NoError(t, err)
	return e
}

func testOrder(kind enums.OrderKind) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Kind:           kind,
		DeliveryMethod: enums.DeliveryMethodPickup,
		TotalPaise:     21000,
	}
}

func TestNotifyOrderTransitionUsesTemplate(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	e := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "")

	e.NotifyOrderTransition(context.Background(), testOrder(enums.OrderKindPharmacy), "confirmed", "preparing", "urgent")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "asha@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "being prepared")
	assert.Contains(t, sender.sent[0].Body, "Note: urgent")
}

func TestNotifyOrderTransitionScheduledIncludesSlot(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	e := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "")

	order := testOrder(enums.OrderKindTest)
	date := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	slot := "09:00"
	order.CollectionDate = &date
	order.CollectionTime = &slot

	e.NotifyOrderTransition(context.Background(), order, "pending", "scheduled", "")

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "03 Sep 2026 at 09:00")
}

func TestNotifyOrderTransitionUnknownStatusSilent(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	e := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "")

	e.NotifyOrderTransition(context.Background(), testOrder(enums.OrderKindPharmacy), "pending", "archived", "")
	assert.Empty(t, sender.sent)
}

func TestNotifyStaffCODRequiresInbox(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	e := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "")
	e.NotifyStaffCOD(context.Background(), testOrder(enums.OrderKindPharmacy))
	assert.Empty(t, sender.sent)

	withInbox := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "staff@mahimamedicare.co.in")
	withInbox.NotifyStaffCOD(context.Background(), testOrder(enums.OrderKindPharmacy))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "staff@mahimamedicare.co.in", sender.sent[0].To)
}

func TestNotifyPaymentCapturedFallsBackToIntentEmail(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	e := newEmailer(t, sender, staticRecipients{err: errors.New("no account")}, "")

	intent := &models.PaymentIntent{CustomerEmail: "snapshot@example.com"}
	e.NotifyPaymentCaptured(context.Background(), testOrder(enums.OrderKindPharmacy), intent)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "snapshot@example.com", sender.sent[0].To)
}

func TestSendFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{fail: true}
	e := newEmailer(t, sender, staticRecipients{email: "asha@example.com"}, "")
	e.NotifyOrderTransition(context.Background(), testOrder(enums.OrderKindPharmacy), "confirmed", "preparing", "")
	assert.Empty(t, sender.sent)
}
