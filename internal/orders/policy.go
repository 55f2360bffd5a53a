package orders

import (
	"github.com/shopspring/decimal"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
)

// Capability describes everything that varies by order kind: tax rate,
// delivery fee, who may drive fulfillment, and the legal status transitions.
// Modeled as a lookup table rather than inheritance.
type Capability struct {
	Kind           enums.OrderKind
	TaxPercent     int64
	TaxLabel       string
	DeliveryFee    func(method enums.DeliveryMethod) int64
	AllowedRole    enums.ActorRole
	Transitions    map[string][]string
	InitialStatus  string
	TerminalStates map[string]bool
}

// Policies resolves capabilities against the injected business constants.
type Policies struct {
	cfg config.PolicyConfig
}

// NewPolicies binds the capability table to configuration.
func NewPolicies(cfg config.PolicyConfig) *Policies {
	return &Policies{cfg: cfg}
}

// For returns the capability row for a kind. Prescription orders reuse the
// pharmacy rules; only their provenance differs.
func (p *Policies) For(kind enums.OrderKind) Capability {
	switch kind {
	case enums.OrderKindTest:
		return Capability{
			Kind:       kind,
			TaxPercent: p.cfg.TestVATPercent,
			TaxLabel:   taxLabel("VAT", p.cfg.TestVATPercent),
			DeliveryFee: func(method enums.DeliveryMethod) int64 {
				if method == enums.DeliveryMethodHomeCollection {
					return p.cfg.HomeCollectionPaise
				}
				return 0
			},
			AllowedRole:   enums.ActorRoleLabTechnician,
			Transitions:   testTransitions,
			InitialStatus: enums.CollectionStatusPending.String(),
			TerminalStates: map[string]bool{
				enums.CollectionStatusCompleted.String(): true,
				enums.CollectionStatusCancelled.String(): true,
			},
		}
	default:
		return Capability{
			Kind:       kind,
			TaxPercent: p.cfg.PharmacyGSTPercent,
			TaxLabel:   taxLabel("GST", p.cfg.PharmacyGSTPercent),
			DeliveryFee: func(method enums.DeliveryMethod) int64 {
				if method == enums.DeliveryMethodHomeDelivery {
					return p.cfg.DeliveryFeePaise
				}
				return 0
			},
			AllowedRole:   enums.ActorRolePharmacist,
			Transitions:   pharmacyTransitions,
			InitialStatus: enums.OrderStatusPending.String(),
			TerminalStates: map[string]bool{
				enums.OrderStatusCompleted.String(): true,
				enums.OrderStatusCancelled.String(): true,
				enums.OrderStatusDelivered.String(): true,
			},
		}
	}
}

// AppointmentTaxPercent is the service GST applied to appointment invoices.
func (p *Policies) AppointmentTaxPercent() int64 {
	return p.cfg.AppointmentGSTPercent
}

// Tax computes round(subtotal × percent) in paise using decimal math.
func Tax(subtotalPaise, percent int64) int64 {
	if percent <= 0 || subtotalPaise <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotalPaise).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func taxLabel(name string, percent int64) string {
	if percent <= 0 {
		return ""
	}
	return name + " (" + decimal.NewFromInt(percent).String() + "%)"
}

var pharmacyTransitions = map[string][]string{
	enums.OrderStatusPending.String():        {enums.OrderStatusConfirmed.String(), enums.OrderStatusCancelled.String()},
	enums.OrderStatusConfirmed.String():      {enums.OrderStatusPreparing.String(), enums.OrderStatusCancelled.String()},
	enums.OrderStatusPreparing.String():      {enums.OrderStatusReady.String(), enums.OrderStatusCancelled.String()},
	enums.OrderStatusReady.String():          {enums.OrderStatusOutForDelivery.String(), enums.OrderStatusDelivered.String(), enums.OrderStatusCancelled.String()},
	enums.OrderStatusOutForDelivery.String(): {enums.OrderStatusDelivered.String(), enums.OrderStatusCancelled.String()},
	enums.OrderStatusDelivered.String():      {enums.OrderStatusCompleted.String()},
}

var testTransitions = map[string][]string{
	enums.CollectionStatusPending.String():    {enums.CollectionStatusScheduled.String(), enums.CollectionStatusCollected.String(), enums.CollectionStatusCancelled.String()},
	enums.CollectionStatusScheduled.String():  {enums.CollectionStatusInProgress.String(), enums.CollectionStatusCollected.String(), enums.CollectionStatusCancelled.String()},
	enums.CollectionStatusInProgress.String(): {enums.CollectionStatusCollected.String(), enums.CollectionStatusCancelled.String()},
	enums.CollectionStatusCollected.String():  {enums.CollectionStatusProcessing.String(), enums.CollectionStatusCancelled.String()},
	enums.CollectionStatusProcessing.String(): {enums.CollectionStatusCompleted.String()},
}
