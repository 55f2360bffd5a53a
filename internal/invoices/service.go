package invoices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
	"github.com/mahima-medicare/healthstack-backend/pkg/pdf"
)

// Business header, printed on every invoice. Registered seller details.
const (
	companyName      = "M/S MAHIMA MEDICARE"
	companyAddress   = "Barkoliya Bajar, Orti, Cuttack, 754209"
	companyPhone     = "+91 8763814619"
	companyEmail     = "mahimamedicare01@gmail.com"
	companyGSTIN     = "21AXRPN9340C1ZH"
	companyStateCode = "21-Odisha"
	drugLicenseNo    = "DL-OD-CTC-2021-00451"

	termsText = "Goods once sold will not be taken back. Subject to Cuttack jurisdiction."

	codSignature = "COD"
)

const maxNumberAttempts = 3

// Service issues and serves tax invoices for captured payments.
type Service interface {
	// GenerateForIntent issues the invoice for a captured intent inside the
	// caller's transaction. Idempotent per intent.
	GenerateForIntent(ctx context.Context, tx *gorm.DB, intentID uuid.UUID) (*models.Invoice, error)
	// Regenerate deletes an invoice and reissues it under a fresh number.
	Regenerate(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	// GetInvoice loads one invoice, enforcing ownership unless userID is nil.
	GetInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (*models.Invoice, error)
	// GetPDF returns the rendered artifact for an invoice.
	GetPDF(ctx context.Context, invoiceID, userID uuid.UUID) (*models.Blob, error)
}

type service struct {
	client   *db.Client
	repo     *Repository
	policies *orders.Policies
	metrics  *metrics.PaymentMetrics
	logger   *logger.Logger

	// serializes generation on dialects without advisory locks
	mu sync.Mutex
}

// NewService wires invoice generation. Metrics may be nil.
func NewService(client *db.Client, repo *Repository, policies *orders.Policies, paymentMetrics *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if client == nil || repo == nil || policies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoices persistence dependencies required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoices logger required")
	}
	return &service{
		client:   client,
		repo:     repo,
		policies: policies,
		metrics:  paymentMetrics,
		logger:   logg,
	}, nil
}

func (s *service) GenerateForIntent(ctx context.Context, tx *gorm.DB, intentID uuid.UUID) (*models.Invoice, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice generation requires a transaction")
	}
	if tx.Dialector.Name() == "postgres" {
		// pg_advisory_xact_lock holds until the transaction ends
		err := tx.WithContext(ctx).
			Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", intentID.String()).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring invoice lock")
		}
	} else {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByIntent(ctx, intentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up invoice")
	}

	intent, err := repo.FindIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment intent")
	}
	if intent.Status != enums.IntentStatusCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only captured payments are invoiced")
	}

	draft, doc, err := s.buildDraft(ctx, repo, intent)
	if err != nil {
		s.metrics.IncInvoice("failed")
		return nil, err
	}

	invoice, err := s.createNumbered(ctx, repo, draft)
	if err != nil {
		s.metrics.IncInvoice("failed")
		return nil, err
	}

	doc.InvoiceNumber = invoice.InvoiceNumber
	doc.IssuedAt = time.Now().UTC()
	rendered, err := pdf.RenderInvoice(*doc)
	if err != nil {
		s.metrics.IncInvoice("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering invoice pdf")
	}
	blob := &models.Blob{
		Path:        "invoices/" + invoice.InvoiceNumber + ".pdf",
		ContentType: "application/pdf",
		Data:        rendered,
	}
	if err := repo.CreateBlob(ctx, blob); err != nil {
		s.metrics.IncInvoice("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing invoice pdf")
	}
	if err := repo.SetPDFBlob(ctx, invoice.ID, blob.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking invoice pdf")
	}
	invoice.PDFBlobID = &blob.ID

	lctx := s.logger.WithFields(ctx, map[string]any{
		"invoice_number":    invoice.InvoiceNumber,
		"payment_intent_id": intentID.String(),
	})
	s.logger.Info(lctx, "invoice generated")
	s.metrics.IncInvoice("generated")
	return invoice, nil
}

func (s *service) Regenerate(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var fresh *models.Invoice
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		old, err := repo.FindByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoice")
		}

		intentID := old.PaymentIntentID
		oldNumber := old.InvoiceNumber
		if err := repo.Delete(ctx, old); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting invoice")
		}

		fresh, err = s.GenerateForIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}

		lctx := s.logger.WithFields(ctx, map[string]any{
			"old_invoice_number": oldNumber,
			"new_invoice_number": fresh.InvoiceNumber,
		})
		s.logger.Info(lctx, "invoice regenerated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *service) GetInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoice")
	}
	if err := s.checkOwnership(ctx, invoice, userID); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) GetPDF(ctx context.Context, invoiceID, userID uuid.UUID) (*models.Blob, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID, userID)
	if err != nil {
		return nil, err
	}
	if invoice.PDFBlobID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice has no rendered pdf")
	}
	blob, err := s.repo.FindBlob(ctx, *invoice.PDFBlobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoice pdf")
	}
	return blob, nil
}

// buildDraft assembles the unnumbered invoice row plus the render document.
func (s *service) buildDraft(ctx context.Context, repo *Repository, intent *models.PaymentIntent) (*models.Invoice, *pdf.InvoiceDocument, error) {
	invoice := &models.Invoice{
		PaymentIntentID: intent.ID,
		CustomerName:    intent.CustomerName,
		CustomerEmail:   intent.CustomerEmail,
		CustomerPhone:   intent.CustomerPhone,
		CustomerAddress: intent.CustomerAddress,
		CompanyName:     companyName,
		CompanyAddress:  companyAddress,
		CompanyPhone:    companyPhone,
		LicenseNo:       drugLicenseNo,
		GSTIN:           companyGSTIN,
		StateCode:       companyStateCode,
		TermsConditions: termsText,
	}
	doc := &pdf.InvoiceDocument{
		BusinessName:    companyName,
		BusinessAddress: companyAddress,
		BusinessEmail:   companyEmail,
		BusinessPhone:   companyPhone,
		CustomerName:    intent.CustomerName,
		CustomerEmail:   intent.CustomerEmail,
		PaymentMethod:   paymentMethodLabel(intent),
		ReferenceID:     intent.GatewayOrderID,
	}
	if intent.CustomerAddress != nil {
		doc.CustomerAddress = *intent.CustomerAddress
	}

	if intent.OrderID == nil {
		s.fillServiceCharge(invoice, doc, intent)
		return invoice, doc, nil
	}

	order, err := repo.FindOrder(ctx, *intent.OrderID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoiced order")
	}

	for _, line := range order.Lines {
		desc := line.ProductID.String()
		if line.Product != nil {
			desc = line.Product.Name
			if line.Product.Composition != nil && *line.Product.Composition != "" {
				desc += " (" + *line.Product.Composition + ")"
			}
		}
		lineTotal := line.UnitPricePaise * int64(line.Quantity)
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			Description:    desc,
			Quantity:       line.Quantity,
			UnitPricePaise: line.UnitPricePaise,
			TotalPaise:     lineTotal,
			ItemType:       order.Kind.String(),
			ItemRef:        &line.ProductID,
		})
		doc.Items = append(doc.Items, pdf.InvoiceLine{
			Description:    desc,
			Quantity:       int64(line.Quantity),
			UnitPricePaise: line.UnitPricePaise,
			TotalPaise:     lineTotal,
		})
	}

	invoice.SubtotalPaise = order.SubtotalPaise
	invoice.TaxPaise = order.TaxPaise
	invoice.DeliveryPaise = order.DeliveryFeePaise
	invoice.TotalPaise = order.TotalPaise

	doc.SubtotalPaise = order.SubtotalPaise
	doc.TaxLabel = s.policies.For(order.Kind).TaxLabel
	doc.TaxPaise = order.TaxPaise
	doc.FeeLabel = feeLabel(order.Kind)
	doc.FeePaise = order.DeliveryFeePaise
	doc.TotalPaise = order.TotalPaise
	return invoice, doc, nil
}

// fillServiceCharge handles intents with no order behind them, currently
// appointment consultations. The captured amount is GST-inclusive.
func (s *service) fillServiceCharge(invoice *models.Invoice, doc *pdf.InvoiceDocument, intent *models.PaymentIntent) {
	pct := s.policies.AppointmentTaxPercent()
	total := intent.AmountPaise
	base := decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(100 + pct)).
		Round(0).
		IntPart()
	tax := total - base

	invoice.Items = append(invoice.Items, models.InvoiceItem{
		Description:    "Appointment consultation fee",
		Quantity:       1,
		UnitPricePaise: base,
		TotalPaise:     base,
		ItemType:       intent.Kind.String(),
	})
	invoice.SubtotalPaise = base
	invoice.TaxPaise = tax
	invoice.TotalPaise = total

	doc.Items = append(doc.Items, pdf.InvoiceLine{
		Description:    "Appointment consultation fee",
		Quantity:       1,
		UnitPricePaise: base,
		TotalPaise:     base,
	})
	doc.SubtotalPaise = base
	doc.TaxLabel = fmt.Sprintf("GST (%d%%)", pct)
	doc.TaxPaise = tax
	doc.TotalPaise = total
}

// createNumbered assigns the next sequence number and inserts the invoice,
// retrying on a number collision.
func (s *service) createNumbered(ctx context.Context, repo *Repository, draft *models.Invoice) (*models.Invoice, error) {
	now := time.Now().UTC()
	period := now.Format("2006-01")

	backoff := retry.WithMaxRetries(maxNumberAttempts, retry.NewConstant(5*time.Millisecond))
	var created *models.Invoice
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		seq, err := repo.NextSequence(ctx, period)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		candidate := *draft
		candidate.ID = uuid.Nil
		candidate.InvoiceNumber = fmt.Sprintf("INV-%04d-%02d-%05d", now.Year(), int(now.Month()), seq)
		candidate.Items = append([]models.InvoiceItem(nil), draft.Items...)
		for i := range candidate.Items {
			candidate.Items[i].ID = uuid.Nil
		}

		if err := repo.Create(ctx, &candidate); err != nil {
			if db.IsUniqueViolation(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		created = &candidate
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assigning invoice number")
	}
	return created, nil
}

func (s *service) checkOwnership(ctx context.Context, invoice *models.Invoice, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	intent, err := s.repo.FindIntent(ctx, invoice.PaymentIntentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoiced payment")
	}
	if intent.OrderID == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	order, err := s.repo.FindOrder(ctx, *intent.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading invoiced order")
	}
	if order.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return nil
}

func paymentMethodLabel(intent *models.PaymentIntent) string {
	if intent.Signature != nil && *intent.Signature == codSignature {
		return "Cash on Delivery"
	}
	return "Online (prepaid)"
}

func feeLabel(kind enums.OrderKind) string {
	if kind == enums.OrderKindTest {
		return "Home Collection Charges"
	}
	return "Delivery Charges"
}
