package prescriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

// UploadParams carries a patient's prescription submission.
type UploadParams struct {
	UserID         uuid.UUID
	Image          []byte
	ContentType    string
	DeliveryMethod enums.DeliveryMethod
	Address        string
	Phone          string
}

// MedicineParam is one pharmacist-priced line attached during review.
type MedicineParam struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPricePaise int64
}

// CheckoutParams converts an approved upload into an order. DeliveryMethod,
// Address and Phone override the values captured at upload time when set.
type CheckoutParams struct {
	UploadID       uuid.UUID
	UserID         uuid.UUID
	PaymentMethod  checkout.PaymentMethod
	DeliveryMethod enums.DeliveryMethod
	Address        string
	Phone          string
}

// Service runs the prescription-upload stream: patients submit an image, a
// pharmacist prices it, and payment turns it into an order.
type Service interface {
	Upload(ctx context.Context, params UploadParams) (*models.PrescriptionUpload, error)
	// Approve attaches the priced medicines and moves the upload to approved.
	Approve(ctx context.Context, uploadID, reviewerID uuid.UUID, medicines []MedicineParam) (*models.PrescriptionUpload, error)
	Reject(ctx context.Context, uploadID, reviewerID uuid.UUID) (*models.PrescriptionUpload, error)
	// Checkout freezes the approved medicines into an order of kind
	// prescription, reserving stock like a cart checkout.
	Checkout(ctx context.Context, params CheckoutParams) (*models.Order, error)
	MarkFulfilled(ctx context.Context, uploadID uuid.UUID) (*models.PrescriptionUpload, error)
	Get(ctx context.Context, uploadID, userID uuid.UUID) (*models.PrescriptionUpload, error)
	ListPending(ctx context.Context) ([]models.PrescriptionUpload, error)
}

type service struct {
	client      *db.Client
	repo        *Repository
	catalogRepo *catalog.Repository
	orderRepo   *orders.Repository
	policies    *orders.Policies
	logger      *logger.Logger
	codNotifier checkout.CODNotifier
}

// NewService wires the prescription stream. The COD notifier may be nil.
func NewService(
	client *db.Client,
	repo *Repository,
	catalogRepo *catalog.Repository,
	orderRepo *orders.Repository,
	policies *orders.Policies,
	logg *logger.Logger,
	codNotifier checkout.CODNotifier,
) (Service, error) {
	if client == nil || repo == nil || catalogRepo == nil || orderRepo == nil || policies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "prescriptions persistence dependencies required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "prescriptions logger required")
	}
	return &service{
		client:      client,
		repo:        repo,
		catalogRepo: catalogRepo,
		orderRepo:   orderRepo,
		policies:    policies,
		logger:      logg,
		codNotifier: codNotifier,
	}, nil
}

func (s *service) Upload(ctx context.Context, params UploadParams) (*models.PrescriptionUpload, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(params.Image) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prescription image required")
	}
	if params.DeliveryMethod == "" {
		params.DeliveryMethod = enums.DeliveryMethodPickup
	}
	if !params.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if params.DeliveryMethod.RequiresAddress() {
		if strings.TrimSpace(params.Address) == "" || strings.TrimSpace(params.Phone) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "address and phone required for home delivery")
		}
	}

	var upload *models.PrescriptionUpload
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		blob := &models.Blob{
			ID:          uuid.New(),
			ContentType: params.ContentType,
			Data:        params.Image,
		}
		blob.Path = "prescriptions/" + blob.ID.String()
		if err := repo.CreateBlob(ctx, blob); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing prescription image")
		}

		upload = &models.PrescriptionUpload{
			UserID:         params.UserID,
			ImageBlobID:    &blob.ID,
			Status:         enums.PrescriptionStatusPending,
			DeliveryMethod: params.DeliveryMethod,
		}
		if params.Address != "" {
			upload.DeliveryAddress = &params.Address
		}
		if params.Phone != "" {
			upload.DeliveryPhone = &params.Phone
		}
		if err := repo.Create(ctx, upload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating prescription upload")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "prescription_id", upload.ID.String()), "prescription uploaded")
	return upload, nil
}

func (s *service) Approve(ctx context.Context, uploadID, reviewerID uuid.UUID, medicines []MedicineParam) (*models.PrescriptionUpload, error) {
	if len(medicines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one medicine required to approve")
	}
	for _, m := range medicines {
		if m.ProductID == uuid.Nil || m.Quantity <= 0 || m.UnitPricePaise <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each medicine needs a product, a positive quantity, and a price")
		}
	}

	var upload *models.PrescriptionUpload
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := s.lockPending(ctx, tx, uploadID)
		if err != nil {
			return err
		}
		upload = locked

		rows := make([]models.PrescriptionMedicine, 0, len(medicines))
		var estimated int64
		for _, m := range medicines {
			if _, err := s.catalogRepo.WithTx(tx).FindByID(ctx, m.ProductID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", m.ProductID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up product")
			}
			rows = append(rows, models.PrescriptionMedicine{
				ProductID:      m.ProductID,
				Quantity:       m.Quantity,
				UnitPricePaise: m.UnitPricePaise,
			})
			estimated += int64(m.Quantity) * m.UnitPricePaise
		}
		if err := repo.ReplaceMedicines(ctx, upload.ID, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attaching medicines")
		}

		upload.Status = enums.PrescriptionStatusApproved
		upload.ReviewerID = &reviewerID
		upload.EstimatedPaise = estimated
		if err := repo.Save(ctx, upload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving review")
		}
		upload.Medicines = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "prescription_id", upload.ID.String()), "prescription approved")
	return upload, nil
}

func (s *service) Reject(ctx context.Context, uploadID, reviewerID uuid.UUID) (*models.PrescriptionUpload, error) {
	var upload *models.PrescriptionUpload
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockPending(ctx, tx, uploadID)
		if err != nil {
			return err
		}
		upload = locked
		upload.Status = enums.PrescriptionStatusRejected
		upload.ReviewerID = &reviewerID
		if err := s.repo.WithTx(tx).Save(ctx, upload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "prescription_id", upload.ID.String()), "prescription rejected")
	return upload, nil
}

// Checkout mirrors a cart freeze: reserve stock, snapshot the pharmacist's
// prices into frozen lines, and create the order. COD commits stock at once.
func (s *service) Checkout(ctx context.Context, params CheckoutParams) (*models.Order, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.PaymentMethod != checkout.PaymentMethodOnline && params.PaymentMethod != checkout.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be online or cod")
	}

	var (
		order  *models.Order
		upload *models.PrescriptionUpload
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		locked, err := repo.LockByID(ctx, params.UploadID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking prescription")
		}
		upload = locked
		if upload.UserID != params.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
		}
		if upload.Status != enums.PrescriptionStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("prescription is %s, only approved prescriptions can be paid", upload.Status))
		}

		method := upload.DeliveryMethod
		address := deref(upload.DeliveryAddress)
		phone := deref(upload.DeliveryPhone)
		if params.DeliveryMethod != "" {
			method = params.DeliveryMethod
		}
		if params.Address != "" {
			address = params.Address
		}
		if params.Phone != "" {
			phone = params.Phone
		}
		if !method.IsValid() || method == enums.DeliveryMethodHomeCollection {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
		}
		if method.RequiresAddress() && (strings.TrimSpace(address) == "" || strings.TrimSpace(phone) == "") {
			return pkgerrors.New(pkgerrors.CodeValidation, "address and phone required for home delivery")
		}

		medicines, err := repo.LoadMedicines(ctx, upload.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading medicines")
		}
		if len(medicines) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "prescription has no medicines attached")
		}

		requests := make([]catalog.StockRequest, 0, len(medicines))
		for _, m := range medicines {
			requests = append(requests, catalog.StockRequest{ProductID: m.ProductID, Qty: m.Quantity})
		}
		if err := catalog.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		var subtotal int64
		for _, m := range medicines {
			subtotal += int64(m.Quantity) * m.UnitPricePaise
		}
		capability := s.policies.For(enums.OrderKindPrescription)
		tax := orders.Tax(subtotal, capability.TaxPercent)
		fee := capability.DeliveryFee(method)

		order = &models.Order{
			UserID:           params.UserID,
			Kind:             enums.OrderKindPrescription,
			DeliveryMethod:   method,
			OrderStatus:      enums.OrderStatusPending,
			CollectionStatus: enums.CollectionStatusPending,
			PaymentStatus:    enums.PaymentStatusPending,
			SubtotalPaise:    subtotal,
			TaxPaise:         tax,
			DeliveryFeePaise: fee,
			TotalPaise:       subtotal + tax + fee,
		}
		if address != "" {
			order.DeliveryAddress = &address
		}
		if phone != "" {
			order.DeliveryPhone = &phone
		}

		if params.PaymentMethod == checkout.PaymentMethodCOD {
			if err := catalog.CommitReservation(ctx, tx, requests); err != nil {
				return err
			}
			order.Ordered = true
			order.PaymentStatus = enums.PaymentStatusCODPending
			order.OrderStatus = enums.OrderStatusConfirmed
		}

		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		lines := make([]models.CartLine, 0, len(medicines))
		for _, m := range medicines {
			line := models.CartLine{
				UserID:         params.UserID,
				ProductID:      m.ProductID,
				Kind:           enums.OrderKindPrescription,
				Quantity:       m.Quantity,
				OrderID:        &order.ID,
				UnitPricePaise: m.UnitPricePaise,
			}
			if err := tx.WithContext(ctx).Create(&line).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freezing prescription line")
			}
			lines = append(lines, line)
		}
		order.Lines = lines

		upload.Status = enums.PrescriptionStatusPaidPending
		upload.RelatedOrderID = &order.ID
		if err := repo.Save(ctx, upload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking prescription to order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lctx := s.logger.WithOrderID(s.logger.WithField(ctx, "prescription_id", upload.ID.String()), order.ID.String())
	s.logger.Info(lctx, "prescription checked out")

	if params.PaymentMethod == checkout.PaymentMethodCOD && s.codNotifier != nil {
		s.codNotifier.NotifyStaffCOD(ctx, order)
	}
	return order, nil
}

func (s *service) MarkFulfilled(ctx context.Context, uploadID uuid.UUID) (*models.PrescriptionUpload, error) {
	var upload *models.PrescriptionUpload
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.WithTx(tx).LockByID(ctx, uploadID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking prescription")
		}
		upload = locked
		if upload.Status != enums.PrescriptionStatusPaidPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("prescription is %s, only paid prescriptions can be fulfilled", upload.Status))
		}
		upload.Status = enums.PrescriptionStatusFulfilled
		if err := s.repo.WithTx(tx).Save(ctx, upload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving prescription")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "prescription_id", upload.ID.String()), "prescription fulfilled")
	return upload, nil
}

func (s *service) Get(ctx context.Context, uploadID, userID uuid.UUID) (*models.PrescriptionUpload, error) {
	upload, err := s.repo.FindByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading prescription")
	}
	// staff callers pass uuid.Nil and see every upload
	if userID != uuid.Nil && upload.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
	}
	return upload, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.PrescriptionUpload, error) {
	rows, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing prescriptions")
	}
	return rows, nil
}

// lockPending locks an upload and requires it to still be awaiting review.
func (s *service) lockPending(ctx context.Context, tx *gorm.DB, uploadID uuid.UUID) (*models.PrescriptionUpload, error) {
	upload, err := s.repo.WithTx(tx).LockByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking prescription")
	}
	if upload.Status != enums.PrescriptionStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("prescription has already been reviewed (%s)", upload.Status))
	}
	return upload, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
