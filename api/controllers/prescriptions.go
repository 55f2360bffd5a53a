package controllers

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	checkoutsvc "github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/prescriptions"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

const maxPrescriptionImageBytes = 8 << 20

// PrescriptionUpload accepts a multipart prescription image.
func PrescriptionUpload(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxPrescriptionImageBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image file required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxPrescriptionImageBytes+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading image"))
			return
		}
		if len(data) > maxPrescriptionImageBytes {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image exceeds 8MB limit"))
			return
		}

		params := prescriptions.UploadParams{
			UserID:      middleware.UserIDFromContext(r.Context()),
			Image:       data,
			ContentType: header.Header.Get("Content-Type"),
			Address:     validators.SanitizeString(r.FormValue("address"), 500),
			Phone:       validators.SanitizeString(r.FormValue("phone"), 20),
		}
		if raw := validators.SanitizeString(r.FormValue("delivery_method"), 32); raw != "" {
			method, parseErr := enums.ParseDeliveryMethod(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method"))
				return
			}
			params.DeliveryMethod = method
		}

		upload, err := svc.Upload(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, upload)
	}
}

// PrescriptionDetail returns one upload, owner-scoped for patients.
func PrescriptionDetail(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		viewer := middleware.UserIDFromContext(r.Context())
		if middleware.RoleFromContext(r.Context()).IsStaff() {
			viewer = uuid.Nil
		}
		upload, err := svc.Get(r.Context(), uploadID, viewer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, upload)
	}
}

type prescriptionCheckoutRequest struct {
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=online cod"`
	DeliveryMethod string `json:"delivery_method" validate:"omitempty"`
	Address        string `json:"address" validate:"omitempty,max=500"`
	Phone          string `json:"phone" validate:"omitempty,max=20"`
}

// PrescriptionCheckout turns an approved upload into an order.
func PrescriptionCheckout(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req prescriptionCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := prescriptions.CheckoutParams{
			UploadID:      uploadID,
			UserID:        middleware.UserIDFromContext(r.Context()),
			PaymentMethod: checkoutsvc.PaymentMethod(req.PaymentMethod),
			Address:       validators.SanitizeString(req.Address, 500),
			Phone:         validators.SanitizeString(req.Phone, 20),
		}
		if req.DeliveryMethod != "" {
			method, parseErr := enums.ParseDeliveryMethod(req.DeliveryMethod)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method"))
				return
			}
			params.DeliveryMethod = method
		}

		order, err := svc.Checkout(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type prescriptionMedicineRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=99"`
	UnitPricePaise int64  `json:"unit_price_paise" validate:"required,min=1"`
}

type prescriptionReviewRequest struct {
	Decision  string                        `json:"decision" validate:"required,oneof=approve reject"`
	Medicines []prescriptionMedicineRequest `json:"medicines" validate:"omitempty,dive"`
}

// StaffPrescriptionReview applies a pharmacist's approve/reject decision.
func StaffPrescriptionReview(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req prescriptionReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reviewer := middleware.UserIDFromContext(r.Context())
		if req.Decision == "reject" {
			upload, rejectErr := svc.Reject(r.Context(), uploadID, reviewer)
			if rejectErr != nil {
				responses.WriteError(r.Context(), logg, w, rejectErr)
				return
			}
			responses.WriteSuccess(w, upload)
			return
		}

		medicines := make([]prescriptions.MedicineParam, 0, len(req.Medicines))
		for _, m := range req.Medicines {
			productID, parseErr := uuid.Parse(m.ProductID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a UUID"))
				return
			}
			medicines = append(medicines, prescriptions.MedicineParam{
				ProductID:      productID,
				Quantity:       m.Quantity,
				UnitPricePaise: m.UnitPricePaise,
			})
		}

		upload, err := svc.Approve(r.Context(), uploadID, reviewer, medicines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, upload)
	}
}

// StaffPrescriptionQueue lists uploads awaiting review, oldest first.
func StaffPrescriptionQueue(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// StaffPrescriptionFulfill closes out a paid prescription.
func StaffPrescriptionFulfill(svc prescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		upload, err := svc.MarkFulfilled(r.Context(), uploadID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, upload)
	}
}
