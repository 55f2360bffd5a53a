package controllers

import (
	"net/http"
	"time"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	checkoutsvc "github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type checkoutRequest struct {
	Kind           string `json:"kind" validate:"required"`
	DeliveryMethod string `json:"delivery_method" validate:"required"`
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=online cod"`
	Address        string `json:"address" validate:"omitempty,max=500"`
	Phone          string `json:"phone" validate:"omitempty,max=20"`
	CollectionDate string `json:"collection_date" validate:"omitempty,datetime=2006-01-02"`
	CollectionTime string `json:"collection_time" validate:"omitempty,max=10"`
}

// Checkout freezes the caller's open cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseOrderKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind"))
			return
		}
		method, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method"))
			return
		}

		params := checkoutsvc.FreezeParams{
			UserID:         middleware.UserIDFromContext(r.Context()),
			Kind:           kind,
			DeliveryMethod: method,
			Address:        validators.SanitizeString(req.Address, 500),
			Phone:          validators.SanitizeString(req.Phone, 20),
			PaymentMethod:  checkoutsvc.PaymentMethod(req.PaymentMethod),
			CollectionTime: validators.SanitizeString(req.CollectionTime, 10),
		}
		if req.CollectionDate != "" {
			date, parseErr := time.Parse("2006-01-02", req.CollectionDate)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "collection_date must be YYYY-MM-DD"))
				return
			}
			params.CollectionDate = &date
		}

		order, err := svc.Freeze(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
