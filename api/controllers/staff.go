package controllers

import (
	"net/http"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/fulfillment"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type transitionRequest struct {
	ToStatus string `json:"to_status" validate:"required,max=32"`
	Note     string `json:"note" validate:"omitempty,max=500"`
}

// StaffOrderTransition drives an order through its lifecycle.
func StaffOrderTransition(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), orderID, req.ToStatus, actorFromRequest(r), validators.SanitizeString(req.Note, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type collectCODRequest struct {
	AmountReceivedPaise int64  `json:"amount_received_paise" validate:"required,min=1"`
	Note                string `json:"note" validate:"omitempty,max=500"`
}

// StaffCollectCOD records cash received at handover.
func StaffCollectCOD(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req collectCODRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CollectCOD(r.Context(), orderID, actorFromRequest(r), req.AmountReceivedPaise, validators.SanitizeString(req.Note, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// StaffExpiringStock reports batches expiring inside the horizon.
func StaffExpiringStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		within, err := validators.ParseQueryInt(r, "within_days", 0, 1, 3650)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListExpiring(r.Context(), within)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func actorFromRequest(r *http.Request) fulfillment.Actor {
	return fulfillment.Actor{
		StaffID: middleware.UserIDFromContext(r.Context()),
		Role:    middleware.RoleFromContext(r.Context()),
	}
}
