package controllers

import (
	"net/http"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	"github.com/mahima-medicare/healthstack-backend/internal/cart"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type cartAddRequest struct {
	Quantity int `json:"quantity" validate:"omitempty,min=1,max=99"`
}

// CartAdd puts a product in the caller's cart, or bumps its quantity.
func CartAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := cartAddRequest{Quantity: 1}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.Quantity == 0 {
				req.Quantity = 1
			}
		}

		line, err := svc.Add(r.Context(), middleware.UserIDFromContext(r.Context()), productID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}

// CartIncrement bumps a line's quantity by one.
func CartIncrement(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.ParseUUIDParam(r, "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, err := svc.Increment(r.Context(), middleware.UserIDFromContext(r.Context()), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, line)
	}
}

// CartDecrement lowers a line's quantity by one, removing it at zero.
func CartDecrement(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.ParseUUIDParam(r, "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, err := svc.Decrement(r.Context(), middleware.UserIDFromContext(r.Context()), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if line == nil {
			responses.WriteSuccess(w, map[string]bool{"removed": true})
			return
		}
		responses.WriteSuccess(w, line)
	}
}

// CartRemove drops a line regardless of quantity.
func CartRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.ParseUUIDParam(r, "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), middleware.UserIDFromContext(r.Context()), lineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}

// CartFetch returns the open cart of the requested kind.
func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := enums.ParseOrderKind(validators.SanitizeString(r.URL.Query().Get("kind"), 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "kind query parameter must be pharmacy, test, or prescription"))
			return
		}
		summary, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
