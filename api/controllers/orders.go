package controllers

import (
	"net/http"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/pagination"
)

type ordersPage struct {
	Orders     any    `json:"orders"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// OrdersList returns a cursor-paged view of the caller's orders.
func OrdersList(repo *orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := repo.ListByUser(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.Params{
			Limit:  limit,
			Cursor: validators.SanitizeString(r.URL.Query().Get("cursor"), 200),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders"))
			return
		}
		responses.WriteSuccess(w, ordersPage{Orders: rows, NextCursor: next})
	}
}

// OrderDetail returns one of the caller's orders with frozen lines.
func OrderDetail(repo *orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		if !middleware.RoleFromContext(r.Context()).IsStaff() &&
			order.UserID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}
