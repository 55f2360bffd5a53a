package controllers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/api/responses"
	"github.com/mahima-medicare/healthstack-backend/api/validators"
	"github.com/mahima-medicare/healthstack-backend/internal/invoices"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

// InvoiceDetail returns one invoice with its line items.
func InvoiceDetail(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GetInvoice(r.Context(), invoiceID, invoiceViewer(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// InvoicePDF streams the rendered invoice artifact.
func InvoicePDF(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blob, err := svc.GetPDF(r.Context(), invoiceID, invoiceViewer(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", blob.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", blob.Path))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob.Data)
	}
}

// StaffInvoiceRegenerate deletes an invoice and reissues it under a fresh
// number.
func StaffInvoiceRegenerate(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Regenerate(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

// invoiceViewer maps staff callers to the ownership bypass.
func invoiceViewer(r *http.Request) uuid.UUID {
	if middleware.RoleFromContext(r.Context()).IsStaff() {
		return uuid.Nil
	}
	return middleware.UserIDFromContext(r.Context())
}
