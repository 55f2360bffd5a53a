package controllers

import (
	"io"
	"net/http"

	"github.com/mahima-medicare/healthstack-backend/api/responses"
	gatewaywebhook "github.com/mahima-medicare/healthstack-backend/internal/webhooks/gateway"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

const (
	gatewaySignatureHeader = "X-Gateway-Signature"
	gatewayEventIDHeader   = "X-Gateway-Event-Id"
)

// GatewayWebhook is the payment gateway's server-to-server sink.
func GatewayWebhook(svc *gatewaywebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading webhook body"))
			return
		}

		err = svc.Handle(r.Context(), body, r.Header.Get(gatewaySignatureHeader), r.Header.Get(gatewayEventIDHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
