package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahima-medicare/healthstack-backend/api/controllers"
	"github.com/mahima-medicare/healthstack-backend/api/middleware"
	"github.com/mahima-medicare/healthstack-backend/internal/cart"
	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	checkoutsvc "github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/fulfillment"
	"github.com/mahima-medicare/healthstack-backend/internal/invoices"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	"github.com/mahima-medicare/healthstack-backend/internal/prescriptions"
	gatewaywebhook "github.com/mahima-medicare/healthstack-backend/internal/webhooks/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	pkgredis "github.com/mahima-medicare/healthstack-backend/pkg/redis"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	DB    controllers.Pinger
	Redis *pkgredis.Client

	Catalog       catalog.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        *orders.Repository
	Payments      payments.Service
	Invoices      invoices.Service
	Fulfillment   fulfillment.Service
	Prescriptions prescriptions.Service
	Webhook       *gatewaywebhook.Service
}

// NewRouter mounts the full API surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["database"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// server-to-server, authenticated by signature rather than JWT
	r.Post("/api/v1/webhooks/gateway", controllers.GatewayWebhook(deps.Webhook, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Post("/add/{productID}", controllers.CartAdd(deps.Cart, logg))
			r.Post("/inc/{lineID}", controllers.CartIncrement(deps.Cart, logg))
			r.Post("/dec/{lineID}", controllers.CartDecrement(deps.Cart, logg))
			r.Post("/remove/{lineID}", controllers.CartRemove(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Route("/payment", func(r chi.Router) {
			r.Post("/success", controllers.PaymentConfirm(deps.Payments, logg))
			r.Get("/{orderID}", controllers.PaymentWidget(deps.Payments, logg))
			r.Post("/{orderID}/retry", controllers.PaymentRetry(deps.Payments, logg))
			r.Post("/{orderID}/cod", controllers.PaymentConvertCOD(deps.Payments, logg))
			r.Post("/{orderID}/cancel", controllers.PaymentCancel(deps.Payments, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{invoiceID}", controllers.InvoiceDetail(deps.Invoices, logg))
			r.Get("/{invoiceID}/pdf", controllers.InvoicePDF(deps.Invoices, logg))
		})

		r.Route("/prescriptions", func(r chi.Router) {
			r.Post("/", controllers.PrescriptionUpload(deps.Prescriptions, logg))
			r.Get("/{prescriptionID}", controllers.PrescriptionDetail(deps.Prescriptions, logg))
			r.Post("/{prescriptionID}/checkout", controllers.PrescriptionCheckout(deps.Prescriptions, logg))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Route("/orders/{orderID}", func(r chi.Router) {
				r.Post("/transition", controllers.StaffOrderTransition(deps.Fulfillment, logg))
				r.Post("/collect-cod", controllers.StaffCollectCOD(deps.Fulfillment, logg))
			})
			r.Get("/catalog/expiring", controllers.StaffExpiringStock(deps.Catalog, logg))
			r.Route("/prescriptions", func(r chi.Router) {
				r.Get("/queue", controllers.StaffPrescriptionQueue(deps.Prescriptions, logg))
				r.Post("/{prescriptionID}/review", controllers.StaffPrescriptionReview(deps.Prescriptions, logg))
				r.Post("/{prescriptionID}/fulfill", controllers.StaffPrescriptionFulfill(deps.Prescriptions, logg))
			})
			r.Post("/invoices/{invoiceID}/regenerate", controllers.StaffInvoiceRegenerate(deps.Invoices, logg))
		})
	})

	return r
}
