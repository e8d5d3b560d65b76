package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
	"github.com/quickserve/pos-order/internal/service/services/ordersvc"
	addorderitem "github.com/quickserve/pos-order/internal/transport/http/add_order_item"
	cancelorder "github.com/quickserve/pos-order/internal/transport/http/cancel_order"
	cancelorderitem "github.com/quickserve/pos-order/internal/transport/http/cancel_order_item"
	completeorder "github.com/quickserve/pos-order/internal/transport/http/complete_order"
	createorder "github.com/quickserve/pos-order/internal/transport/http/create_order"
	getorder "github.com/quickserve/pos-order/internal/transport/http/get_order"
	listorders "github.com/quickserve/pos-order/internal/transport/http/list_orders"
	submitorder "github.com/quickserve/pos-order/internal/transport/http/submit_order"
	updatedraftorder "github.com/quickserve/pos-order/internal/transport/http/update_draft_order"
	updateitemstatus "github.com/quickserve/pos-order/internal/transport/http/update_item_status"
	"github.com/quickserve/pos-order/pkg/http/middleware/authn"
	ratelimitmw "github.com/quickserve/pos-order/pkg/http/middleware/ratelimit"
	"github.com/quickserve/pos-order/pkg/http/middleware/trace"
	"github.com/quickserve/pos-order/pkg/logger"
)

type service interface {
	CreateDraftOrder(ctx context.Context, model ordersvc.CreateDraftOrderModel) (order.Order, error)
	SubmitOrderToKitchen(ctx context.Context, orderID int64) (order.Order, error)
	AddOrderItem(ctx context.Context, model ordersvc.AddOrderItemModel) (order.Order, error)
	UpdateDraftOrder(ctx context.Context, model ordersvc.UpdateDraftOrderModel) (order.Order, error)
	UpdateOrderItemStatus(ctx context.Context, orderItemID int64, newStatus orderitem.Status) (order.Order, error)
	CancelOrderItem(ctx context.Context, orderItemID int64, reason string) (order.Order, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) (order.Order, error)
	CompleteOrder(ctx context.Context, orderID int64) (order.Order, error)
	GetOrder(ctx context.Context, orderID int64) (order.Order, error)
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
	limiter ratelimitmw.Limiter
}

func NewHTTPTransport(service service, limiter ratelimitmw.Limiter) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
		limiter: limiter,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport. Mutating
// lifecycle endpoints go through the rate limiter; reads do not.
func (h *HTTPTransport) RegisterRoutes() {
	rateLimit := ratelimitmw.NewRateLimitMiddleware(h.limiter, ratelimitmw.Config{
		Limit:         viper.GetInt64("ratelimit.limit"),
		Window:        time.Duration(viper.GetInt("ratelimit.window_seconds")) * time.Second,
		BlockDuration: time.Duration(viper.GetInt("ratelimit.block_seconds")) * time.Second,
	})

	h.router.Route("/api", func(r chi.Router) {
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderId}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit)

			r.Post("/orders", h.createDraftOrder)
			r.Put("/orders/{orderId}", h.updateDraftOrder)
			r.Post("/orders/{orderId}/submit", h.submitOrder)
			r.Post("/orders/{orderId}/items", h.addOrderItem)
			r.Post("/orders/{orderId}/cancel", h.cancelOrder)
			r.Post("/orders/{orderId}/complete", h.completeOrder)
			r.Post("/order-items/{orderItemId}/cancel", h.cancelOrderItem)
			r.Post("/order-items/{orderItemId}/status", h.updateItemStatus)
		})
	})
}

func (h *HTTPTransport) createDraftOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateDraftOrder(w, r, h.service)
}

func (h *HTTPTransport) updateDraftOrder(w http.ResponseWriter, r *http.Request) {
	updatedraftorder.UpdateDraftOrder(w, r, h.service)
}

func (h *HTTPTransport) submitOrder(w http.ResponseWriter, r *http.Request) {
	submitorder.SubmitOrder(w, r, h.service)
}

func (h *HTTPTransport) addOrderItem(w http.ResponseWriter, r *http.Request) {
	addorderitem.AddOrderItem(w, r, h.service)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.service)
}

func (h *HTTPTransport) completeOrder(w http.ResponseWriter, r *http.Request) {
	completeorder.CompleteOrder(w, r, h.service)
}

func (h *HTTPTransport) cancelOrderItem(w http.ResponseWriter, r *http.Request) {
	cancelorderitem.CancelOrderItem(w, r, h.service)
}

func (h *HTTPTransport) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	updateitemstatus.UpdateItemStatus(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)
	router.Use(authn.NewIdentityMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
