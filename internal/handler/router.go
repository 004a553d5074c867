package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/menuboard/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса меню-бордов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/tenants", h.CreateTenant)
		r.Post("/tenants/{id}/token", h.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(h.tenants.Middleware)

			r.Get("/menu", h.GetMenu)

			r.Route("/tiers", func(r chi.Router) {
				r.Get("/", h.ListTiers)
				r.Post("/", h.CreateTier)
				r.Put("/{id}", h.UpdateTier)
				r.Delete("/{id}", h.DeleteTier)
			})

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListRules)
				r.Post("/", h.CreateRule)
				r.Put("/{id}", h.UpdateRule)
				r.Delete("/{id}", h.DeleteRule)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})

			r.Route("/bundles", func(r chi.Router) {
				r.Get("/", h.ListBundles)
				r.Post("/", h.CreateBundle)
				r.Post("/quote", h.QuoteBundle)
				r.Get("/{id}", h.GetBundle)
				r.Delete("/{id}", h.DeleteBundle)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
