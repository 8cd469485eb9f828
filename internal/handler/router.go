package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/DzNk/PracticeAstuWinterBack/internal/middleware"
	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Require(model.PermissionManageUsers))

				r.Post("/create", h.CreateUser)
				r.Post("/list", h.ListUsers)
				r.Post("/edit", h.EditUser)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Require(model.PermissionSellProducts))

				r.Post("/list", h.ListProducts)
				r.Post("/orders/list", h.ListOrders)
				r.Post("/orders/create", h.CreateOrder)
				r.Post("/orders/download", h.DownloadOrder)
				r.Post("/sales/list", h.ListUserSales)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Require(model.PermissionManageProducts))

				r.Post("/create", h.CreateProduct)
				r.Post("/edit", h.EditProduct)
				r.Post("/sales-request", h.CreateSalesRequest)
				r.Post("/orders/finish", h.FinishOrder)
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
