package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kioku-srs/kioku/internal/api/middleware"
)

// NewRouter builds the HTTP routing table around the review handler.
func NewRouter(handler *ReviewHandler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Trace)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/reviews", handler.History)
		r.Route("/cards", func(r chi.Router) {
			r.Post("/", handler.AddCard)
			r.Get("/next", handler.NextCard)
			r.Get("/{itemKey}/preview", handler.Preview)
			r.Post("/{itemKey}/review", handler.SubmitReview)
			r.Get("/{itemKey}/retrievability", handler.Retrievability)
			r.Post("/{itemKey}/reschedule", handler.Reschedule)
			r.Delete("/{itemKey}", handler.RemoveCard)
		})
	})

	return r
}
