package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount регистрирует маршруты. authn оборачивает всё, кроме /health и GET /tasks.
func (s *TaskHandler) Mount(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/health", s.HealthCheck)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.ListOpenTasks) // GET /tasks

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Post("/", s.CreateTask)                 // POST /tasks
			r.Get("/my-tasks", s.ListMyTasks)         // GET /tasks/my-tasks
			r.Get("/assigned/me", s.ListAssignedToMe) // GET /tasks/assigned/me

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetTask)                      // GET /tasks/{id}
				r.Post("/bids", s.PlaceBid)                // POST /tasks/{id}/bids
				r.Put("/bids/{bidId}/select", s.SelectBid) // PUT /tasks/{id}/bids/{bidId}/select
				r.Put("/complete", s.CompleteTask)         // PUT /tasks/{id}/complete
				r.Post("/rate", s.RateProvider)            // POST /tasks/{id}/rate
			})
		})
	})

	r.With(authn).Get("/accounts/{id}", s.GetAccount) // GET /accounts/{id}
}
