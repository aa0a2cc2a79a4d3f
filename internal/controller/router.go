package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c *controller) GetRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(c.requestIdMw())
	r.Use(c.loggingMw())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", c.healthz)

		r.Post("/room/create", c.createRoom)

		r.Route("/ws", func(r chi.Router) {
			r.Get("/room/{room-id}/join", c.joinRoom)
		})
	})

	return r
}
