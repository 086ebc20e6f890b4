package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", headerPrefix + guestIdHeader},
		ExposedHeaders: []string{headerPrefix + requestIdHeader},
		MaxAge:         300,
	}))

	if c.statsHandler != nil {
		r.Method(http.MethodGet, "/debug/vars", c.statsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Group(func(r chi.Router) {
			r.Use(c.identityMw)

			r.Post("/rooms", c.createRoom)
			r.Route("/rooms/{room-id}", func(r chi.Router) {
				r.Use(c.roomIdMw)

				r.Get("/sync", c.getRoomSync)
				r.Put("/sync", c.putRoomSync)
				r.Post("/join", c.joinRoom)
				r.Post("/presence/heartbeat", c.heartbeat)
				r.Post("/presence/leave", c.leaveRoom)
				r.Put("/participants/{participant-id}", c.updateParticipant)
				r.Post("/kicks/{participant-id}", c.kickParticipant)
				r.Delete("/kicks/{participant-id}", c.unkickParticipant)
			})
		})
	})

	return r
}
