// Package httpapi exposes one studio session over HTTP for browser or script
// front ends.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter mounts the session, action and chat endpoints under /v1.
func NewRouter(app *App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		RequestLogger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", app.Session)
		r.Put("/mode", app.SetMode)
		r.Get("/image", app.DownloadImage)
		r.Post("/image", app.UploadImage)
		r.Delete("/image", app.ClearImage)
	})

	r.Post("/v1/actions", app.ImageAction)
	r.Post("/v1/chat", app.Chat)

	return r
}
