package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgstate/internal/orgservice"
)

// NewRouter mounts the state API. With authEnabled every route needs the
// bearer token; the event stream also accepts it as ?access_token=.
// events may be nil, in which case /events is not served.
func NewRouter(svc *orgservice.Service, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token, false))
		r.Use(noStore)

		r.Get("/state", h.State)
		r.Get("/buckets/{name}", h.Bucket)
		r.Get("/reminders", h.Reminders)
		r.Get("/tags", h.Tags)
		r.Get("/search", h.Search)
		r.Get("/backlinks", h.Backlinks)
	})

	if events != nil {
		r.With(AuthMiddleware(authEnabled, token, true)).Get("/events", events.ServeHTTP)
	}

	return r
}
