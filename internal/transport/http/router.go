package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
)

type Deps struct {
	Handler        *Handler
	Verifier       httpmw.Verifier
	WS             http.Handler
	AllowedOrigins []string
	Log            *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.RequestLogger(d.Log))
	r.Use(middlewareChi.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint; auth happens in-band
	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmw.Auth(d.Verifier))
		api.Use(middlewareChi.Timeout(30 * time.Second))

		api.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", d.Handler.CreateRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetRoom)
				rr.Get("/messages", d.Handler.History)
				rr.Get("/unread", d.Handler.Unread)
				rr.Post("/read", d.Handler.MarkRead)
				rr.Get("/read-status", d.Handler.ReadStatuses)
				rr.Get("/participants", d.Handler.Participants)
			})
		})

		api.Get("/teams/{teamId}/room", d.Handler.TeamRoom)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
