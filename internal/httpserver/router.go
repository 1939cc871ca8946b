package httpserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chatrelay/internal/middleware"
	"chatrelay/internal/observability"
)

type RouterDeps struct {
	Logger  *slog.Logger
	Service ChatService
	// EnvReport отчёт для /api/test-env; не должен содержать секретов.
	EnvReport       func() any
	Metrics         *observability.Metrics
	CORSOrigins     string
	RateLimitPerMin int
	ServiceName     string
}

// ParseOrigins разбивает список origin через запятую; пусто = "*".
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	out := make([]string, 0, 4)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	h := &handlers{svc: deps.Service, env: deps.EnvReport, logger: deps.Logger}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(deps.Metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: ParseOrigins(deps.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Group(func(wr chi.Router) {
			if deps.RateLimitPerMin > 0 {
				wr.Use(httprate.LimitByIP(deps.RateLimitPerMin, time.Minute))
			}
			wr.Post("/chat/create", h.createChat)
			wr.Post("/chat/{chat_id}/message", h.sendMessage)
		})
		api.Get("/chat/{chat_id}", h.getChat)
		api.Get("/prompts", h.listPrompts)
		api.Get("/test-env", h.testEnv)
	})

	name := deps.ServiceName
	if name == "" {
		name = "chatrelay"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
