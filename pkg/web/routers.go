package web

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/bizflow/bizflow/pkg/models/pagectx"
	"github.com/bizflow/bizflow/pkg/settings"
)

type M = render.M

func (s *server) strapRouter() {

	s.ar.Get("/ping", handlerPing)

	s.ar.Route("/api", func(r chi.Router) {
		r.Use(rateLimitMw())
		r.Get("/welcome", s.getWelcome)
		r.Get("/contexts", s.getContexts)
		r.Get("/history/{cid}", s.getHistory)
		r.Post("/chat", s.postChat)
		r.Get("/chat-ws", s.chatWS)
	})

	if s.cfg.DocHandler != nil {
		s.ar.NotFound(s.cfg.DocHandler.ServeHTTP)
	}
}

// rateLimitMw builds an in-memory per-IP limiter from settings, like "60-M".
func rateLimitMw() func(next http.Handler) http.Handler {
	rate, err := limiter.NewRateFromFormatted(settings.Current.RateLimit)
	if err != nil {
		logger().Infow("bad rate limit, limiter disabled", "limit", settings.Current.RateLimit, "err", err)
		return func(next http.Handler) http.Handler { return next }
	}
	mw := mhttp.NewMiddleware(limiter.New(memory.NewStore(), rate))
	return mw.Handler
}

func handlerPing(w http.ResponseWriter, r *http.Request) {
	render.Data(w, r, []byte("Pong\n"))
}

func (s *server) getContexts(w http.ResponseWriter, r *http.Request) {
	routes := pagectx.Routes()
	sort.Strings(routes)
	apiOk(w, r, routes, len(routes))
}
