package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/ws"
)

func SetupRoutes(s remote.Store, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(s, log, ws.Hooks{OnOpen: subscriberOpened, OnClose: subscriberClosed}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", CreateSession(s, log))
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", GetSession(s, log))
			r.Post("/version", IncrementVersion(s, log))
			r.Post("/batch", BatchWrite(s, log))
			r.Get("/{collection}", ListDocs(s, log))
			r.Put("/{collection}/{id}", WriteDoc(s, log, remote.OpSet))
			r.Patch("/{collection}/{id}", WriteDoc(s, log, remote.OpUpdate))
			r.Delete("/{collection}/{id}", DeleteDoc(s, log))
		})
	})
	return r
}

// requestLogger logs one line per request. Websocket upgrades log when the
// stream ends.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
