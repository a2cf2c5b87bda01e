package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server — служебный HTTP сервер юзербота: /healthz и /metrics.
// Пользовательского веб-интерфейса нет, сервер нужен оркестратору
// и Prometheus.
type Server struct {
	Router chi.Router
	log    zerolog.Logger
	srv    *http.Server
}

// NewServer создаёт сервер с базовыми middlewares.
// ready сообщает, авторизован ли MTProto-клиент: до готовности
// /healthz отвечает 503, чтобы оркестратор не слал трафик раньше времени.
func NewServer(logger zerolog.Logger, ready func() bool) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{Router: r, log: logger}
}

// Start запускает сервер и гасит его при отмене контекста.
func (s *Server) Start(ctx context.Context, addr string) {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http: graceful shutdown не удался")
		}
	}()

	go func() {
		s.log.Info().Str("addr", addr).Msg("http: служебный сервер запущен")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http: сервер остановился с ошибкой")
		}
	}()
}
