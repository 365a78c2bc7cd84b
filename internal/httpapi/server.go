package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ath-watcher/internal/storage"
)

// AthResponse is the body of GET /ath.
type AthResponse struct {
	Asset    string `json:"asset"`
	Currency string `json:"currency"`
	ATH      uint64 `json:"ath"`
}

// Server exposes health, current ATH and Prometheus metrics.
type Server struct {
	echo     *echo.Echo
	store    storage.Store
	asset    string
	currency string
	logger   zerolog.Logger
}

// New builds the status server. gatherer may be nil to omit /metrics.
func New(store storage.Store, asset, currency string, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		store:    store,
		asset:    asset,
		currency: currency,
		logger:   logger.With().Str("component", "http").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogging())

	e.GET("/healthz", s.health)
	e.GET("/ath", s.currentATH)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("status server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) currentATH(c echo.Context) error {
	return c.JSON(http.StatusOK, AthResponse{
		Asset:    s.asset,
		Currency: s.currency,
		ATH:      s.store.Load(c.Request().Context()),
	})
}

func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Debug().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("http request")
			return err
		}
	}
}
