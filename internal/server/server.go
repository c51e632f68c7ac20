// ABOUTME: Web UI and JSON API for chatting with Cenly, built on echo
// ABOUTME: Errors are rendered as {"error", "hint"}; backend failures map to 502
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/harper/cenly/internal/app"
	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/models"
)

//go:embed static/index.html
var indexHTML []byte

// shutdownTimeout bounds how long in-flight requests may finish after ctx ends
const shutdownTimeout = 10 * time.Second

// Server serves the chat page and API for one App
type Server struct {
	app    *app.App
	echo   *echo.Echo
	logger *log.Logger
}

// New builds the router
func New(a *app.App) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{app: a, echo: e, logger: a.Logger.WithPrefix("http")}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/", s.page)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	api := e.Group("/api")
	api.POST("/chat", s.chat)
	api.POST("/sessions", s.newSession)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id/messages", s.sessionMessages)
	api.DELETE("/sessions/:id", s.clearSession)
	api.GET("/status", s.status)
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) page(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, indexHTML)
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, models.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrBackendUnavailable):
		code = http.StatusBadGateway
	case errors.Is(err, models.ErrIndexModelMismatch), errors.Is(err, index.ErrCorruptIndex):
		code = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}

	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "status", code, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "status", code, "err", err)
	}

	resp := errorResponse{Error: msg, Hint: app.Hint(s.app.Config, err)}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, resp)
}
