// Package server exposes the conversational agent over HTTP: one chat
// endpoint plus session history management, all behind bearer JWT auth.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	sessionx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/session"
)

type Config struct {
	Addr      string        `envconfig:"ADDR" split_words:"true" default:":8080"`
	JWTSecret string        `envconfig:"JWT_SECRET" split_words:"true" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// ChatService is the orchestrator surface the server depends on.
type ChatService interface {
	Handle(ctx context.Context, id contractx.Identity, message string) (contractx.ChatResult, error)
}

type Server struct {
	echo     *echo.Echo
	chat     ChatService
	sessions contractx.SessionStore
	cfg      Config
}

func New(cfg Config, chat ChatService, sessions contractx.SessionStore) (*Server, error) {
	if chat == nil {
		return nil, errors.New("chat service is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, chat: chat, sessions: sessions, cfg: cfg}

	e.GET("/healthz", s.health)

	auth := AuthMiddleware([]byte(cfg.JWTSecret))
	e.POST("/chat", s.postChat, auth)
	e.GET("/chat/history", s.getHistory, auth)
	e.DELETE("/chat/history", s.deleteHistory, auth)

	return s, nil
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server starting")
	return s.echo.Start(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) postChat(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(contractx.CodeAuthorization, "no identity on request"))
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(contractx.CodeValidation, "invalid request body"))
	}

	ctx := c.Request().Context()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	result, err := s.chat.Handle(ctx, id, req.Message)
	if err != nil {
		log.Error().Err(err).Str("user", id.UserID).Msg("chat turn failed")
		return c.JSON(statusFor(err), errorBody(contractx.CodeOf(err), err.Error()))
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getHistory(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(contractx.CodeAuthorization, "no identity on request"))
	}
	history, err := s.sessions.Read(c.Request().Context(), id.UserID)
	if err != nil {
		// A user without a session yet simply has no history; anything
		// else is a store failure the caller must see.
		if !errors.Is(err, sessionx.ErrSessionNotFound) {
			log.Error().Err(err).Str("user", id.UserID).Msg("session read failed")
			return c.JSON(statusFor(err), errorBody(contractx.CodeOf(err), "failed to load chat history"))
		}
		history = nil
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":   id.UserID,
		"chat_history": history,
	})
}

func (s *Server) deleteHistory(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(contractx.CodeAuthorization, "no identity on request"))
	}
	if err := s.sessions.Clear(c.Request().Context(), id.UserID); err != nil {
		log.Warn().Err(err).Str("user", id.UserID).Msg("session clear failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": id.UserID,
		"cleared":    true,
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, contractx.ErrUnknownRole), errors.Is(err, contractx.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, contractx.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, contractx.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
