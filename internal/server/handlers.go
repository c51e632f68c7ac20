package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harper/cenly/internal/app"
	"github.com/harper/cenly/internal/models"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type sourceView struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

type chatResponse struct {
	SessionID   string       `json:"session_id"`
	Answer      string       `json:"answer"`
	Placeholder bool         `json:"placeholder,omitempty"`
	Sources     []sourceView `json:"sources"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
	Count     int              `json:"count"`
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = models.NewSessionID(time.Now())
	}

	reply, err := s.app.Assistant.Respond(c.Request().Context(), req.Message, req.SessionID)
	if err != nil {
		return err
	}

	resp := chatResponse{
		SessionID:   reply.ThreadID,
		Answer:      reply.Answer,
		Placeholder: reply.Placeholder,
		Sources:     make([]sourceView, 0, len(reply.Sources)),
	}
	for _, r := range reply.Sources {
		resp.Sources = append(resp.Sources, sourceView{
			Label: r.Chunk.Label(),
			Text:  r.Chunk.Text,
			Score: r.Score,
			Rank:  r.Rank,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) newSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, map[string]string{"session_id": models.NewSessionID(time.Now())})
}

func (s *Server) listSessions(c echo.Context) error {
	threads, err := s.app.Store.Threads(c.Request().Context())
	if err != nil {
		return err
	}
	if threads == nil {
		threads = []models.ThreadInfo{}
	}
	return c.JSON(http.StatusOK, threads)
}

func (s *Server) sessionMessages(c echo.Context) error {
	id := c.Param("id")
	msgs, err := s.app.Store.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(http.StatusOK, sessionResponse{SessionID: id, Messages: msgs, Count: len(msgs)})
}

func (s *Server) clearSession(c echo.Context) error {
	if err := s.app.Store.Clear(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type statusResponse struct {
	app.Status
	Hint string `json:"hint,omitempty"`
}

func (s *Server) status(c echo.Context) error {
	st := statusResponse{Status: s.app.Status(c.Request().Context())}
	if !st.Backend.Reachable {
		st.Hint = app.Hint(s.app.Config, models.ErrBackendUnavailable)
	}
	return c.JSON(http.StatusOK, st)
}
