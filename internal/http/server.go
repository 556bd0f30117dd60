// Package http serves the chat page and its JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pdf-chat-rag/internal/app"
	"pdf-chat-rag/internal/llm"
	"pdf-chat-rag/internal/models"
	"pdf-chat-rag/internal/processor"
	"pdf-chat-rag/internal/session"
	"pdf-chat-rag/internal/vectorindex"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SessionCookie carries the session ID between requests
const SessionCookie = "pdfchat_session"

// maxUploadBytes bounds request bodies on the upload route
const maxUploadBytes = "64M"

// Server provides the chat UI and API
type Server struct {
	echo   *echo.Echo
	app    *app.App
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer builds the chat server around a. A nil cfg listens on
// 127.0.0.1:8080.
func NewServer(a *app.App, logger *zap.Logger, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, errors.New("chat server needs an app")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8080}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(accessLog(logger))

	s := &Server{
		echo:   e,
		app:    a,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

// accessLog writes one line per request once the handler has finished
func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)

			req, res := c.Request(), c.Response()
			logger.Debug("request served",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Int64("bytes", res.Size),
				zap.Duration("took", time.Since(started)),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

// errorHandler reports echo's own failures, such as an oversized upload or
// an unknown route, in the same JSON shape as handler errors
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = http.StatusText(code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.app.Metrics().Handler()))

	api := s.echo.Group("/api")
	api.POST("/upload", s.handleUpload, middleware.BodyLimit(maxUploadBytes))
	api.POST("/messages", s.handleAsk)
	api.GET("/messages", s.handleMessages)
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// AskRequest is the request body for POST /api/messages.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /api/messages. Error is set when
// the answer is the failure message.
type AskResponse struct {
	Answer   string           `json:"answer"`
	Messages []models.Message `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

// MessagesResponse is the response body for GET /api/messages.
type MessagesResponse struct {
	Messages    []models.Message `json:"messages"`
	State       string           `json:"state"`
	HasDocument bool             `json:"has_document"`
}

// UploadResponse is the response body for POST /api/upload.
type UploadResponse struct {
	Message string              `json:"message"`
	Result  models.UploadResult `json:"result"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// existingSession returns the caller's session without creating one, so
// read-only requests leave the store untouched
func (s *Server) existingSession(c echo.Context) *session.Session {
	cookie, err := c.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	return s.app.Sessions.Get(cookie.Value)
}

// session returns the caller's session, issuing a cookie for new ones
func (s *Server) session(c echo.Context) *session.Session {
	var id string
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		id = cookie.Value
	}

	sess, existed := s.app.Sessions.GetOrCreate(id)
	if !existed {
		c.SetCookie(&http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) handleUpload(c echo.Context) error {
	sess := s.session(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "multipart field \"file\" is required"})
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "only .pdf files are accepted"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "could not read uploaded file"})
	}
	defer src.Close()

	result, err := s.app.Upload(c.Request().Context(), sess, fh.Filename, src)
	if err != nil {
		s.logger.Warn("upload failed", zap.String("file", fh.Filename), zap.Error(err))
		return c.JSON(uploadStatus(err), ErrorResponse{Error: err.Error()})
	}

	msg := fmt.Sprintf("Indexed %s: %d pages, %d chunks.", result.FileName, result.Pages, result.Chunks)
	if result.Duplicate {
		msg = fmt.Sprintf("%s was already indexed.", result.FileName)
	}
	return c.JSON(http.StatusOK, UploadResponse{Message: msg, Result: *result})
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, processor.ErrParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vectorindex.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAsk(c echo.Context) error {
	sess := s.session(c)

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	answer, err := s.app.Ask(c.Request().Context(), sess, req.Question)
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrQuestionPending):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, llm.ErrGeneration):
		return c.JSON(http.StatusOK, AskResponse{Answer: answer, Messages: sess.Messages(), Error: err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, AskResponse{Answer: answer, Messages: sess.Messages()})
}

func (s *Server) handleMessages(c echo.Context) error {
	sess := s.existingSession(c)
	if sess == nil {
		return c.JSON(http.StatusOK, MessagesResponse{
			Messages: []models.Message{},
			State:    session.Idle.String(),
		})
	}
	return c.JSON(http.StatusOK, MessagesResponse{
		Messages:    sess.Messages(),
		State:       sess.State().String(),
		HasDocument: sess.HasDocument(),
	})
}

func (s *Server) handleIndex(c echo.Context) error {
	var data pageData
	if sess := s.existingSession(c); sess != nil {
		data = pageData{Messages: sess.Messages(), HasDocument: sess.HasDocument()}
	}

	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return c.HTML(http.StatusOK, buf.String())
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
