package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/config"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/indexing"
	"github.com/meridian-social/meridian/internal/present/rest/middleware"
	"github.com/meridian-social/meridian/internal/present/rest/presenter"
	"github.com/meridian-social/meridian/internal/service"
	"github.com/meridian-social/meridian/internal/usecase"
)

type Handler struct {
	config        config.Config
	engine        *indexing.Engine
	feeds         *usecase.FeedUsecase
	threads       *usecase.ThreadUsecase
	notifications *usecase.NotificationUsecase
	signal        *service.SignalService
}

func NewHandler(
	config config.Config,
	engine *indexing.Engine,
	feeds *usecase.FeedUsecase,
	threads *usecase.ThreadUsecase,
	notifications *usecase.NotificationUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:        config,
		engine:        engine,
		feeds:         feeds,
		threads:       threads,
		notifications: notifications,
		signal:        signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/records", h.handleIndexRecord)
	e.GET("/records/:uri", h.handleGetRecord)
	e.DELETE("/records/:uri", h.handleDeleteRecord)
	e.GET("/feeds/author/:actor", h.handleAuthorFeed)
	e.GET("/feeds/timeline", h.handleTimeline)
	e.GET("/thread", h.handleThread)
	e.GET("/notifications", h.handleNotifications)
	e.GET("/realtime", h.handleRealtime)
}

type indexRequest struct {
	URI    string          `json:"uri"`
	Record json.RawMessage `json:"record"`
}

func (h *Handler) handleIndexRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var req indexRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.URI == "" || len(req.Record) == 0 {
		return presenter.BadRequestMessage(c, "uri and record are required")
	}

	events, err := h.engine.IndexRecord(ctx, req.URI, req.Record)
	if err != nil {
		return presenter.Error(c, err)
	}
	h.signal.PublishAll(ctx, events)

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleGetRecord(c echo.Context) error {
	ctx := c.Request().Context()

	uri, err := url.QueryUnescape(c.Param("uri"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid uri")
	}
	record, err := h.engine.GetRecord(ctx, uri)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"uri": uri, "record": record})
}

func (h *Handler) handleDeleteRecord(c echo.Context) error {
	ctx := c.Request().Context()

	uri, err := url.QueryUnescape(c.Param("uri"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid uri")
	}
	events, err := h.engine.DeleteRecord(ctx, uri)
	if err != nil {
		return presenter.Error(c, err)
	}
	h.signal.PublishAll(ctx, events)

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func pageOpts(c echo.Context) usecase.PageOpts {
	limit := domain.DefaultPageSize
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > domain.MaxPageSize {
		limit = domain.MaxPageSize
	}
	return usecase.PageOpts{
		Limit:  limit,
		Cursor: c.QueryParam("cursor"),
	}
}

func (h *Handler) handleAuthorFeed(c echo.Context) error {
	ctx := c.Request().Context()

	actor := c.Param("actor")
	if actor == "" {
		return presenter.BadRequestMessage(c, "actor is required")
	}
	viewer := middleware.ViewerFromContext(ctx)

	page, err := h.feeds.AuthorFeed(ctx, actor, viewer, pageOpts(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleTimeline(c echo.Context) error {
	ctx := c.Request().Context()

	viewer := middleware.ViewerFromContext(ctx)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity is required")
	}

	page, err := h.feeds.Timeline(ctx, viewer, pageOpts(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleThread(c echo.Context) error {
	ctx := c.Request().Context()

	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri parameter is required")
	}
	parentHeight := 0
	if s := c.QueryParam("parentHeight"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid parentHeight parameter")
		}
		parentHeight = n
	}
	depth := 0
	if s := c.QueryParam("depth"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid depth parameter")
		}
		depth = n
	}
	viewer := middleware.ViewerFromContext(ctx)

	thread, err := h.threads.ThreadView(ctx, uri, viewer, parentHeight, depth)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"thread": thread})
}

func (h *Handler) handleNotifications(c echo.Context) error {
	ctx := c.Request().Context()

	viewer := middleware.ViewerFromContext(ctx)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity is required")
	}

	page, err := h.notifications.List(ctx, viewer, pageOpts(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, page)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string   `json:"type"`
	Dids []string `json:"dids"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	input := make(chan []string)
	defer close(input)
	output := make(chan meridian.NotificationEvent)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				input <- req.Dids
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
