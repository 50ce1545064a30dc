package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/questboard/internal/notify"
)

// UnreadCountResponse is the body of GET /api/v1/notifications/unread_count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse is the body of POST /api/v1/notifications/read_all.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ReadStateResponse is the body of the read/unread toggles.
type ReadStateResponse struct {
	ID     int64 `json:"id"`
	IsRead bool  `json:"is_read"`
}

func (s *Server) handleInbox(c echo.Context) error {
	var opts notify.InboxOptions
	if err := echo.QueryParamsBinder(c).
		Bool("unread_only", &opts.UnreadOnly).
		Int("limit", &opts.Limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	inbox, err := s.services.Notifications().Inbox(c.Request().Context(), caller(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(inbox))
}

func (s *Server) handleUnreadCount(c echo.Context) error {
	n, err := s.services.Notifications().UnreadCount(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UnreadCountResponse{Unread: n})
}

func (s *Server) handleMarkAllRead(c echo.Context) error {
	n, err := s.services.Notifications().MarkAllRead(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MarkAllReadResponse{Updated: n})
}

func (s *Server) handleSetRead(read bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "notification id must be a positive integer")
		}
		if err := s.services.Notifications().SetRead(c.Request().Context(), caller(c), id, read); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ReadStateResponse{ID: id, IsRead: read})
	}
}
