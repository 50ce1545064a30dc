package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
}

// AwardRequest is the body of POST /api/v1/xp/award.
// Amount is checked by the ledger so a non-positive value reports InvalidAmount.
type AwardRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason" validate:"required,max=200"`
	ProjectID string `json:"project_id"`
}

// ProgressResponse is the body of GET /api/v1/users/:id/progress.
type ProgressResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	leveling.Progress
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := s.services.Users().Create(c.Request().Context(), domain.CreateUserParams{Username: req.Username})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) handleGetUser(c echo.Context) error {
	u, err := s.services.Users().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleUserProgress(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := s.services.Users().Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProgressResponse{
		UserID:   u.ID,
		Username: u.Username,
		Progress: leveling.ProgressOf(u.TotalXP),
	})
}

func (s *Server) handleUserActivity(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := s.services.Activity().ListForUser(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(entries))
}

func (s *Server) handleUserXP(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	history, err := s.services.Ledger().History(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(history))
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := s.services.Ledger().Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(entries))
}

func (s *Server) handleLevels(c echo.Context) error {
	maxLevel := 20
	if err := echo.QueryParamsBinder(c).Int("max", &maxLevel).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "max must be an integer")
	}
	if maxLevel < 1 || maxLevel > 200 {
		return echo.NewHTTPError(http.StatusBadRequest, "max must be between 1 and 200")
	}
	return c.JSON(http.StatusOK, leveling.Table(maxLevel))
}

func (s *Server) handleAward(c echo.Context) error {
	var req AwardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	var opts []xp.AwardOption
	if req.ProjectID != "" {
		opts = append(opts, xp.WithProject(req.ProjectID))
	}
	res, err := s.services.Ledger().Award(c.Request().Context(), req.UserID, req.Amount, req.Reason, opts...)
	if err != nil {
		return err
	}
	s.logger.Info("manual xp award",
		zap.String("user.id", req.UserID),
		zap.String("granted_by", caller(c)),
		zap.Int64("amount", req.Amount))
	return c.JSON(http.StatusOK, res)
}

// queryLimit reads the optional ?limit= parameter; zero means the store default.
func queryLimit(c echo.Context) (int, error) {
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}
	if limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must not be negative")
	}
	return limit, nil
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
