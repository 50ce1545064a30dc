package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/logging"
	"github.com/fyrsmithlabs/questboard/internal/project"
)

// CreateProjectRequest is the body of POST /api/v1/projects. The creator is
// the caller.
type CreateProjectRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Difficulty      string   `json:"difficulty"`
	MaxParticipants int      `json:"max_participants"`
	XPReward        int64    `json:"xp_reward"`
	Tags            []string `json:"tags"`
	Skills          []string `json:"skills"`
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := s.services.Projects().Create(c.Request().Context(), domain.CreateProjectParams{
		Title:           req.Title,
		Description:     req.Description,
		Difficulty:      domain.Difficulty(req.Difficulty),
		CreatorID:       caller(c),
		MaxParticipants: req.MaxParticipants,
		XPReward:        req.XPReward,
		Tags:            req.Tags,
		Skills:          req.Skills,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c echo.Context) error {
	var (
		opts   project.ListOptions
		status string
	)
	if err := echo.QueryParamsBinder(c).
		String("status", &status).
		String("creator_id", &opts.CreatorID).
		String("member_id", &opts.MemberID).
		Int("limit", &opts.Limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	opts.Status = domain.ProjectStatus(status)
	projects, err := s.services.Projects().List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(projects))
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.services.Projects().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRoster(c echo.Context) error {
	roster, err := s.services.Projects().Roster(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(roster))
}

func (s *Server) handleProjectActivity(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := s.services.Activity().ListForProject(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(entries))
}

func (s *Server) handleJoin(c echo.Context) error {
	entry, err := s.services.Projects().Join(projectCtx(c), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) handleStart(c echo.Context) error {
	p, err := s.services.Projects().Start(projectCtx(c), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleCancel(c echo.Context) error {
	p, err := s.services.Projects().Cancel(projectCtx(c), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleComplete(c echo.Context) error {
	res, err := s.services.Completion().Complete(projectCtx(c), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleProvisionChannel(c echo.Context) error {
	p, err := s.services.Projects().ProvisionChannel(projectCtx(c), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func projectCtx(c echo.Context) context.Context {
	return logging.WithProjectID(c.Request().Context(), c.Param("id"))
}
