package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apperrors "github.com/plus-me/backend/internal/errors"
)

type createTagRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListTags(c echo.Context) error {
	tags, err := s.app.ListTags(c.Request().Context())
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(tags))
}

func (s *Server) handleCreateTag(c echo.Context) error {
	var req createTagRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == "" {
		return apperrors.ValidationError("name must not be empty")
	}

	tag, err := s.app.CreateTag(c.Request().Context(), req.Name)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusCreated, tag)
}

func (s *Server) handleQuestionsByTag(c echo.Context) error {
	raw := c.Param("id")
	tagID, err := uuid.Parse(raw)
	if err != nil {
		return apperrors.ValidationError("invalid tag ID").WithField("id", raw)
	}

	questions, err := s.app.QuestionsByTag(c.Request().Context(), tagID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(questions))
}
