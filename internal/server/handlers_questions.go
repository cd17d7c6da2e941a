package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/plus-me/backend/internal/domain"
	apperrors "github.com/plus-me/backend/internal/errors"
)

const maxQuestionLength = 1000

type createQuestionRequest struct {
	Text string      `json:"text"`
	Tags []uuid.UUID `json:"tags"`
}

type reportQuestionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCreateQuestion(c echo.Context) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}

	var req createQuestionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Text == "" {
		return apperrors.ValidationError("text must not be empty")
	}
	if len(req.Text) > maxQuestionLength {
		return apperrors.ValidationError("text too long").WithField("max_length", maxQuestionLength)
	}

	question, err := s.app.CreateQuestion(c.Request().Context(), userID, req.Text, req.Tags)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(http.StatusCreated, question); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListQuestions(c echo.Context) error {
	filters, err := parseQuestionFilters(c)
	if err != nil {
		return err
	}

	questions, err := s.app.ListQuestions(c.Request().Context(), filters)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(questions))
}

func (s *Server) handleMyQuestions(c echo.Context) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}
	filters, err := parseQuestionFilters(c)
	if err != nil {
		return err
	}

	questions, err := s.app.MyQuestions(c.Request().Context(), userID, filters)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(questions))
}

func (s *Server) handleRandomQuestion(c echo.Context) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}

	question, err := s.app.RandomUnseen(c.Request().Context(), userID)
	if errors.Is(err, domain.ErrNoQuestionsLeft) {
		// Empty-result marker, not an error condition. 204 forbids a body,
		// so the status alone carries the "no questions left" signal.
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	question, err := s.app.GetQuestion(c.Request().Context(), questionID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handleQuestionAnswers(c echo.Context) error {
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	answers, err := s.app.QuestionAnswers(c.Request().Context(), questionID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(answers))
}

func (s *Server) handleQuestionTags(c echo.Context) error {
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	tags, err := s.app.QuestionTags(c.Request().Context(), questionID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(tags))
}

func (s *Server) handleUpvote(c echo.Context) error {
	return s.handleVote(c, true, http.StatusOK)
}

func (s *Server) handleDownvote(c echo.Context) error {
	return s.handleVote(c, false, http.StatusCreated)
}

func (s *Server) handleVote(c echo.Context, up bool, status int) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	question, err := s.app.Vote(c.Request().Context(), questionID, userID, up)
	if err != nil {
		return apperrors.FromDomain(err).WithField("question_id", questionID.String())
	}
	return c.JSON(status, question)
}

func (s *Server) handleMyUpvotes(c echo.Context) error {
	return s.handleMyVotes(c, true)
}

func (s *Server) handleMyDownvotes(c echo.Context) error {
	return s.handleMyVotes(c, false)
}

func (s *Server) handleMyVotes(c echo.Context, up bool) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}
	answered, err := parseBoolQuery(c, "answered")
	if err != nil {
		return err
	}

	questions, err := s.app.MyVotes(c.Request().Context(), userID, up, answered)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, emptyAsList(questions))
}

func (s *Server) handleReportQuestion(c echo.Context) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	var req reportQuestionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Reason == "" {
		return apperrors.ValidationError("reason must not be empty")
	}

	if err := s.app.Report(c.Request().Context(), questionID, userID, req.Reason); err != nil {
		return apperrors.FromDomain(err).WithField("question_id", questionID.String())
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCloseQuestion(c echo.Context) error {
	userID, ok := requesterID(c)
	if !ok {
		return apperrors.InternalError("invalid user ID in context", nil)
	}
	questionID, err := parseQuestionID(c)
	if err != nil {
		return err
	}

	if err := s.app.CloseQuestion(c.Request().Context(), questionID, userID, requesterIsStaff(c)); err != nil {
		return apperrors.FromDomain(err).WithField("question_id", questionID.String())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- parameter parsing ---

func parseQuestionID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid question ID").WithField("id", raw)
	}
	return id, nil
}

func parseBoolQuery(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.ValidationError("invalid boolean query parameter").WithField(name, raw)
	}
	return &value, nil
}

func parseQuestionFilters(c echo.Context) (domain.QuestionFilters, error) {
	var filters domain.QuestionFilters

	answered, err := parseBoolQuery(c, "answered")
	if err != nil {
		return filters, err
	}
	closed, err := parseBoolQuery(c, "closed")
	if err != nil {
		return filters, err
	}
	filters.Answered = answered
	filters.Closed = closed

	switch ordering := c.QueryParam("ordering"); ordering {
	case "", string(domain.OrderNewest):
		filters.Ordering = domain.OrderNewest
	case string(domain.OrderUpvotes):
		filters.Ordering = domain.OrderUpvotes
	case string(domain.OrderClosedDate):
		filters.Ordering = domain.OrderClosedDate
	default:
		return filters, apperrors.ValidationError("unknown ordering").WithField("ordering", ordering)
	}

	return filters, nil
}

// emptyAsList keeps empty results as [] instead of null in the JSON output.
func emptyAsList[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
