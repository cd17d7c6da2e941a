package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Questions
	questions := s.echo.Group("/questions", s.requireAuth)
	questions.POST("", s.handleCreateQuestion)
	questions.GET("", s.handleListQuestions)
	questions.GET("/my", s.handleMyQuestions)
	questions.GET("/random", s.handleRandomQuestion)
	questions.GET("/upvotes", s.handleMyUpvotes)
	questions.GET("/downvotes", s.handleMyDownvotes)
	questions.GET("/:id", s.handleGetQuestion)
	questions.GET("/:id/answers", s.handleQuestionAnswers)
	questions.GET("/:id/tags", s.handleQuestionTags)
	questions.POST("/:id/upvote", s.handleUpvote)
	questions.POST("/:id/downvote", s.handleDownvote)
	questions.POST("/:id/report", s.handleReportQuestion)
	questions.POST("/:id/close", s.handleCloseQuestion)

	// Tags
	tags := s.echo.Group("/tags", s.requireAuth)
	tags.GET("", s.handleListTags)
	tags.GET("/:id/questions", s.handleQuestionsByTag)
	tags.POST("", s.handleCreateTag, s.requireStaff)
}
