package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/assetdesk/internal/auth"
	"github.com/assetdesk/internal/logger"
	"github.com/assetdesk/internal/models"
	"github.com/assetdesk/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Server struct {
	manager *scheduler.ScheduleManager
	auth    *auth.Authenticator
	runNow  *rate.Limiter
	log     *logger.Logger
	router  *gin.Engine
	http    *http.Server
}

type Options struct {
	Port        int
	RunNowRate  float64
	RunNowBurst int
}

func NewServer(manager *scheduler.ScheduleManager, authenticator *auth.Authenticator, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if opts.RunNowRate <= 0 {
		opts.RunNowRate = 1
	}
	if opts.RunNowBurst <= 0 {
		opts.RunNowBurst = 5
	}

	server := &Server{
		manager: manager,
		auth:    authenticator,
		runNow:  rate.NewLimiter(rate.Limit(opts.RunNowRate), opts.RunNowBurst),
		log:     log,
		router:  gin.Default(),
	}

	server.setupRoutes()
	server.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)

	// Protected routes (require authentication)
	api := s.router.Group("/api/v1")
	api.Use(s.auth.Middleware())

	schedules := api.Group("/schedules")
	{
		schedules.GET("", s.listSchedules)
		schedules.GET("/:id", s.getSchedule)
		schedules.GET("/:id/runs", auth.RequirePermission("view_runs"), s.listRuns)
		schedules.POST("", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.createSchedule)
		schedules.POST("/validate", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.validateSchedule)
		schedules.PUT("/:id", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.updateSchedule)
		schedules.DELETE("/:id", auth.RequirePermission("delete_schedules"), s.deleteSchedule)
		schedules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.enableSchedule)
		schedules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.disableSchedule)
		schedules.POST("/:id/run", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.rateLimit(s.runNow), s.runSchedule)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called. After Shutdown it returns nil at once.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := s.auth.Login(loginReq.Username, loginReq.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) listSchedules(c *gin.Context) {
	var filter scheduler.ListFilter
	if enabled := c.Query("enabled"); enabled != "" {
		enabledBool, err := strconv.ParseBool(enabled)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled filter"})
			return
		}
		filter.Enabled = &enabledBool
	}
	if reportType := c.Query("report_type"); reportType != "" {
		filter.ReportType = models.ReportType(reportType)
	}

	schedules, err := s.manager.ListSchedules(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedules)
}

func (s *Server) getSchedule(c *gin.Context) {
	schedule, err := s.manager.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) createSchedule(c *gin.Context) {
	var input models.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := input.ToSchedule()
	if err := s.manager.CreateSchedule(c.Request.Context(), schedule); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, schedule)
}

func (s *Server) validateSchedule(c *gin.Context) {
	var input models.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := s.manager.PreviewSchedule(input.ToSchedule())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "schedule is valid", "next_run": next})
}

func (s *Server) updateSchedule(c *gin.Context) {
	var input models.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := s.manager.EditSchedule(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.manager.DeleteSchedule(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted successfully"})
}

func (s *Server) enableSchedule(c *gin.Context) {
	schedule, err := s.manager.EnableSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) disableSchedule(c *gin.Context) {
	schedule, err := s.manager.DisableSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) runSchedule(c *gin.Context) {
	schedule, outcome, err := s.manager.RunNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedule": schedule, "outcome": outcome})
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	runs, err := s.manager.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many run requests, retry later"})
			return
		}
		c.Next()
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *scheduler.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validationErr.Field})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
