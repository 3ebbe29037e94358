package controlplane

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// Server provides the HTTP API for planboard.
type Server struct {
	service *Service
	store   *store.Store
	addr    string
	router  *gin.Engine
	server  *http.Server
	sweeper StatsProvider
}

// StatsProvider reports milestone sweeper state.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// NewServer creates a new HTTP server and registers its routes.
func NewServer(service *Service, st *store.Store, addr string) *Server {
	router := gin.Default()

	s := &Server{
		service: service,
		store:   st,
		addr:    addr,
		router:  router,
	}

	router.GET("/health", s.handleHealth)

	admin := router.Group("/admin")
	{
		admin.POST("/tasks", s.createTask)
		admin.GET("/tasks", s.listTasks)
		admin.GET("/tasks/:id", s.getTask)
		admin.PATCH("/tasks/:id", s.patchTask)
		admin.PATCH("/tasks/:id/status", s.changeStatus)
		admin.POST("/tasks/:id/reopen", s.reopenTask)
		admin.POST("/tasks/:id/approve", s.approveTask)
		admin.PATCH("/tasks/:id/edit", s.editTask)
		admin.GET("/tasks/:id/history", s.taskHistory)

		admin.POST("/plans", s.createPlan)
		admin.GET("/plans", s.listPlans)

		admin.GET("/sweeper", s.sweeperStats)
	}

	client := router.Group("/client/:client_id")
	{
		client.GET("/tasks", s.listClientTasks)
		client.GET("/tasks/:id", s.getClientTask)
		client.POST("/plans/:plan_id/purchase", s.purchasePlan)
	}

	return s
}

// SetScheduler wires the milestone sweeper for GET /admin/sweeper.
func (s *Server) SetScheduler(p StatsProvider) {
	s.sweeper = p
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting planboard daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) sweeperStats(c *gin.Context) {
	if s.sweeper == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	stats := s.sweeper.Stats()
	stats["enabled"] = true
	c.JSON(http.StatusOK, stats)
}

// --- Admin Task Handlers ---

func (s *Server) createTask(c *gin.Context) {
	var req models.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	task, err := s.service.CreateTask(c.Request.Context(), req)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasks(c *gin.Context) {
	var f store.TaskFilter
	if v := c.Query("status"); v != "" {
		status, err := models.ParseTaskStatus(v)
		if err != nil {
			s.adminError(c, err)
			return
		}
		f.Status = status
	}
	if v := c.Query("mode"); v != "" {
		mode, err := models.ParseProgressMode(v)
		if err != nil {
			s.adminError(c, err)
			return
		}
		f.ProgressMode = mode
	}
	f.ClientID = c.Query("client_id")

	tasks, err := s.service.ListAdminTasks(c.Request.Context(), f)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.service.GetAdminTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) patchTask(c *gin.Context) {
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	task, err := s.service.PatchTask(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) changeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	status, err := models.ParseTaskStatus(req.Status)
	if err != nil {
		s.adminError(c, err)
		return
	}

	task, err := s.service.ChangeStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) reopenTask(c *gin.Context) {
	task, err := s.service.ReopenTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) approveTask(c *gin.Context) {
	task, err := s.service.ApproveTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type editRequest struct {
	Status string           `json:"status,omitempty"`
	Patch  models.TaskPatch `json:"patch"`
}

func (s *Server) editTask(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	edit := EditRequest{Patch: req.Patch}
	if req.Status != "" {
		status, err := models.ParseTaskStatus(req.Status)
		if err != nil {
			s.adminError(c, err)
			return
		}
		edit.Status = &status
	}

	task, err := s.service.EditTask(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) taskHistory(c *gin.Context) {
	entries, err := s.service.TaskHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.adminError(c, err)
		return
	}
	if entries == nil {
		entries = []models.PDREntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// --- Admin Plan Handlers ---

func (s *Server) createPlan(c *gin.Context) {
	var req models.NewPlan
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	plan, err := s.service.CreatePlan(c.Request.Context(), req)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) listPlans(c *gin.Context) {
	plans, err := s.service.ListPlans(c.Request.Context())
	if err != nil {
		s.adminError(c, err)
		return
	}
	if plans == nil {
		plans = []models.Task{}
	}
	c.JSON(http.StatusOK, plans)
}

// --- Client Handlers ---

func (s *Server) listClientTasks(c *gin.Context) {
	tasks, err := s.service.ListClientTasks(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		s.clientError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) getClientTask(c *gin.Context) {
	task, err := s.service.GetClientTask(c.Request.Context(), c.Param("client_id"), c.Param("id"))
	if err != nil {
		s.clientError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) purchasePlan(c *gin.Context) {
	task, err := s.service.PurchasePlan(c.Request.Context(), c.Param("plan_id"), c.Param("client_id"))
	if err != nil {
		s.clientError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// --- Error mapping ---

func (s *Server) adminError(c *gin.Context, err error) {
	var ite *lifecycle.InvalidTransitionError
	if errors.As(err, &ite) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     ite.Error(),
			"current":   ite.Current,
			"requested": ite.Requested,
		})
		return
	}

	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// clientError never exposes a plan routed into a task view; it is logged
// and served as a plain not found.
func (s *Server) clientError(c *gin.Context, err error) {
	if errors.Is(err, lifecycle.ErrNotATask) {
		log.Printf("client route %s served a plan as a task: %v", c.FullPath(), err)
		c.JSON(http.StatusNotFound, gin.H{"error": ErrTaskNotFound.Error()})
		return
	}
	if errors.Is(err, store.ErrNotAPlan) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrPlanNotFound.Error()})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("client route %s failed: %v", c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnknownStatus),
		errors.Is(err, models.ErrUnknownProgressMode),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyEdit):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotTerminal),
		errors.Is(err, lifecycle.ErrNotAwaitingApproval):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotATask), errors.Is(err, store.ErrNotAPlan):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
