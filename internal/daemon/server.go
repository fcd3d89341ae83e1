package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/repository"
	"offload/internal/scheduler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is the daemon control surface: it accepts run requests over HTTP,
// drains the scheduler's event stream into the run-history store, and
// reports live status.
type Server struct {
	echo   *echo.Echo
	sched  *scheduler.Scheduler
	repo   *repository.RunRepository
	port   int
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewServer(sched *scheduler.Scheduler, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		sched:  sched,
		repo:   repository.NewRunRepository(),
		port:   port,
		stopCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/tasks", s.handleTasks)
	s.echo.POST("/tasks/:label/run", s.handleRunTask)
	s.echo.POST("/run-all", s.handleRunAll)
	s.echo.GET("/history", s.handleHistory)
	s.echo.POST("/stop", s.handleStop)
}

func (s *Server) Start() {
	go s.drainEvents()

	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

// drainEvents persists every terminal phase result. Running events are only
// logged; they exist for live status consumers.
func (s *Server) drainEvents() {
	defer close(s.doneCh)

	for result := range s.sched.Events() {
		if result.Status == model.StatusRunning {
			logger.Log.Debug("phase running",
				zap.String("task", result.TaskLabel),
				zap.String("phase", string(result.Phase)))
			continue
		}

		if err := s.repo.Save(result); err != nil {
			logger.Log.Warn("failed to save run record",
				zap.Error(err))
		}
	}
}

// Stop shuts the HTTP listener down first so no new run request can race
// the scheduler's close, then lets in-flight runs finish and drains their
// remaining events.
func (s *Server) Stop(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.sched.Close()
	<-s.doneCh
	return err
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"tasks": s.sched.Snapshots(),
	})
}

func (s *Server) handleTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.Snapshots())
}

type runRequest struct {
	Phases []string `json:"phases"`
}

func parsePhases(req runRequest) ([]model.Phase, error) {
	var phases []model.Phase
	for _, p := range req.Phases {
		phase, err := model.ParsePhase(p)
		if err != nil {
			return nil, err
		}
		phases = append(phases, phase)
	}

	return phases, nil
}

func (s *Server) handleRunTask(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	phases, err := parsePhases(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	label := c.Param("label")
	if err := s.sched.RunTask(label, phases); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownTask):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, scheduler.ErrTaskRunning):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "task": label})
}

func (s *Server) handleRunAll(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	phases, err := parsePhases(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	started := s.sched.RunAll(phases)
	return c.JSON(http.StatusAccepted, map[string]any{"status": "started", "tasks": started})
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	var (
		records []model.RunRecord
		err     error
	)
	if label := c.QueryParam("task"); label != "" {
		records, err = s.repo.GetByTask(label, n)
	} else {
		records, err = s.repo.GetRecent(n)
	}

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}
