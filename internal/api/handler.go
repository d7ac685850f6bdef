package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/djlord-it/eoflow/internal/dispatcher"
	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/registry"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = "1M"

type Dispatcher interface {
	ExecuteProcess(ctx context.Context, processID string, inputs json.RawMessage, trigger domain.Trigger) (domain.Job, error)
	GetJob(ctx context.Context, id string) (domain.Job, error)
	Run(ctx context.Context, workflowID string, trigger domain.Trigger) (dispatcher.RunResult, error)
	RunSchedule(ctx context.Context, scheduleID string, trigger domain.Trigger) (dispatcher.ScheduleRun, error)
}

type Jobs interface {
	List() []domain.Job
}

type Catalog interface {
	Lookup(id string) (process.Process, bool)
	Definitions() []process.Definition
}

type WorkflowStore interface {
	Create(d registry.WorkflowDraft) (domain.Workflow, error)
	Get(id string) (domain.Workflow, bool)
	List() []domain.Workflow
	Update(id string, p registry.WorkflowPatch) (domain.Workflow, error)
	Delete(id string) bool
}

type ScheduleStore interface {
	Create(d registry.ScheduleDraft) (domain.Schedule, error)
	Get(id string) (domain.Schedule, bool)
	List() []domain.Schedule
	Update(id string, p registry.SchedulePatch) (domain.Schedule, error)
	Delete(id string) bool
}

// HealthChecker reports the health of one dependency for verbose /health responses.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type MetricsSink interface {
	CallbackRejected(reason string)
}

type Handler struct {
	echo       *echo.Echo
	dispatcher Dispatcher
	jobs       Jobs
	catalog    Catalog
	workflows  WorkflowStore
	schedules  ScheduleStore
	token      string // empty = callbacks disabled
	checkers   map[string]HealthChecker
	metrics    MetricsSink // optional, nil = disabled
	logger     *slog.Logger
}

func NewHandler(d Dispatcher, jobs Jobs, catalog Catalog, workflows WorkflowStore, schedules ScheduleStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		dispatcher: d,
		jobs:       jobs,
		catalog:    catalog,
		workflows:  workflows,
		schedules:  schedules,
		checkers:   make(map[string]HealthChecker),
		logger:     logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.handleError
	e.Use(middleware.BodyLimit(maxRequestBodySize))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("api: request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	e.GET("/health", h.health)

	e.GET("/processes", h.listProcesses)
	e.GET("/processes/:id", h.getProcess)
	e.POST("/processes/:id/execution", h.executeProcess)

	e.GET("/jobs", h.listJobs)
	e.GET("/jobs/:id", h.getJob)

	e.GET("/workflows", h.listWorkflows)
	e.POST("/workflows", h.createWorkflow)
	e.GET("/workflows/:id", h.getWorkflow)
	e.PATCH("/workflows/:id", h.patchWorkflow)
	e.DELETE("/workflows/:id", h.deleteWorkflow)
	e.POST("/workflows/:id/run", h.runWorkflow)

	e.GET("/schedules", h.listSchedules)
	e.POST("/schedules", h.createSchedule)
	e.GET("/schedules/:id", h.getSchedule)
	e.PATCH("/schedules/:id", h.patchSchedule)
	e.DELETE("/schedules/:id", h.deleteSchedule)
	e.POST("/schedules/:id/run", h.runSchedule)
	e.POST("/schedules/:id/callback", h.scheduleCallback)

	h.echo = e
	return h
}

// WithSchedulerToken sets the shared secret external schedulers present on
// callbacks. Without one the callback endpoint answers 503.
func (h *Handler) WithSchedulerToken(token string) *Handler {
	h.token = token
	return h
}

// WithHealthChecker adds a named dependency to verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checkers[name] = c
	return h
}

func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.echo.ServeHTTP(w, r)
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(c echo.Context) error {
	// Check if verbose mode requested via ?verbose=true
	verbose := c.QueryParam("verbose") == "true"
	if !verbose || len(h.checkers) == 0 {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checkers)),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	for name, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, resp)
}

func (h *Handler) listProcesses(c echo.Context) error {
	return c.JSON(http.StatusOK, ListProcessesResponse{Processes: h.catalog.Definitions()})
}

func (h *Handler) getProcess(c echo.Context) error {
	id := c.Param("id")
	p, ok := h.catalog.Lookup(id)
	if !ok {
		return domain.NotFound("Process", id)
	}
	return c.JSON(http.StatusOK, p.Definition())
}

func (h *Handler) executeProcess(c echo.Context) error {
	var req ExecuteRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if err := validateExecute(req); err != nil {
		return err
	}

	job, err := h.dispatcher.ExecuteProcess(c.Request().Context(), c.Param("id"), req.Inputs, domain.TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, job)
}

func (h *Handler) listJobs(c echo.Context) error {
	limit, offset, err := parsePagination(c.Request())
	if err != nil {
		return domain.InvalidParameter("%v", err)
	}

	all := h.jobs.List()
	resp := ListJobsResponse{Jobs: []domain.Job{}, Total: len(all)}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		resp.Jobs = all[offset:end]
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) getJob(c echo.Context) error {
	job, err := h.dispatcher.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) listWorkflows(c echo.Context) error {
	return c.JSON(http.StatusOK, ListWorkflowsResponse{Workflows: h.workflows.List()})
}

func (h *Handler) createWorkflow(c echo.Context) error {
	var req WorkflowRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	wf, err := h.workflows.Create(req.draft())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

func (h *Handler) getWorkflow(c echo.Context) error {
	id := c.Param("id")
	wf, ok := h.workflows.Get(id)
	if !ok {
		return domain.NotFound("Workflow", id)
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *Handler) patchWorkflow(c echo.Context) error {
	var req WorkflowPatchRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	wf, err := h.workflows.Update(c.Param("id"), req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *Handler) deleteWorkflow(c echo.Context) error {
	id := c.Param("id")
	if !h.workflows.Delete(id) {
		return domain.NotFound("Workflow", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) runWorkflow(c echo.Context) error {
	result, err := h.dispatcher.Run(c.Request().Context(), c.Param("id"), domain.TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, result)
}

func (h *Handler) listSchedules(c echo.Context) error {
	return c.JSON(http.StatusOK, ListSchedulesResponse{Schedules: h.schedules.List()})
}

func (h *Handler) createSchedule(c echo.Context) error {
	var req ScheduleRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	s, err := h.schedules.Create(req.draft())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) getSchedule(c echo.Context) error {
	id := c.Param("id")
	s, ok := h.schedules.Get(id)
	if !ok {
		return domain.NotFound("Schedule", id)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) patchSchedule(c echo.Context) error {
	var req SchedulePatchRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	s, err := h.schedules.Update(c.Param("id"), req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) deleteSchedule(c echo.Context) error {
	id := c.Param("id")
	if !h.schedules.Delete(id) {
		return domain.NotFound("Schedule", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) runSchedule(c echo.Context) error {
	run, err := h.dispatcher.RunSchedule(c.Request().Context(), c.Param("id"), domain.TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, run)
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(c echo.Context, v any) error {
	err := json.NewDecoder(c.Request().Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return domain.InvalidParameter("invalid json: %v", err)
}

// handleError writes every failure as {"code", "description"}. Domain errors
// keep their code; anything unrecognised is logged and reported as a generic 500.
func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := h.errorBody(err, c)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		h.logger.Error("api: write error response", "error", err)
	}
}

func (h *Handler) errorBody(err error, c echo.Context) (int, ErrorResponse) {
	var de *domain.Error
	if errors.As(err, &de) {
		return statusFor(de.Code), ErrorResponse{Code: string(de.Code), Description: de.Description}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, ErrorResponse{Code: codeFor(he.Code), Description: msg}
	}

	h.logger.Error("api: request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return http.StatusInternalServerError, ErrorResponse{
		Code:        codeFor(http.StatusInternalServerError),
		Description: "internal server error",
	}
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidParameterValue:
		return http.StatusBadRequest
	case domain.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(domain.CodeNotFound)
	case http.StatusBadRequest:
		return string(domain.CodeInvalidParameterValue)
	case http.StatusServiceUnavailable:
		return string(domain.CodeServiceUnavailable)
	case http.StatusForbidden:
		return string(domain.CodeForbidden)
	default:
		return strings.ReplaceAll(http.StatusText(status), " ", "")
	}
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
