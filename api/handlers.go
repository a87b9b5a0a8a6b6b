package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
	"lotus-board/proposal"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, auth Authenticator, logger *log.Logger) {
	e.Use(GzipRequestMiddleware())

	e.GET("/healthz", healthz(svc.Health))

	e.GET("/api/tasks", getTasks(svc.Board, auth, logger))
	e.POST("/api/board/reload", reloadBoard(svc.Board, auth))
	e.POST("/api/tasks", createTask(svc.Board, auth))
	e.PATCH("/api/tasks/:id", updateTask(svc.Board, auth))
	e.POST("/api/tasks/:id/move", moveTask(svc.Board, auth))
	e.DELETE("/api/tasks/:id", deleteTask(svc.Board, auth))

	e.GET("/api/proposals", getProposals(svc.Proposals, auth))
	e.POST("/api/proposals", ingestProposals(svc.Proposals, auth))
	e.POST("/api/proposals/:id/approve", approveProposal(svc.Proposals, auth))
	e.POST("/api/proposals/:id/reject", rejectProposal(svc.Proposals, auth))

	e.POST("/api/assistant/ask", askAssistant(svc.Assistant, svc.Health, auth))
	e.POST("/api/assistant/clear", clearAssistant(svc.Assistant, auth))
	if svc.Inferrer != nil {
		e.POST("/api/assistant/infer", inferTasks(svc.Inferrer, svc.Health, auth))
	}

	e.POST("/api/context/analyze", analyzeContext(svc.Pipeline, svc.Health, auth))

	if svc.Stream != nil {
		e.GET("/api/stream", streamBoard(svc.Stream, auth))
	}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type proposalsResponse struct {
	Proposals []proposal.Pending `json:"proposals"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Degraded bool   `json:"degraded,omitempty"`
}

func healthz(health HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		h, err := health.CheckHealth(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, h)
	}
}

func getTasks(board Board, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		tasks := board.Tasks()
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func reloadBoard(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := board.Load(c.Request().Context()); err != nil {
			// The prior collection is untouched; only the refresh failed.
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: board.Tasks()})
	}
}

func createTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		var draft domain.TaskDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := board.Create(c.Request().Context(), draft)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := board.Update(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

type moveRequest struct {
	Status domain.TaskStatus `json:"status"`
}

func moveTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := board.Move(c.Request().Context(), c.Param("id"), req.Status)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := board.Remove(c.Request().Context(), c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getProposals(queue ProposalQueue, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, proposalsResponse{Proposals: queue.Pending()})
	}
}

type ingestProposalsRequest struct {
	Proposals []domain.TaskProposal `json:"proposals"`
	Replace   bool                  `json:"replace"`
}

func ingestProposals(queue ProposalQueue, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		var req ingestProposalsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		pending := queue.Ingest(req.Proposals, req.Replace)
		return c.JSON(http.StatusAccepted, proposalsResponse{Proposals: pending})
	}
}

func approveProposal(queue ProposalQueue, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		task, err := queue.Approve(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func rejectProposal(queue ProposalQueue, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := queue.Reject(c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type askRequest struct {
	TaskID string `json:"taskId"`
	Prompt string `json:"prompt"`
}

func askAssistant(session AssistantSession, health HealthChecker, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := requireModelBackend(c, health); err != nil {
			return err
		}
		var req askRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		exchange, err := session.Ask(c.Request().Context(), req.TaskID, req.Prompt)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, exchange)
	}
}

type clearRequest struct {
	TaskID string `json:"taskId"`
}

func clearAssistant(session AssistantSession, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		var req clearRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := session.Clear(req.TaskID); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type inferRequest struct {
	Text string `json:"text"`
}

func inferTasks(inferrer TaskInferrer, health HealthChecker, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := requireModelBackend(c, health); err != nil {
			return err
		}
		var req inferRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Text) == "" {
			return writeError(c, &domain.ValidationError{Field: "text", Reason: "must not be empty"})
		}
		result, err := inferrer.InferTasks(c.Request().Context(), req.Text)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

type analyzeRequest struct {
	Text       string            `json:"text"`
	SourceType domain.SourceType `json:"source_type"`
}

func analyzeContext(pipeline ContextPipeline, health HealthChecker, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorize(c, auth); err != nil {
			return err
		}
		if err := requireModelBackend(c, health); err != nil {
			return err
		}
		var req analyzeRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		result, err := pipeline.Run(c.Request().Context(), req.Text, req.SourceType)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

func streamBoard(stream EventStream, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			if token := c.QueryParam("token"); token != "" {
				header = "Bearer " + token
			}
		}
		if _, err := auth.UserIDFromAuthHeader(header); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		stream.Listen(c.Request().Context(), func(data []byte) {
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := c.Response().Write(data); err != nil {
				return
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		})
		return nil
	}
}

func authorize(c echo.Context, auth Authenticator) error {
	if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	return nil
}

// requireModelBackend answers 503 when the model backend is down so
// AI-dependent actions are disabled, not hidden.
func requireModelBackend(c echo.Context, health HealthChecker) error {
	h, err := health.CheckHealth(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Degraded: true})
	}
	if !h.OllamaConnected {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "model backend unavailable", Degraded: true})
	}
	return nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrProposalNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMutationInFlight),
		errors.Is(err, domain.ErrProposalInFlight),
		errors.Is(err, domain.ErrExchangeInFlight):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrOperationTimeout):
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	case domain.IsConnectivity(err):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			return c.JSON(http.StatusBadGateway, errorResponse{Error: pe.Error()})
		}
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
