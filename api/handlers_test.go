package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
	"lotus-board/ingest"
	"lotus-board/proposal"
)

type allowAllAuth struct{}

func (allowAllAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	return "user-1", nil
}

type stubBoard struct {
	tasks    []domain.Task
	loadErr  error
	createFn func(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	moveFn   func(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error)
	removeFn func(ctx context.Context, id string) error
}

func (s *stubBoard) Load(ctx context.Context) error { return s.loadErr }

func (s *stubBoard) Tasks() []domain.Task { return s.tasks }

func (s *stubBoard) Create(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	if s.createFn == nil {
		return domain.Task{}, nil
	}
	return s.createFn(ctx, draft)
}
func (s *stubBoard) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	return domain.Task{}, domain.ErrTaskNotFound
}
func (s *stubBoard) Move(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if s.moveFn == nil {
		return domain.Task{}, nil
	}
	return s.moveFn(ctx, id, status)
}
func (s *stubBoard) Remove(ctx context.Context, id string) error {
	if s.removeFn == nil {
		return nil
	}
	return s.removeFn(ctx, id)
}

type stubQueue struct {
	pending   []proposal.Pending
	approveFn func(ctx context.Context, id string) (domain.Task, error)
	rejectFn  func(id string) error
}

func (s *stubQueue) Ingest(ps []domain.TaskProposal, replace bool) []proposal.Pending {
	out := make([]proposal.Pending, len(ps))
	for i, p := range ps {
		out[i] = proposal.Pending{ID: "p1", TaskProposal: p}
	}
	s.pending = out
	return out
}
func (s *stubQueue) Pending() []proposal.Pending { return s.pending }
func (s *stubQueue) Approve(ctx context.Context, id string) (domain.Task, error) {
	if s.approveFn == nil {
		return domain.Task{}, domain.ErrProposalNotFound
	}
	return s.approveFn(ctx, id)
}
func (s *stubQueue) Reject(id string) error {
	if s.rejectFn == nil {
		return domain.ErrProposalNotFound
	}
	return s.rejectFn(id)
}

type stubSession struct {
	askFn func(ctx context.Context, scope, prompt string) (domain.AssistantExchange, error)
}

func (s *stubSession) Ask(ctx context.Context, scope, prompt string) (domain.AssistantExchange, error) {
	if s.askFn == nil {
		return domain.AssistantExchange{}, nil
	}
	return s.askFn(ctx, scope, prompt)
}
func (s *stubSession) Clear(scope string) error { return nil }

type stubPipeline struct {
	runFn func(ctx context.Context, text string, source domain.SourceType) (*ingest.Result, error)
}

func (s *stubPipeline) Run(ctx context.Context, text string, source domain.SourceType) (*ingest.Result, error) {
	if s.runFn == nil {
		return &ingest.Result{}, nil
	}
	return s.runFn(ctx, text, source)
}

type stubInferrer struct {
	inferFn func(ctx context.Context, text string) (domain.InferenceResult, error)
}

func (s *stubInferrer) InferTasks(ctx context.Context, text string) (domain.InferenceResult, error) {
	if s.inferFn == nil {
		return domain.InferenceResult{}, nil
	}
	return s.inferFn(ctx, text)
}

type stubHealth struct {
	health domain.Health
	err    error
}

func (s *stubHealth) CheckHealth(ctx context.Context) (domain.Health, error) {
	return s.health, s.err
}

func newTestServer(t *testing.T, svc Services) *echo.Echo {
	t.Helper()
	if svc.Board == nil {
		svc.Board = &stubBoard{}
	}
	if svc.Proposals == nil {
		svc.Proposals = &stubQueue{}
	}
	if svc.Assistant == nil {
		svc.Assistant = &stubSession{}
	}
	if svc.Pipeline == nil {
		svc.Pipeline = &stubPipeline{}
	}
	if svc.Health == nil {
		svc.Health = &stubHealth{health: domain.Health{OllamaConnected: true}}
	}
	e := echo.New()
	Register(e, svc, allowAllAuth{}, log.New())
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetTasksReturnsBoardState(t *testing.T) {
	board := &stubBoard{tasks: []domain.Task{{ID: "t1", Title: "A", Status: domain.StatusTodo}}}
	e := newTestServer(t, Services{Board: board})

	rec := doRequest(e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp tasksResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "t1" {
		t.Fatalf("tasks = %#v", resp.Tasks)
	}
}

func TestGetTasksRequiresAuth(t *testing.T) {
	e := newTestServer(t, Services{})
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReloadFailureAnswers503(t *testing.T) {
	board := &stubBoard{loadErr: &domain.ConnectivityError{Op: "GET /tasks", Err: context.DeadlineExceeded}}
	e := newTestServer(t, Services{Board: board})

	rec := doRequest(e, http.MethodPost, "/api/board/reload", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateTaskValidationAnswers400(t *testing.T) {
	board := &stubBoard{
		createFn: func(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
			return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
		},
	}
	e := newTestServer(t, Services{Board: board})

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMoveConflictAnswers409(t *testing.T) {
	board := &stubBoard{
		moveFn: func(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
			return domain.Task{}, domain.ErrMutationInFlight
		},
	}
	e := newTestServer(t, Services{Board: board})

	rec := doRequest(e, http.MethodPost, "/api/tasks/t1/move", `{"status":"doing"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeleteUnknownTaskAnswers404(t *testing.T) {
	board := &stubBoard{
		removeFn: func(ctx context.Context, id string) error { return domain.ErrTaskNotFound },
	}
	e := newTestServer(t, Services{Board: board})

	rec := doRequest(e, http.MethodDelete, "/api/tasks/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	queue := &stubQueue{
		approveFn: func(ctx context.Context, id string) (domain.Task, error) {
			return domain.Task{ID: "srv-1", Title: "Draft Q3 plan"}, nil
		},
		rejectFn: func(id string) error { return nil },
	}
	e := newTestServer(t, Services{Proposals: queue})

	rec := doRequest(e, http.MethodPost, "/api/proposals", `{"proposals":[{"title":"Draft Q3 plan","confidence":45}],"replace":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp proposalsResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Proposals) != 1 || resp.Proposals[0].Band() != domain.BandLow {
		t.Fatalf("proposals = %#v", resp.Proposals)
	}

	rec = doRequest(e, http.MethodPost, "/api/proposals/p1/approve", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("approve status = %d", rec.Code)
	}

	rec = doRequest(e, http.MethodPost, "/api/proposals/p1/reject", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reject status = %d", rec.Code)
	}
}

func TestAskIsDisabledWhenModelBackendDown(t *testing.T) {
	e := newTestServer(t, Services{Health: &stubHealth{health: domain.Health{OllamaConnected: false}}})

	rec := doRequest(e, http.MethodPost, "/api/assistant/ask", `{"taskId":"t1","prompt":"why?"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Degraded {
		t.Fatal("degraded flag missing")
	}
}

func TestAskAnswersExchange(t *testing.T) {
	session := &stubSession{
		askFn: func(ctx context.Context, scope, prompt string) (domain.AssistantExchange, error) {
			return domain.AssistantExchange{Scope: scope, Prompt: prompt, Response: "done", Model: "lotus-7b", SimilarCases: 2}, nil
		},
	}
	e := newTestServer(t, Services{Assistant: session})

	rec := doRequest(e, http.MethodPost, "/api/assistant/ask", `{"taskId":"t1","prompt":"status?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ex domain.AssistantExchange
	if err := sonic.Unmarshal(rec.Body.Bytes(), &ex); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ex.Response != "done" || ex.SimilarCases != 2 {
		t.Fatalf("exchange = %#v", ex)
	}
}

func TestInferTasksReturnsInferenceResult(t *testing.T) {
	inferrer := &stubInferrer{
		inferFn: func(ctx context.Context, text string) (domain.InferenceResult, error) {
			return domain.InferenceResult{
				Tasks:         []domain.Task{{ID: "t9", Title: "Schedule retro"}},
				TasksInferred: 1,
				ModelUsed:     "lotus-7b",
			}, nil
		},
	}
	e := newTestServer(t, Services{Inferrer: inferrer})

	rec := doRequest(e, http.MethodPost, "/api/assistant/infer", `{"text":"we should schedule the retro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result domain.InferenceResult
	if err := sonic.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TasksInferred != 1 || len(result.Tasks) != 1 {
		t.Fatalf("result = %#v", result)
	}
}

func TestInferTasksRejectsEmptyText(t *testing.T) {
	e := newTestServer(t, Services{Inferrer: &stubInferrer{}})

	rec := doRequest(e, http.MethodPost, "/api/assistant/infer", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalyzePartialFailureAnswers502(t *testing.T) {
	pipeline := &stubPipeline{
		runFn: func(ctx context.Context, text string, source domain.SourceType) (*ingest.Result, error) {
			return nil, &domain.PipelineError{Phase: domain.PhaseEnrich, Err: context.DeadlineExceeded}
		},
	}
	e := newTestServer(t, Services{Pipeline: pipeline})

	rec := doRequest(e, http.MethodPost, "/api/context/analyze", `{"text":"notes","source_type":"manual"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "enrich") {
		t.Fatalf("failure source not distinguishable: %s", rec.Body.String())
	}
}

func TestHealthzPassesThroughDegradedSignal(t *testing.T) {
	e := newTestServer(t, Services{Health: &stubHealth{health: domain.Health{OllamaConnected: false}}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var h domain.Health
	if err := sonic.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.OllamaConnected {
		t.Fatal("expected disconnected")
	}
}
