package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
	"webforge/internal/lock"
	"webforge/internal/middleware"
	"webforge/internal/pricing"
	"webforge/internal/repository/memory"
	"webforge/internal/service/auth"
	"webforge/internal/service/generation"
	"webforge/internal/service/project"
	"webforge/internal/service/publish"
	"webforge/internal/service/revision"
)

type echoGenerator struct{}

func (echoGenerator) Name() string { return "echo" }

func (echoGenerator) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	return &services.GenerateResult{Code: "<html>" + req.Prompt + "</html>"}, nil
}

// tokenVerifier accepts "token-<user>" and authenticates as <user>
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(token string) (*models.SessionClaims, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	claims := &models.SessionClaims{Role: "authenticated"}
	claims.Subject = user
	return claims, nil
}

func (tokenVerifier) Close() error { return nil }

type testServer struct {
	t            *testing.T
	server       *httptest.Server
	orchestrator *generation.Orchestrator
}

func newTestServer(t *testing.T, signupCredits, ratePerMin int) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	projectRepo := memory.NewProjectRepository(store)
	jobRepo := memory.NewJobRepository(store)
	ledger := memory.NewCreditLedger(store, signupCredits, logger)
	revisions := revision.NewStore(projectRepo, memory.NewRevisionRepository(store), jobRepo, store, logger)
	authorizer := auth.NewOwnerBasedAuthorizer(projectRepo)
	locker := lock.NewLocalLocker()

	orchestrator := generation.NewOrchestrator(generation.Deps{
		ProjectRepo: projectRepo,
		JobRepo:     jobRepo,
		Revisions:   revisions,
		Ledger:      ledger,
		Generator:   echoGenerator{},
		TxManager:   store,
		Locker:      locker,
		Logger:      logger,
	}, generation.Options{Cost: 1, Timeout: 5 * time.Second, Workers: 2})

	svc := project.NewService(project.Deps{
		ProjectRepo:  projectRepo,
		Revisions:    revisions,
		Orchestrator: orchestrator,
		Gate:         publish.NewGate(projectRepo, revisions, authorizer, store, logger),
		Ledger:       ledger,
		Authorizer:   authorizer,
		Locker:       locker,
		Logger:       logger,
	}, orchestrator.Cost())

	registry, err := pricing.NewRegistry(0)
	require.NoError(t, err)

	mux := http.NewServeMux()
	(&Handlers{
		Projects: NewProjectHandler(svc, logger),
		Public:   NewPublicHandler(svc, logger),
		Credits:  NewCreditsHandler(svc, registry, logger),
		Limiter:  middleware.NewUserRateLimiter(ratePerMin),
	}).Register(mux)

	server := httptest.NewServer(middleware.AuthMiddleware(tokenVerifier{}, "", logger)(mux))
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orchestrator.Wait(ctx)
	})

	return &testServer{t: t, server: server, orchestrator: orchestrator}
}

func (s *testServer) do(method, path, user, body string) (int, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer token-"+user)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, raw
}

func (s *testServer) wait() {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(s.t, s.orchestrator.Wait(ctx))
}

func (s *testServer) createProject(user, prompt string) string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/projects", user, `{"initial_prompt":"`+prompt+`"}`)
	require.Equal(s.t, http.StatusCreated, status, string(body))

	var result services.CreateProjectResult
	require.NoError(s.t, json.Unmarshal(body, &result))
	s.wait()
	return result.Project.ID
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestServer(t, 5, 0)
	id := s.createProject("alice", "landing page")

	status, body := s.do(http.MethodGet, "/api/projects/"+id+"/status", "alice", "")
	require.Equal(t, http.StatusOK, status)
	view := decode[services.StatusView](t, body)
	assert.Equal(t, models.ProjectStatusReady, view.Status)
	assert.Equal(t, 1, *view.CurrentVersion)

	status, body = s.do(http.MethodPut, "/api/projects/"+id+"/code", "alice", `{"code":"<html>A</html>","expected_version":1}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, 2, decode[models.Revision](t, body).VersionNumber)

	status, body = s.do(http.MethodPost, "/api/projects/"+id+"/rollback/1", "alice", "")
	require.Equal(t, http.StatusCreated, status, string(body))
	rolled := decode[models.Revision](t, body)
	assert.Equal(t, 3, rolled.VersionNumber)
	assert.Equal(t, models.OriginRollback, rolled.Origin)

	status, body = s.do(http.MethodGet, "/api/projects/"+id+"/revisions", "alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Revision](t, body), 3)

	status, body = s.do(http.MethodPatch, "/api/projects/"+id, "alice", `{"name":"My Site"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "My Site", decode[models.Project](t, body).Name)

	status, body = s.do(http.MethodPatch, "/api/projects/"+id, "alice", `{}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "My Site", decode[models.Project](t, body).Name, "absent fields are left alone")

	status, body = s.do(http.MethodGet, "/api/users/me/credits", "alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, services.CreditsView{Balance: 4, GenerationCost: 1}, decode[services.CreditsView](t, body))

	status, _ = s.do(http.MethodDelete, "/api/projects/"+id, "alice", "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodGet, "/api/projects/"+id, "alice", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, 5, 0)
	id := s.createProject("alice", "blog")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
		code   string
	}{
		{name: "stale save", method: http.MethodPut, path: "/api/projects/" + id + "/code", user: "alice", body: `{"code":"x","expected_version":0}`, status: 409, code: "conflict"},
		{name: "other owner", method: http.MethodGet, path: "/api/projects/" + id, user: "mallory", status: 403, code: "forbidden"},
		{name: "absent project", method: http.MethodGet, path: "/api/projects/nope", user: "alice", status: 404, code: "not_found"},
		{name: "anonymous", method: http.MethodGet, path: "/api/projects", status: 401, code: "unauthorized"},
		{name: "empty prompt", method: http.MethodPost, path: "/api/projects/" + id + "/generations", user: "alice", body: `{"prompt":""}`, status: 400, code: "validation_failed"},
		{name: "bad version", method: http.MethodPost, path: "/api/projects/" + id + "/rollback/zero", user: "alice", status: 400, code: "validation_failed"},
		{name: "missing revision", method: http.MethodGet, path: "/api/projects/" + id + "/revisions/9", user: "alice", status: 404, code: "not_found"},
		{name: "publish without flag", method: http.MethodPut, path: "/api/projects/" + id + "/publish", user: "alice", body: `{}`, status: 400, code: "validation_failed"},
		{name: "malformed body", method: http.MethodPost, path: "/api/projects", user: "alice", body: `{`, status: 400, code: "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			assert.Equal(t, tt.code, decode[map[string]interface{}](t, body)["code"])
		})
	}
}

func TestInsufficientCredits(t *testing.T) {
	s := newTestServer(t, 1, 0)
	id := s.createProject("alice", "first")

	status, body := s.do(http.MethodPost, "/api/projects/"+id+"/generations", "alice", `{"prompt":"again"}`)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "insufficient_credits", decode[map[string]interface{}](t, body)["code"])
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t, 5, 0)
	id := s.createProject("alice", "portfolio")

	hiddenStatus, hiddenBody := s.do(http.MethodGet, "/api/published/"+id, "", "")
	absentStatus, absentBody := s.do(http.MethodGet, "/api/published/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, hiddenStatus)
	assert.Equal(t, http.StatusNotFound, absentStatus)
	assert.JSONEq(t, string(absentBody), string(hiddenBody), "unpublished and absent look the same")

	status, body := s.do(http.MethodPost, "/api/projects/"+id+"/publish", "alice", "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[publishResponse](t, body).IsPublished)

	status, body = s.do(http.MethodGet, "/api/published/"+id, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>portfolio</html>", decode[services.PublicView](t, body).Code)

	status, body = s.do(http.MethodGet, "/api/published", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]services.PublicSummary](t, body), 1)

	status, body = s.do(http.MethodGet, "/api/plans", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[[]pricing.Plan](t, body))

	status, _ = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestGenerationRateLimit(t *testing.T) {
	s := newTestServer(t, 10, 1)

	status, _ := s.do(http.MethodPost, "/api/projects", "alice", `{"initial_prompt":"one"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, body := s.do(http.MethodPost, "/api/projects", "alice", `{"initial_prompt":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", decode[map[string]interface{}](t, body)["code"])

	s.wait()
}
