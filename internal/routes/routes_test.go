package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dockpilot/management-api/internal/auth"
	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/ratelimit"
	"github.com/dockpilot/management-api/internal/store"
)

// fakeUsers is an in-memory store.Users
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]models.User)}
}

func (f *fakeUsers) Find(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (f *fakeUsers) Insert(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return store.ErrAlreadyExists
	}
	f.users[user.Username] = *user
	return nil
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	return out, nil
}

func (f *fakeUsers) Delete(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, username)
	return nil
}

// fakeContainers is an in-memory store.Containers
type fakeContainers struct {
	mu      sync.Mutex
	entries []models.UserContainer
}

func (f *fakeContainers) Record(_ context.Context, entry models.UserContainer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeContainers) ListByUser(_ context.Context, username string) ([]models.UserContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserContainer
	for _, e := range f.entries {
		if e.Username == username {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeContainers) ListAll(_ context.Context) ([]models.UserContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.UserContainer(nil), f.entries...), nil
}

// fakeEngine implements engine.Engine with per-call hooks. Calls are counted
// so tests can assert a rejected request never reached the engine.
type fakeEngine struct {
	mu    sync.Mutex
	calls map[string]int

	runFn    func(models.ContainerRunRequest) (*engine.ContainerHandle, error)
	startFn  func(string) error
	listFn   func(bool) ([]models.ContainerSummary, error)
	logsFn   func(string, engine.LogOptions) ([]string, error)
	removeFn func(string) error

	removedImageRef string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{calls: make(map[string]int)}
}

func (f *fakeEngine) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeEngine) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeEngine) RunContainer(_ context.Context, req models.ContainerRunRequest) (*engine.ContainerHandle, error) {
	f.record("run")
	if f.runFn != nil {
		return f.runFn(req)
	}
	name := req.Name
	if name == "" {
		name = "generated"
	}
	return &engine.ContainerHandle{ID: "cid-1", Name: name, Status: "running"}, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, name string) error {
	f.record("start")
	if f.startFn != nil {
		return f.startFn(name)
	}
	return nil
}

func (f *fakeEngine) StopContainer(_ context.Context, _ string, _ *int) error {
	f.record("stop")
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, name string, _, _ bool) error {
	f.record("remove")
	if f.removeFn != nil {
		return f.removeFn(name)
	}
	return nil
}

func (f *fakeEngine) ListContainers(_ context.Context, all bool) ([]models.ContainerSummary, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(all)
	}
	return nil, nil
}

func (f *fakeEngine) ContainerLogs(_ context.Context, name string, opts engine.LogOptions) ([]string, error) {
	f.record("logs")
	if f.logsFn != nil {
		return f.logsFn(name, opts)
	}
	return []string{"line one", "line two"}, nil
}

func (f *fakeEngine) ListImages(_ context.Context, _ bool) ([]models.ImageSummary, error) {
	f.record("image_list")
	return []models.ImageSummary{{ID: "sha256:abc", Tags: []string{"nginx:latest"}}}, nil
}

func (f *fakeEngine) PullImage(_ context.Context, _ string) error {
	f.record("pull")
	return nil
}

func (f *fakeEngine) PushImage(_ context.Context, _, _ string) error {
	f.record("push")
	return nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, ref string, _, _ bool) error {
	f.record("image_remove")
	f.mu.Lock()
	f.removedImageRef = ref
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) BuildImage(_ context.Context, _ models.ImageBuildRequest) error {
	f.record("build")
	return nil
}

func (f *fakeEngine) RegistryLogin(_ context.Context, _, _, _ string) (string, error) {
	f.record("registry_login")
	return "Login Succeeded", nil
}

func (f *fakeEngine) CreateVolume(_ context.Context, req models.VolumeCreateRequest) (*models.VolumeSummary, error) {
	f.record("volume_create")
	return &models.VolumeSummary{Name: req.Name, Driver: "local", Mountpoint: "/var/lib/docker/volumes/" + req.Name}, nil
}

func (f *fakeEngine) RemoveVolume(_ context.Context, _ string, _ bool) error {
	f.record("volume_remove")
	return nil
}

func (f *fakeEngine) Ping(_ context.Context) error {
	f.record("ping")
	return nil
}

type testEnv struct {
	app        *fiber.App
	users      *fakeUsers
	containers *fakeContainers
	engine     *fakeEngine
	tokens     *auth.TokenService
}

// newTestEnv builds the full route surface with in-memory collaborators.
// Rate limiting is disabled so requests do not need a live Redis; the
// limiter itself is covered by its own package tests.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Observability.MetricsPath = "/metrics"
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:       false,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		OnMissing:     config.MissingRecordDefault,
	}

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)

	// Never dialed: rate limiting is off and no test sends Idempotency-Key
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	limiter := ratelimit.New(redisClient, &cfg.RateLimit, logger)

	mgr := &middleware.Manager{
		Auth:          middleware.NewAuthMiddleware(tokens, logger),
		RateLimit:     middleware.NewRateLimitMiddleware(limiter, &cfg.RateLimit, logger),
		Idempotency:   middleware.NewIdempotencyMiddleware(redisClient, logger),
		ErrorLogger:   middleware.NewErrorLoggerMiddleware(logger),
		EngineBreaker: middleware.NewCircuitBreaker("docker-engine", logger),
		Tokens:        tokens,
		Limiter:       limiter,
		RedisClient:   redisClient,
		Config:        cfg,
		Logger:        logger,
	}

	users := newFakeUsers()
	containers := &fakeContainers{}
	eng := newFakeEngine()

	app := fiber.New()
	Setup(app, cfg, logger, mgr, users, containers, eng)

	return &testEnv{
		app:        app,
		users:      users,
		containers: containers,
		engine:     eng,
		tokens:     tokens,
	}
}

func (env *testEnv) addUser(t *testing.T, username, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, env.users.Insert(context.Background(), &models.User{
		UserID:       username + "-id",
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}))
}

func (env *testEnv) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	token, err := env.tokens.Issue(username, role)
	require.NoError(t, err)
	return token
}

func jsonRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := decodeBody(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/auth/signup", map[string]string{
		"username": "alice",
		"password": "hunter22",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = env.app.Test(jsonRequest(t, "POST", "/auth/login", map[string]string{
		"username": "alice",
		"password": "hunter22",
	}, ""), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "user", body["role"])
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "hunter22", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/auth/signup", map[string]string{
		"username": "alice",
		"password": "different",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errorCode(t, resp))
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/auth/signup", map[string]string{
		"username": "mallory",
		"password": "hunter22",
		"role":     "root",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "hunter22", models.RoleUser)

	// Wrong password and unknown user must be indistinguishable
	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "nobody", "password": "hunter22"},
	} {
		resp, err := env.app.Test(jsonRequest(t, "POST", "/auth/login", creds, ""), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
	}
}

func TestTokenEndpointAcceptsForm(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "hunter22", models.RoleUser)

	form := url.Values{}
	form.Set("username", "alice")
	form.Set("password", "hunter22")

	req := httptest.NewRequest("POST", "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
}

func TestAuthGateUniformRejection(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/images/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := env.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
		})
	}

	assert.Zero(t, env.engine.callCount("image_list"), "rejected requests must not reach the engine")
}

func TestExpiredTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	// Issue from a service whose clock sits two hours in the past
	past := time.Now().Add(-2 * time.Hour)
	staleIssuer := auth.NewTokenService([]byte("test-secret"), time.Hour).WithClock(func() time.Time { return past })
	token, err := staleIssuer.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	resp, err := env.app.Test(jsonRequest(t, "GET", "/images/", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
}

func TestRoleGuardBlocksNonAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bob", models.RoleUser)

	adminOnly := []struct {
		method string
		path   string
	}{
		{"GET", "/containers/"},
		{"POST", "/containers/web/start"},
		{"POST", "/containers/web/stop"},
		{"DELETE", "/containers/web"},
		{"DELETE", "/images/nginx:latest"},
		{"DELETE", "/volumes/data"},
		{"GET", "/admin/users"},
		{"DELETE", "/admin/users/alice"},
	}

	for _, tc := range adminOnly {
		resp, err := env.app.Test(jsonRequest(t, tc.method, tc.path, nil, token))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
	}

	// None of the rejected calls may have touched the engine or the store
	for _, op := range []string{"list", "start", "stop", "remove", "image_remove", "volume_remove"} {
		assert.Zero(t, env.engine.callCount(op), "operation %s leaked past the role guard", op)
	}
}

func TestRoleMatchIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bob", "Admin")

	resp, err := env.app.Test(jsonRequest(t, "GET", "/admin/users", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestContainerRunRecordsOwnership(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "alice", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/containers/", map[string]interface{}{
		"image": "nginx:latest",
		"name":  "web",
	}, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "web", body["name"])
	assert.Equal(t, "running", body["status"])

	entries, err := env.containers.ListByUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "web", entries[0].ContainerName)
}

func TestContainerRunRequiresImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "alice", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/containers/", map[string]string{"name": "web"}, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, env.engine.callCount("run"))
}

func TestContainerStartUnknownIs404(t *testing.T) {
	env := newTestEnv(t)
	env.engine.startFn = func(string) error { return engine.ErrNotFound }
	token := env.tokenFor(t, "root", models.RoleAdmin)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/containers/ghost/start", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))
}

func TestContainerLogsAnyUser(t *testing.T) {
	env := newTestEnv(t)
	env.engine.logsFn = func(name string, opts engine.LogOptions) ([]string, error) {
		assert.Equal(t, "web", name)
		assert.Equal(t, "50", opts.Tail)
		return []string{"hello"}, nil
	}
	token := env.tokenFor(t, "bob", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "GET", "/containers/web/logs?tail=50", nil, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "web", body["container"])
}

func TestImageRemoveKeepsSlashedRef(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "root", models.RoleAdmin)

	resp, err := env.app.Test(jsonRequest(t, "DELETE", "/images/library/nginx:latest", nil, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "library/nginx:latest", env.engine.removedImageRef)
}

func TestVolumeCreate(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "alice", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "POST", "/volumes/", map[string]string{"name": "data"}, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "data", body["name"])
	assert.Equal(t, "local", body["driver"])
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "hunter22", models.RoleUser)
	token := env.tokenFor(t, "root", models.RoleAdmin)

	resp, err := env.app.Test(jsonRequest(t, "DELETE", "/admin/users/alice", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, err = env.users.Find(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is a 404
	resp, err = env.app.Test(jsonRequest(t, "DELETE", "/admin/users/alice", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root", "hunter22", models.RoleAdmin)
	token := env.tokenFor(t, "root", models.RoleAdmin)

	resp, err := env.app.Test(jsonRequest(t, "DELETE", "/admin/users/root", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	_, err = env.users.Find(context.Background(), "root")
	assert.NoError(t, err, "self-delete must not remove the account")
}

func TestAdminContainerListJoinsOwnership(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.containers.Record(context.Background(), models.UserContainer{
		Username:      "alice",
		ContainerName: "web",
		CreatedAt:     time.Now(),
	}))
	env.engine.listFn = func(bool) ([]models.ContainerSummary, error) {
		return []models.ContainerSummary{
			{ID: "c1", Name: "web", Image: []string{"nginx"}, Status: "running"},
			{ID: "c2", Name: "orphan", Image: []string{"redis"}, Status: "exited"},
		}, nil
	}
	token := env.tokenFor(t, "root", models.RoleAdmin)

	resp, err := env.app.Test(jsonRequest(t, "GET", "/admin/containers", nil, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	containers, ok := body["containers"].([]interface{})
	require.True(t, ok)
	require.Len(t, containers, 2)

	first := containers[0].(map[string]interface{})
	assert.Equal(t, "alice", first["owner"])

	second := containers[1].(map[string]interface{})
	_, hasOwner := second["owner"]
	assert.False(t, hasOwner, "unowned container must not carry an owner")
}

func TestRateLimitGetOtherUserForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bob", models.RoleUser)

	resp, err := env.app.Test(jsonRequest(t, "GET", "/rate-limit/alice", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
}

func TestRateLimitSetRejectsBadBody(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "root", models.RoleAdmin)

	for _, body := range []map[string]int{
		{"limit": 0, "window_seconds": 60},
		{"limit": 5, "window_seconds": 0},
	} {
		resp, err := env.app.Test(jsonRequest(t, "POST", "/rate-limit/alice/set", body, token))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "body %v", body)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)

	// Unregistered paths fall through to the 404 handler without hitting
	// the auth gate, token or not
	resp, err := env.app.Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))

	token := env.tokenFor(t, "alice", models.RoleUser)
	resp, err = env.app.Test(jsonRequest(t, "GET", "/containers/nope/unknown", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))

	// Registered protected paths still demand a bearer token
	resp, err = env.app.Test(httptest.NewRequest("GET", "/containers/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
}

func TestLogoutRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("POST", "/auth/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token := env.tokenFor(t, "alice", models.RoleUser)
	resp, err = env.app.Test(jsonRequest(t, "POST", "/auth/logout", nil, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
