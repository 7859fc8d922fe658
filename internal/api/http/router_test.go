package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", BcryptCost: 4}, service.AuthDependencies{Store: store, Logger: logger})
	require.NoError(t, authService.Bootstrap(t.Context(), []config.BootstrapUser{
		{Username: "alice", Password: "alice-pw", FullName: "Alice Employee", Role: domain.RoleEmployee},
		{Username: "bob", Password: "bob-pw", FullName: "Bob Support", Role: domain.RoleITSupport},
	}))

	metrics := observability.NewMetrics()
	return NewApp(ServerConfig{
		AppName: "support-desk-test",
		Logger:  logger,
		Metrics: metrics,
		Routes: RouteConfig{
			Health:         handlers.NewHealthHandler("support-desk", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
			Auth:           handlers.NewAuthHandler(authService),
			Tickets:        handlers.NewTicketsHandler(service.NewTicketService(service.TicketDependencies{Store: store, Dispatcher: dispatcher, Logger: logger})),
			Comments:       handlers.NewCommentsHandler(service.NewCommentService(service.CommentDependencies{Store: store, Dispatcher: dispatcher, Logger: logger})),
			AuthMiddleware: auth.NewAuthMiddleware(authService),
		},
	})
}

type caller struct {
	t    *testing.T
	app  *fiber.App
	auth string
}

func basicAuth(user, pw string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pw))
}

func (c caller) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, raw
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var env dto.DataEnvelope[T]
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return env.Data
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var env dto.ErrorEnvelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return env.Error.Code
}

func TestEndToEndTicketScenario(t *testing.T) {
	app := newTestApp(t)
	alice := caller{t: t, app: app, auth: basicAuth("alice", "alice-pw")}
	bob := caller{t: t, app: app, auth: basicAuth("bob", "bob-pw")}

	status, raw := alice.do(http.MethodPost, "/api/tickets", dto.CreateTicketRequest{
		Title: "Printer down", Description: "Third floor printer", Priority: "HIGH", Category: "HARDWARE",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	ticket := decodeData[dto.TicketResponse](t, raw)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, "alice", ticket.CreatedByUsername)

	auditPath := "/api/tickets/" + itoa(ticket.ID) + "/audit"
	status, raw = bob.do(http.MethodGet, auditPath, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]dto.AuditLogResponse](t, raw), 1)

	statusPath := "/api/tickets/" + itoa(ticket.ID) + "/status?status=IN_PROGRESS"
	status, raw = bob.do(http.MethodPut, statusPath, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, domain.TicketStatusInProgress, decodeData[dto.TicketResponse](t, raw).Status)

	status, raw = bob.do(http.MethodGet, auditPath, nil)
	require.Equal(t, http.StatusOK, status)
	entries := decodeData[[]dto.AuditLogResponse](t, raw)
	require.Len(t, entries, 2)
	assert.Equal(t, "NEW", entries[0].OldValue)
	assert.Equal(t, "IN_PROGRESS", entries[0].NewValue)

	status, raw = alice.do(http.MethodPut, "/api/tickets/"+itoa(ticket.ID)+"/status?status=RESOLVED", nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, raw))

	status, raw = alice.do(http.MethodGet, "/api/tickets/"+itoa(ticket.ID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TicketStatusInProgress, decodeData[dto.TicketResponse](t, raw).Status)

	status, raw = bob.do(http.MethodGet, auditPath, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]dto.AuditLogResponse](t, raw), 2)

	status, _ = alice.do(http.MethodGet, auditPath, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestErrorClassesAreDistinct(t *testing.T) {
	app := newTestApp(t)
	alice := caller{t: t, app: app, auth: basicAuth("alice", "alice-pw")}
	bob := caller{t: t, app: app, auth: basicAuth("bob", "bob-pw")}
	anonymous := caller{t: t, app: app}
	wrong := caller{t: t, app: app, auth: basicAuth("alice", "nope")}

	cases := []struct {
		name   string
		who    caller
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing credentials", anonymous, http.MethodGet, "/api/tickets", nil, 401, "UNAUTHORIZED"},
		{"wrong password", wrong, http.MethodGet, "/api/tickets", nil, 401, "UNAUTHORIZED"},
		{"empty title", alice, http.MethodPost, "/api/tickets", dto.CreateTicketRequest{Description: "d", Priority: "LOW", Category: "OTHER"}, 400, "VALIDATION_FAILED"},
		{"bad id", alice, http.MethodGet, "/api/tickets/abc", nil, 400, "VALIDATION_FAILED"},
		{"bad status", bob, http.MethodPut, "/api/tickets/1/status?status=DONE", nil, 400, "VALIDATION_FAILED"},
		{"missing ticket", bob, http.MethodPut, "/api/tickets/42/status?status=RESOLVED", nil, 404, "NOT_FOUND"},
		{"employee status change", alice, http.MethodPut, "/api/tickets/42/status?status=RESOLVED", nil, 403, "FORBIDDEN"},
		{"employee delete", alice, http.MethodDelete, "/api/tickets/42", nil, 403, "FORBIDDEN"},
		{"comment on missing ticket", alice, http.MethodPost, "/api/comments", dto.AddCommentRequest{TicketID: 42, Content: "hi"}, 404, "NOT_FOUND"},
		{"empty comment", alice, http.MethodPost, "/api/comments", dto.AddCommentRequest{TicketID: 42, Content: ""}, 400, "VALIDATION_FAILED"},
		{"bad search id", alice, http.MethodGet, "/api/tickets/search?ticketId=x", nil, 400, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.who.t = t
			status, raw := tc.who.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status, string(raw))
			assert.Equal(t, tc.code, errorCode(t, raw))
		})
	}
}

func TestLoginAndBearerToken(t *testing.T) {
	app := newTestApp(t)
	anon := caller{t: t, app: app}

	status, raw := anon.do(http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "bob", Password: "bob-pw"})
	require.Equal(t, http.StatusOK, status, string(raw))
	login := decodeData[dto.LoginResponse](t, raw)
	assert.Equal(t, domain.RoleITSupport, login.User.Role)
	assert.Equal(t, "Bob Support", login.User.FullName)
	assert.NotContains(t, string(raw), "password")

	bearer := caller{t: t, app: app, auth: "Bearer " + login.Token}
	status, raw = bearer.do(http.MethodGet, "/api/users/current", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", decodeData[dto.UserResponse](t, raw).Username)

	status, raw = anon.do(http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "bob", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, raw))

	status, _ = anon.do(http.MethodPost, "/api/auth/login", dto.LoginRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListSearchAndComments(t *testing.T) {
	app := newTestApp(t)
	alice := caller{t: t, app: app, auth: basicAuth("alice", "alice-pw")}
	bob := caller{t: t, app: app, auth: basicAuth("bob", "bob-pw")}

	var ids []int64
	for _, who := range []caller{alice, bob, alice} {
		status, raw := who.do(http.MethodPost, "/api/tickets", dto.CreateTicketRequest{
			Title: "t", Description: "d", Priority: "low", Category: "network",
		})
		require.Equal(t, http.StatusCreated, status, string(raw))
		ids = append(ids, decodeData[dto.TicketResponse](t, raw).ID)
	}

	_, raw := alice.do(http.MethodGet, "/api/tickets", nil)
	assert.Len(t, decodeData[[]dto.TicketResponse](t, raw), 2)
	_, raw = bob.do(http.MethodGet, "/api/tickets", nil)
	assert.Len(t, decodeData[[]dto.TicketResponse](t, raw), 3)

	status, _ := bob.do(http.MethodPut, "/api/tickets/"+itoa(ids[1])+"/status?status=RESOLVED", nil)
	require.Equal(t, http.StatusOK, status)

	_, raw = alice.do(http.MethodGet, "/api/tickets/search?ticketId="+itoa(ids[0])+"&status=RESOLVED", nil)
	found := decodeData[[]dto.TicketResponse](t, raw)
	require.Len(t, found, 1)
	assert.Equal(t, ids[0], found[0].ID)

	_, raw = alice.do(http.MethodGet, "/api/tickets/search?status=resolved", nil)
	found = decodeData[[]dto.TicketResponse](t, raw)
	require.Len(t, found, 1)
	assert.Equal(t, ids[1], found[0].ID)

	_, raw = alice.do(http.MethodGet, "/api/tickets/search", nil)
	assert.Len(t, decodeData[[]dto.TicketResponse](t, raw), 3)

	for _, missing := range []string{"999", "0", "-3"} {
		status, raw = alice.do(http.MethodGet, "/api/tickets/search?ticketId="+missing, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.Empty(t, decodeData[[]dto.TicketResponse](t, raw))
	}

	for _, content := range []string{"first", "second"} {
		status, raw = alice.do(http.MethodPost, "/api/comments", dto.AddCommentRequest{TicketID: ids[1], Content: content})
		require.Equal(t, http.StatusCreated, status, string(raw))
	}
	_, raw = bob.do(http.MethodGet, "/api/comments/ticket/"+itoa(ids[1]), nil)
	comments := decodeData[[]dto.CommentResponse](t, raw)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Content)
	assert.Equal(t, "alice", comments[0].Username)

	status, _ = bob.do(http.MethodDelete, "/api/tickets/"+itoa(ids[1]), nil)
	require.Equal(t, http.StatusNoContent, status)
	_, raw = bob.do(http.MethodGet, "/api/comments/ticket/"+itoa(ids[1]), nil)
	assert.Empty(t, decodeData[[]dto.CommentResponse](t, raw))
}

func TestStoredStatusSurvivesLaterRequests(t *testing.T) {
	app := newTestApp(t)
	alice := caller{t: t, app: app, auth: basicAuth("alice", "alice-pw")}
	bob := caller{t: t, app: app, auth: basicAuth("bob", "bob-pw")}

	status, raw := alice.do(http.MethodPost, "/api/tickets", dto.CreateTicketRequest{
		Title: "VPN", Description: "drops every hour", Priority: "HIGH", Category: "NETWORK",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	id := itoa(decodeData[dto.TicketResponse](t, raw).ID)

	status, raw = bob.do(http.MethodPut, "/api/tickets/"+id+"/status?status=RESOLVED", nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	// Requests whose query strings land where the previous status value was.
	status, raw = bob.do(http.MethodGet, "/api/tickets/search?status=xxxxxxxx", nil)
	require.Equal(t, http.StatusBadRequest, status, string(raw))
	status, _ = bob.do(http.MethodPut, "/api/tickets/"+id+"/status?status=yyyyyyyy", nil)
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = alice.do(http.MethodGet, "/api/tickets/search?status=IN_PROGRESS", nil)
	require.Equal(t, http.StatusOK, status)

	_, raw = bob.do(http.MethodGet, "/api/tickets/"+id, nil)
	assert.Equal(t, domain.TicketStatusResolved, decodeData[dto.TicketResponse](t, raw).Status)

	_, raw = bob.do(http.MethodGet, "/api/tickets/"+id+"/audit", nil)
	entries := decodeData[[]dto.AuditLogResponse](t, raw)
	require.Len(t, entries, 2)
	assert.Equal(t, "RESOLVED", entries[0].NewValue)
	assert.Equal(t, "NEW", entries[0].OldValue)

	_, raw = bob.do(http.MethodGet, "/api/tickets/search?status=RESOLVED", nil)
	found := decodeData[[]dto.TicketResponse](t, raw)
	require.Len(t, found, 1)
	assert.Equal(t, domain.TicketStatusResolved, found[0].Status)
}

func TestConcurrentStatusUpdatesOverHTTP(t *testing.T) {
	app := newTestApp(t)
	alice := caller{t: t, app: app, auth: basicAuth("alice", "alice-pw")}
	status, raw := alice.do(http.MethodPost, "/api/tickets", dto.CreateTicketRequest{
		Title: "race", Description: "d", Priority: "MEDIUM", Category: "SOFTWARE",
	})
	require.Equal(t, http.StatusCreated, status)
	id := itoa(decodeData[dto.TicketResponse](t, raw).ID)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, target := range []string{"IN_PROGRESS", "RESOLVED"} {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, "/api/tickets/"+id+"/status?status="+target, nil)
			req.Header.Set("Authorization", basicAuth("bob", "bob-pw"))
			resp, err := app.Test(req, -1)
			if err == nil {
				codes[i] = resp.StatusCode
				resp.Body.Close()
			}
		}(i, target)
	}
	wg.Wait()
	assert.Equal(t, []int{200, 200}, codes)

	bob := caller{t: t, app: app, auth: basicAuth("bob", "bob-pw")}
	_, raw = bob.do(http.MethodGet, "/api/tickets/"+id+"/audit", nil)
	assert.Len(t, decodeData[[]dto.AuditLogResponse](t, raw), 3)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	anon := caller{t: t, app: app}

	status, _ := anon.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw := anon.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"postgres":"disabled"`)
	assert.Contains(t, string(raw), `"redis":"disabled"`)

	status, raw = anon.do(http.MethodGet, "/health/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "/health/ready|GET|200")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
