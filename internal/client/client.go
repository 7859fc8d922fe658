// Package client is a typed HTTP client for the support desk API. It keeps
// one session per instance and caches the caller's role until the
// credentials change.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
)

const apiPrefix = "/api"

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the support desk API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	creds *domain.Credentials
	// gen increments on every credential change so responses to requests
	// made with older credentials cannot clobber newer state.
	gen  uint64
	user *dto.UserResponse
}

// NewClient validates the configuration and returns a client without credentials.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("supportdesk: invalid base URL %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: base, httpClient: httpClient}, nil
}

// SetCredentials replaces the session and drops any cached role. An empty
// username or password clears the session.
func (c *Client) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.user = nil
	if username == "" || password == "" {
		c.creds = nil
		return
	}
	c.creds = &domain.Credentials{Username: username, Password: password}
}

// ClearCredentials ends the session.
func (c *Client) ClearCredentials() {
	c.SetCredentials("", "")
}

// HasCredentials reports whether a session is set.
func (c *Client) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds != nil
}

// Username returns the session's username, or "".
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return ""
	}
	return c.creds.Username
}

// Login verifies the current credentials and caches the returned user.
func (c *Client) Login(ctx context.Context) (*dto.LoginResponse, error) {
	creds, gen, err := c.session()
	if err != nil {
		return nil, err
	}
	var out dto.LoginResponse
	body := dto.LoginRequest{Username: creds.Username, Password: creds.Password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		c.invalidate(gen)
		return nil, err
	}
	c.cacheUser(gen, out.User)
	return &out, nil
}

// CurrentUser fetches the session's user record and refreshes the cached role.
func (c *Client) CurrentUser(ctx context.Context) (*dto.UserResponse, error) {
	_, gen, err := c.session()
	if err != nil {
		return nil, err
	}
	var out dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/current", nil, &out); err != nil {
		return nil, err
	}
	c.cacheUser(gen, out)
	return &out, nil
}

// CurrentRole returns the cached role, fetching it on first use. Any failure
// clears the session.
func (c *Client) CurrentRole(ctx context.Context) (domain.Role, error) {
	c.mu.Lock()
	if c.creds == nil {
		c.mu.Unlock()
		return "", ErrNoCredentials
	}
	if c.user != nil {
		role := c.user.Role
		c.mu.Unlock()
		return role, nil
	}
	gen := c.gen
	c.mu.Unlock()

	user, err := c.CurrentUser(ctx)
	if err != nil {
		c.invalidate(gen)
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return user.Role, nil
}

// ListTickets returns the caller's visible tickets.
func (c *Client) ListTickets(ctx context.Context) ([]dto.TicketResponse, error) {
	var out []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchTickets searches by id when ticketID is non-nil, else by status when
// status is non-empty, else lists everything.
func (c *Client) SearchTickets(ctx context.Context, ticketID *int64, status string) ([]dto.TicketResponse, error) {
	query := url.Values{}
	if ticketID != nil {
		query.Set("ticketId", strconv.FormatInt(*ticketID, 10))
	}
	if status != "" {
		query.Set("status", status)
	}
	path := "/tickets/search"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicket fetches one ticket.
func (c *Client) GetTicket(ctx context.Context, id int64) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, ticketPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTicket opens a new ticket.
func (c *Client) CreateTicket(ctx context.Context, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, http.MethodPost, "/tickets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus changes a ticket's status.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status string) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	path := ticketPath(id) + "/status?" + url.Values{"status": {status}}.Encode()
	if err := c.do(ctx, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTicket removes a ticket with its comments and audit trail.
func (c *Client) DeleteTicket(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, ticketPath(id), nil, nil)
}

// AuditLog returns a ticket's audit entries, newest first.
func (c *Client) AuditLog(ctx context.Context, id int64) ([]dto.AuditLogResponse, error) {
	var out []dto.AuditLogResponse
	if err := c.do(ctx, http.MethodGet, ticketPath(id)+"/audit", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment posts a comment on a ticket.
func (c *Client) AddComment(ctx context.Context, ticketID int64, content string) (*dto.CommentResponse, error) {
	var out dto.CommentResponse
	body := dto.AddCommentRequest{TicketID: ticketID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/comments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comments lists a ticket's comments, newest first.
func (c *Client) Comments(ctx context.Context, ticketID int64) ([]dto.CommentResponse, error) {
	var out []dto.CommentResponse
	if err := c.do(ctx, http.MethodGet, "/comments/ticket/"+strconv.FormatInt(ticketID, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func ticketPath(id int64) string {
	return "/tickets/" + strconv.FormatInt(id, 10)
}

func (c *Client) session() (domain.Credentials, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return domain.Credentials{}, c.gen, ErrNoCredentials
	}
	return *c.creds, c.gen, nil
}

// invalidate clears the session only if it has not changed since gen.
func (c *Client) invalidate(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.gen++
	c.creds = nil
	c.user = nil
}

func (c *Client) cacheUser(gen uint64, user dto.UserResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.user = &user
	}
}

// do sends an authenticated request and decodes the data envelope into result.
// A 401 ends the session.
func (c *Client) do(ctx context.Context, method, path string, requestBody, result any) error {
	creds, gen, err := c.session()
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("supportdesk: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bodyReader)
	if err != nil {
		return fmt.Errorf("supportdesk: creating request: %w", err)
	}
	request.SetBasicAuth(creds.Username, creds.Password)
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("supportdesk: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("supportdesk: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if response.StatusCode == http.StatusUnauthorized {
			c.invalidate(gen)
		}
		return parseAPIError(response.StatusCode, body)
	}
	if result == nil || len(body) == 0 {
		return nil
	}

	envelope := dto.DataEnvelope[json.RawMessage]{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("supportdesk: decoding response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("supportdesk: decoding response data: %w", err)
	}
	return nil
}
