package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webforge/internal/domain"
)

// AdminClient talks to the Supabase Admin API. cmd/seed uses it to provision
// a test account before granting it credits; requests never go through it.
type AdminClient struct {
	supabaseURL string
	serviceKey  string
	httpClient  *http.Client
}

// NewAdminClient creates an admin client. serviceKey is the service role key.
func NewAdminClient(supabaseURL, serviceKey string) *AdminClient {
	return &AdminClient{
		supabaseURL: strings.TrimRight(supabaseURL, "/"),
		serviceKey:  serviceKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

// AdminUser is the part of a Supabase user record the seed tool needs
type AdminUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listUsersResponse struct {
	Users []AdminUser `json:"users"`
}

// EnsureUser returns the ID of the user with email, creating a confirmed
// account with password when none exists.
func (c *AdminClient) EnsureUser(ctx context.Context, email, password string) (string, error) {
	id, err := c.FindUserID(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return c.CreateUser(ctx, email, password)
}

// FindUserID looks a user up by email. Returns domain.ErrNotFound when absent.
func (c *AdminClient) FindUserID(ctx context.Context, email string) (string, error) {
	var list listUsersResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users", nil, &list); err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	for _, user := range list.Users {
		if strings.EqualFold(user.Email, email) {
			return user.ID, nil
		}
	}
	return "", fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

// CreateUser creates a confirmed user and returns its ID
func (c *AdminClient) CreateUser(ctx context.Context, email, password string) (string, error) {
	var user AdminUser
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", &createUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
	}, &user)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.supabaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
