// Package restapi implements the outbound client for the NearYou dashboard
// REST API: token issuance, polling fallback, shop queries, promotion history,
// profile and stats.
package restapi

import (
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

	"github.com/nearyou/nearsync/internal/core/domain"
)

// Client talks to the dashboard API. All calls except token issuance carry
// Authorization: Bearer <token>; on a 401 the token is dropped and the call
// retried once with a fresh one.
type Client struct {
	baseURL  string
	username string
	password string
	hc       *http.Client

	mu    sync.Mutex
	token string
}

// New creates a Client. baseURL must not end with a slash.
func New(baseURL, username, password string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		hc:       &http.Client{Timeout: timeout},
	}
}

// Token returns the cached bearer token, logging in when none is held.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token request: empty access_token")
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.mu.Unlock()
	return body.AccessToken, nil
}

// LatestPositions implements ports.PositionPoller via GET /api/user/positions.
func (c *Client) LatestPositions(ctx context.Context) ([]domain.PositionUpdate, error) {
	var body struct {
		Positions []domain.PositionUpdate `json:"positions"`
	}
	if err := c.getJSON(ctx, "/api/user/positions", nil, &body); err != nil {
		return nil, err
	}
	return body.Positions, nil
}

// Promotions implements ports.PromotionProvider via GET /api/user/promotions.
func (c *Client) Promotions(ctx context.Context, offset, limit int) ([]domain.Promotion, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		Promotions []promotionRow `json:"promotions"`
	}
	if err := c.getJSON(ctx, "/api/user/promotions", q, &body); err != nil {
		return nil, err
	}

	out := make([]domain.Promotion, 0, len(body.Promotions))
	for _, row := range body.Promotions {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Profile implements ports.ProfileProvider via GET /api/user/profile.
func (c *Client) Profile(ctx context.Context) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := c.getJSON(ctx, "/api/user/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats implements ports.ProfileProvider via GET /api/user/stats.
func (c *Client) Stats(ctx context.Context) (*domain.UserStats, error) {
	var s domain.UserStats
	if err := c.getJSON(ctx, "/api/user/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// getJSON performs an authenticated GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	data, status, err := c.getOnce(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// Token expired; drop it and retry once.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		data, status, err = c.getOnce(ctx, path, query)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, status)
	}
	return data, nil
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return data, resp.StatusCode, nil
}

// promotionRow tolerates the upstream timestamp formats.
type promotionRow struct {
	EventID   int64  `json:"event_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ShopName  string `json:"shop_name"`
}

func (r promotionRow) toDomain() domain.Promotion {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		ts, _ = time.Parse("2006-01-02 15:04:05", r.Timestamp)
	}
	return domain.Promotion{
		EventID:   r.EventID,
		Message:   r.Message,
		Timestamp: ts,
		ShopName:  r.ShopName,
	}
}
