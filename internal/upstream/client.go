package upstream

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
	"time"
)

// Client talks to the portal REST API on behalf of the signed-in user.
// Responses are returned undecoded; sections normalize them.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Error is a non-2xx answer from the portal.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	msg := e.Body
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// StatusCode passes client errors through and reports everything else as a bad gateway.
func (e *Error) StatusCode() int {
	if e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return http.StatusBadGateway
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// --- Network ---

func (c *Client) ListConnections(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/connections", nil, nil)
}

func (c *Client) ListPendingRequests(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/connections/requests/pending", nil, nil)
}

func (c *Client) ListSentRequests(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/connections/requests/sent", nil, nil)
}

func (c *Client) ListSuggestions(ctx context.Context, limit int) ([]byte, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, http.MethodGet, "/connections/suggestions", query, nil)
}

func (c *Client) SendRequest(ctx context.Context, targetID, kind string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/connections/requests", nil, map[string]string{
		"recipientId": targetID,
		"type":        kind,
	})
}

func (c *Client) AcceptRequest(ctx context.Context, requestID string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, "/connections/requests/"+url.PathEscape(requestID)+"/accept", nil, nil)
}

func (c *Client) RejectRequest(ctx context.Context, requestID string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, "/connections/requests/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

func (c *Client) CancelRequest(ctx context.Context, requestID string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, "/connections/requests/"+url.PathEscape(requestID), nil, nil)
}

func (c *Client) RemoveConnection(ctx context.Context, connectionID string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, "/connections/"+url.PathEscape(connectionID), nil, nil)
}

// --- Learning ---

func (c *Client) ListEnrolledCourses(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/courses/enrolled", nil, nil)
}

func (c *Client) ListCourseAnnouncements(ctx context.Context, courseID string, limit int) ([]byte, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/announcements", query, nil)
}

func (c *Client) ListUpcomingLiveSessions(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/live-sessions/upcoming", nil, nil)
}

func (c *Client) GetCourseProgress(ctx context.Context, courseID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/progress", nil, nil)
}

func (c *Client) MarkAnnouncementRead(ctx context.Context, announcementID string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, "/announcements/"+url.PathEscape(announcementID)+"/read", nil, nil)
}
