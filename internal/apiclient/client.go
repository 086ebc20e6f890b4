package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/watchroom/internal/domain"
)

const (
	guestIdHeader = "St-Guest-Id"
	apiPrefix     = "/api/v1"

	defaultTimeout = 10 * time.Second
)

var ErrNoIdentity = errors.New("no identity configured")

// APIError is a non-2xx answer from the server. It unwraps to the domain error
// matching its code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return domain.ErrorForCode(e.Code)
}

// Client talks to the room server as one identity: a bearer token issued by the
// auth service, or a guest id.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	guestID    string
	token      string
}

type Option func(*Client)

func WithGuestID(id string) Option {
	return func(c *Client) { c.guestID = id }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Identity returns the participant id the server will see. For a token it is
// the token subject, read without verifying the signature.
func (c *Client) Identity() (string, error) {
	if c.token != "" {
		claims := jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(c.token, &claims); err != nil {
			return "", fmt.Errorf("failed to parse token: %w", err)
		}
		if claims.Subject == "" {
			return "", fmt.Errorf("%w: token has no subject", ErrNoIdentity)
		}
		return claims.Subject, nil
	}

	if c.guestID == "" {
		return "", ErrNoIdentity
	}

	return c.guestID, nil
}

func roomPath(roomID string, parts ...string) string {
	p := "/rooms/" + url.PathEscape(roomID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do sends body as JSON and decodes the "data" member of the answer into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.guestID != "" {
		req.Header.Set(guestIdHeader, c.guestID)
	}

	c.logger.DebugContext(ctx, "request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
			eb = errorBody{Error: http.StatusText(resp.StatusCode), Code: domain.CodeInternal}
		}
		return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Error}
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}

	return nil
}

func (c *Client) CreateRoom(ctx context.Context, name, displayName string) (domain.Room, domain.Participant, error) {
	var out struct {
		Room        domain.Room        `json:"room"`
		Participant domain.Participant `json:"participant"`
	}
	err := c.do(ctx, http.MethodPost, "/rooms", map[string]string{
		"name":         name,
		"display_name": displayName,
	}, &out)
	if err != nil {
		return domain.Room{}, domain.Participant{}, err
	}

	return out.Room, out.Participant, nil
}

func (c *Client) GetRoomSync(ctx context.Context, roomID string) (domain.RoomSync, error) {
	var out domain.RoomSync
	if err := c.do(ctx, http.MethodGet, roomPath(roomID, "sync"), nil, &out); err != nil {
		return domain.RoomSync{}, err
	}

	return out, nil
}

func (c *Client) PutRoomSync(ctx context.Context, roomID string, update domain.PlaybackUpdate) (int64, error) {
	var out struct {
		UpdatedAt int64 `json:"updated_at"`
	}
	if err := c.do(ctx, http.MethodPut, roomPath(roomID, "sync"), update, &out); err != nil {
		return 0, err
	}

	return out.UpdatedAt, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID, displayName string) (domain.Participant, error) {
	var out struct {
		Participant domain.Participant `json:"participant"`
	}
	err := c.do(ctx, http.MethodPost, roomPath(roomID, "join"), map[string]string{
		"display_name": displayName,
	}, &out)
	if err != nil {
		return domain.Participant{}, err
	}

	return out.Participant, nil
}

func (c *Client) Heartbeat(ctx context.Context, roomID string, status domain.Status) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "presence", "heartbeat"), map[string]string{
		"status": string(status),
	}, nil)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "presence", "leave"), nil, nil)
}

func (c *Client) UpdateParticipant(ctx context.Context, roomID, targetID string, update domain.ParticipantUpdate) (domain.Participant, error) {
	var out struct {
		Participant domain.Participant `json:"participant"`
	}
	if err := c.do(ctx, http.MethodPut, roomPath(roomID, "participants", url.PathEscape(targetID)), update, &out); err != nil {
		return domain.Participant{}, err
	}

	return out.Participant, nil
}

func (c *Client) KickParticipant(ctx context.Context, roomID, targetID string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "kicks", url.PathEscape(targetID)), nil, nil)
}

func (c *Client) UnkickParticipant(ctx context.Context, roomID, targetID string) error {
	return c.do(ctx, http.MethodDelete, roomPath(roomID, "kicks", url.PathEscape(targetID)), nil, nil)
}
