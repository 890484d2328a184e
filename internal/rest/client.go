// Package rest is the client for the request/response collaborator: room
// listings, paginated message history, the user directory, file uploads and
// reaction toggles.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"chat-client/internal/models"
)

// ErrUpload classifies file-upload failures so the UI can report them apart
// from message-send failures; the message may still go out as text-only.
var ErrUpload = errors.New("file upload failed")

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("resource not found")

// API is the surface the rest of the client consumes; tests substitute a
// mock.
type API interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	RoomMessages(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, error)
	Users(ctx context.Context) ([]models.User, error)
	UploadFile(ctx context.Context, filename string, content io.Reader) (string, error)
	ToggleReaction(ctx context.Context, messageID, emoji string) ([]models.ReactionGroup, error)
}

// Client implements API against the chat backend's HTTP surface.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient builds a Client for the given base URL and bearer token.
func NewClient(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// ListRooms fetches the room list with last-message and unread summaries.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var resp struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := c.getJSON(ctx, "/rooms", nil, &resp); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// RoomMessages fetches one history page for a room, oldest first. beforeID
// pages backwards; empty fetches the latest page.
func (c *Client) RoomMessages(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, error) {
	query := url.Values{}
	if beforeID != "" {
		query.Set("before", beforeID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.getJSON(ctx, "/rooms/"+url.PathEscape(roomID)+"/messages", query, &resp); err != nil {
		return nil, fmt.Errorf("room messages: %w", err)
	}
	for i := range resp.Messages {
		resp.Messages[i].State = models.StateConfirmed
	}
	return resp.Messages, nil
}

// Users fetches the user directory for name resolution.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var resp struct {
		Users []models.User `json:"users"`
	}
	if err := c.getJSON(ctx, "/users", nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return resp.Users, nil
}

// UploadFile uploads an attachment and returns the file id to reference in
// a message.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp struct {
		FileID string `json:"file_id"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return resp.FileID, nil
}

// ToggleReaction flips the caller's reaction on a message and returns the
// authoritative reaction groups after the change.
func (c *Client) ToggleReaction(ctx context.Context, messageID, emoji string) ([]models.ReactionGroup, error) {
	payload, err := json.Marshal(map[string]string{"emoji": emoji})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/reactions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Reactions []models.ReactionGroup `json:"reactions"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	return resp.Reactions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	_, span := otel.Tracer("chat-client/rest").Start(req.Context(), "rest."+req.Method)
	defer span.End()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
