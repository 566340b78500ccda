package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coachchat/internal/auth"
	"coachchat/pkg/logger"
)

// Client talks to the chat backend. Every call attaches the session's
// bearer token; a missing token fails before any network traffic.
type Client struct {
	baseURL string
	http    *http.Client
	session *auth.Session
	log     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(baseURL string, session *auth.Session, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMessages fetches one page of history, newest first from the
// backend's point of view. An empty cursor requests the newest page.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (MessagesPage, error) {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	query.Set("limit", strconv.Itoa(limit))

	var page MessagesPage
	if err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &page); err != nil {
		return MessagesPage{}, err
	}
	return page, nil
}

// SendMessage posts a new message; the backend echoes the canonical
// message.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req SendMessageRequest) (Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	var msg Message
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/read", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) (Message, error) {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	var msg Message
	if err := c.do(ctx, http.MethodPut, path, EditMessageRequest{Content: content}, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UploadVoice sends the audio blob and its duration as multipart form
// data and returns the stored media URL.
func (c *Client) UploadVoice(ctx context.Context, audio io.Reader, filename string, duration float64) (VoiceUpload, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return VoiceUpload{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return VoiceUpload{}, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("duration", strconv.FormatFloat(duration, 'f', -1, 64)); err != nil {
		return VoiceUpload{}, fmt.Errorf("write duration field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return VoiceUpload{}, err
	}

	var out VoiceUpload
	if err := c.doMultipart(ctx, "/audio/upload-voice", writer.FormDataContentType(), body, &out); err != nil {
		return VoiceUpload{}, err
	}
	return out, nil
}

// UploadImage sends an image asset to the generic upload endpoint.
func (c *Client) UploadImage(ctx context.Context, image io.Reader, filename, contentType string) (ImageUpload, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return ImageUpload{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return ImageUpload{}, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.WriteField("content_type", contentType); err != nil {
		return ImageUpload{}, err
	}
	if err := writer.Close(); err != nil {
		return ImageUpload{}, err
	}

	var out ImageUpload
	if err := c.doMultipart(ctx, "/uploads", writer.FormDataContentType(), body, &out); err != nil {
		return ImageUpload{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.session.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
