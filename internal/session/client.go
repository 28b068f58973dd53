// File: internal/session/client.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/relay"
)

// APIError is a non-2xx response. Message is the server's user-facing error
// text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the chat HTTP API on behalf of one principal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a Client for baseURL. A nil httpClient gets a default
// one without an overall timeout, since turn responses are long-lived
// streams.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 2 * time.Minute,
			IdleConnTimeout:       90 * time.Second,
		}}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: httpClient}
}

func (c *Client) ListChats(ctx context.Context) ([]dtos.ChatResponseDTO, error) {
	var out dtos.ChatListResponseDTO
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) CreateChat(ctx context.Context, title string) (string, error) {
	var out dtos.IDResponseDTO
	if err := c.doJSON(ctx, http.MethodPost, "/api/chats", dtos.CreateChatRequestDTO{Title: title}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(chatID), nil, nil)
}

func (c *Client) Messages(ctx context.Context, chatID string) ([]dtos.MessageResponseDTO, error) {
	var out dtos.MessageListResponseDTO
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) error {
	return c.doJSON(ctx, http.MethodPatch, "/api/messages/"+url.PathEscape(messageID), dtos.EditMessageRequestDTO{Content: content}, nil)
}

func (c *Client) Profile(ctx context.Context) (*dtos.ProfileResponseDTO, error) {
	var out dtos.ProfileResponseDTO
	if err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends one file. chatID may be empty for a chat that does not exist
// yet.
func (c *Client) Upload(ctx context.Context, chatID, name string, content io.Reader) (*dtos.UploadResponseDTO, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	path := "/api/files/upload"
	if chatID != "" {
		path += "?chatId=" + url.QueryEscape(chatID)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out dtos.UploadResponseDTO
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TurnStream is an open turn response. Close releases the transport and
// stops the server from relaying further output.
type TurnStream struct {
	ChatID    string
	MessageID string

	body    io.ReadCloser
	decoder *relay.Decoder
}

func (s *TurnStream) Next() (relay.Event, error) { return s.decoder.Next() }

func (s *TurnStream) Close() error { return s.body.Close() }

// StartTurn posts a turn and returns once the response headers arrive.
// Errors reported before streaming come back as *APIError.
func (c *Client) StartTurn(ctx context.Context, turn dtos.TurnRequestDTO) (*TurnStream, error) {
	body, err := json.Marshal(turn)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return &TurnStream{
		ChatID:    resp.Header.Get(relay.HeaderChatID),
		MessageID: resp.Header.Get(relay.HeaderMessageID),
		body:      resp.Body,
		decoder:   relay.NewDecoder(resp.Body),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body dtos.ErrorResponseDTO
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
