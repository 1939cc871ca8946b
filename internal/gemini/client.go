package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chatrelay/internal/config"
)

const snippetLimit = 200

var (
	// ErrDecode означает 2xx ответ с телом, которое не удалось разобрать.
	ErrDecode = errors.New("decode response")
)

// StatusError не-2xx ответ upstream.
type StatusError struct {
	StatusCode  int
	BodySnippet string
}

func (e *StatusError) Error() string {
	if e.BodySnippet == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.BodySnippet)
}

// Client вызывает generateContent. Ключ передаётся на каждый вызов,
// ротацией ключей клиент не занимается.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(cfg config.GeminiConfig, httpClient *http.Client) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

// Model возвращает идентификатор модели, к которой идут запросы.
func (c *Client) Model() string { return c.model }

// Generate выполняет один запрос без повторов.
// Возвращает *StatusError для не-2xx, ошибку с ErrDecode для битого 2xx тела,
// иначе обёрнутую транспортную ошибку.
func (c *Client) Generate(ctx context.Context, apiKey string, body GenerateRequest) (*Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", redactKey(err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, BodySnippet: bodySnippet(bodyBytes)}
	}

	var parsed Response
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &parsed, nil
}

// redactKey убирает URL с ключом из *url.Error, сохраняя причину.
func redactKey(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: "generateContent", Err: uerr.Err}
	}
	return err
}

func bodySnippet(body []byte) string {
	if len(body) <= snippetLimit {
		return string(body)
	}
	return string(body[:snippetLimit])
}
