package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound - заметки нет на сервере: не существовала, уже прочитана или истекла.
var ErrNotFound = errors.New("note not found or already viewed")

// ErrInvalidLink - ссылка не содержит id в пути или ключ во фрагменте.
var ErrInvalidLink = errors.New("invalid note link")

// HTTPClient используется всеми запросами пакета; в тестах может быть заменён.
var HTTPClient = &http.Client{Timeout: 30 * time.Second}

// CreateResponse - ответ сервера на POST /n.
type CreateResponse struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	ExpiresIn int64  `json:"expiresIn"`
}

type errorBody struct {
	Error string `json:"error"`
}

// PostNote загружает зашифрованный конверт. ttlSeconds == 0 - TTL сервера по умолчанию.
func PostNote(ctx context.Context, serverURL string, blob []byte, ttlSeconds int) (CreateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/n", bytes.NewReader(blob))
	if err != nil {
		return CreateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if ttlSeconds != 0 {
		req.Header.Set("X-Note-TTL", strconv.Itoa(ttlSeconds))
	}
	resp, body, err := do(req)
	if err != nil {
		return CreateResponse{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		return CreateResponse{}, statusError(resp, body)
	}
	var out CreateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return CreateResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if out.ID == "" {
		return CreateResponse{}, errors.New("server returned empty note id")
	}
	return out, nil
}

// FetchNote забирает заметку. Сервер удаляет её после этого запроса.
func FetchNote(ctx context.Context, serverURL, id string) ([]byte, error) {
	u := strings.TrimRight(serverURL, "/") + "/n/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, statusError(resp, body)
	}
}

func do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

func statusError(resp *http.Response, body []byte) error {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, eb.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// BuildLink собирает ссылку <server>/n/<id>#<key>. Ключ во фрагменте на сервер не уходит.
func BuildLink(serverURL, id, key string) string {
	return strings.TrimRight(serverURL, "/") + "/n/" + id + "#" + key
}

// ParseLink разбирает ссылку на адрес сервера, id и ключ.
func ParseLink(link string) (serverURL, id, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", "", ErrInvalidLink
	}
	const marker = "/n/"
	i := strings.LastIndex(u.Path, marker)
	if i < 0 {
		return "", "", "", ErrInvalidLink
	}
	id = u.Path[i+len(marker):]
	key = u.Fragment
	if id == "" || strings.Contains(id, "/") || key == "" {
		return "", "", "", ErrInvalidLink
	}
	serverURL = u.Scheme + "://" + u.Host + u.Path[:i]
	return serverURL, id, key, nil
}
