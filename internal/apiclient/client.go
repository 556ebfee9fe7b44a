package apiclient

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

	"tododesk/client/internal/logging"
	"tododesk/client/internal/state"
)

// Client инкапсулирует HTTP-взаимодействия с REST-сервером задач.
// Каждый вызов — ровно один запрос: без повторов и без backoff.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *logging.Logger
	onUnauthorized func()
}

// Options позволяет переопределить зависимости клиента.
type Options struct {
	HTTPClient *http.Client
	Logger     *logging.Logger

	// OnUnauthorized вызывается при любом ответе 401. Сам клиент сессию
	// не трогает: решение о сбросе принимает слой сессии.
	OnUnauthorized func()
}

const defaultTimeout = 15 * time.Second

// New создаёт новый клиент сервера задач.
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("baseURL %q has no scheme or host", baseURL)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     client,
		logger:         opts.Logger,
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

// Error описывает проблему при запросах к серверу задач.
type Error struct {
	Op     string
	Kind   state.ErrorKind
	Status int
	Body   ErrorBody
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "api client error"
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Signup вызывает POST /auth/users/ и возвращает созданный профиль.
// Авторизация не требуется и автоматический вход не выполняется.
func (c *Client) Signup(ctx context.Context, username, email, password string) (state.UserProfile, error) {
	const op = "Signup"
	payload := SignupRequest{Username: username, Email: email, Password: password}
	resp, err := c.doJSON(ctx, http.MethodPost, "/auth/users/", "", payload)
	if err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return state.UserProfile{}, c.statusError(op, resp)
	}
	var dto UserDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	profile, err := dto.Validate()
	if err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	return profile, nil
}

// Login вызывает POST /auth/token/login/ и возвращает auth_token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "Login"
	payload := LoginRequest{Username: username, Password: password}
	resp, err := c.doJSON(ctx, http.MethodPost, "/auth/token/login/", "", payload)
	if err != nil {
		return "", wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(op, resp)
	}
	var body LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", wrapError(op, state.ErrorKindUnknown, err)
	}
	if strings.TrimSpace(body.AuthToken) == "" {
		return "", &Error{Op: op, Kind: state.ErrorKindAuthFailed, Status: resp.StatusCode, Err: errors.New("no auth token received")}
	}
	return body.AuthToken, nil
}

// Logout вызывает POST /auth/token/logout/. Токен аннулируется сервером.
func (c *Client) Logout(ctx context.Context, authToken string) error {
	const op = "Logout"
	resp, err := c.do(ctx, http.MethodPost, "/auth/token/logout/", authToken, nil)
	if err != nil {
		return wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError(op, resp)
	}
	return nil
}

// CurrentUser вызывает GET /auth/users/me/.
func (c *Client) CurrentUser(ctx context.Context, authToken string) (state.UserProfile, error) {
	const op = "CurrentUser"
	resp, err := c.do(ctx, http.MethodGet, "/auth/users/me/", authToken, nil)
	if err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return state.UserProfile{}, c.statusError(op, resp)
	}
	var dto UserDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	profile, err := dto.Validate()
	if err != nil {
		return state.UserProfile{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	return profile, nil
}

// ListTodos вызывает GET /todos/ и возвращает записи в порядке сервера.
func (c *Client) ListTodos(ctx context.Context, authToken string) ([]state.Todo, error) {
	const op = "ListTodos"
	resp, err := c.do(ctx, http.MethodGet, "/todos/", authToken, nil)
	if err != nil {
		return nil, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(op, resp)
	}
	var payload []TodoDTO
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, wrapError(op, state.ErrorKindUnknown, err)
	}
	todos := make([]state.Todo, 0, len(payload))
	for _, dto := range payload {
		todo, err := dto.Validate()
		if err != nil {
			return nil, wrapError(op, state.ErrorKindUnknown, err)
		}
		todos = append(todos, todo)
	}
	return todos, nil
}

// CreateTodo вызывает POST /todos/ и возвращает запись с серверным ID.
func (c *Client) CreateTodo(ctx context.Context, authToken string, fields state.TodoFields) (state.Todo, error) {
	const op = "CreateTodo"
	payload := newTodoWriteRequest(fields)
	resp, err := c.doJSON(ctx, http.MethodPost, "/todos/", authToken, payload)
	if err != nil {
		return state.Todo{}, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return state.Todo{}, c.statusError(op, resp)
	}
	return decodeTodo(op, resp.Body)
}

// UpdateTodo вызывает PUT /todos/{id}/ и возвращает обновлённую запись.
func (c *Client) UpdateTodo(ctx context.Context, authToken string, id int, fields state.TodoFields) (state.Todo, error) {
	const op = "UpdateTodo"
	payload := newTodoWriteRequest(fields)
	resp, err := c.doJSON(ctx, http.MethodPut, todoPath(id), authToken, payload)
	if err != nil {
		return state.Todo{}, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return state.Todo{}, c.statusError(op, resp)
	}
	return decodeTodo(op, resp.Body)
}

// ToggleTodo вызывает PATCH /todos/{id}/ с одним полем completed.
func (c *Client) ToggleTodo(ctx context.Context, authToken string, id int, completed bool) (state.Todo, error) {
	const op = "ToggleTodo"
	payload := TogglePatch{Completed: completed}
	resp, err := c.doJSON(ctx, http.MethodPatch, todoPath(id), authToken, payload)
	if err != nil {
		return state.Todo{}, wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return state.Todo{}, c.statusError(op, resp)
	}
	return decodeTodo(op, resp.Body)
}

// DeleteTodo вызывает DELETE /todos/{id}/. Несуществующий ID — ошибка
// сервера, а не тихий успех.
func (c *Client) DeleteTodo(ctx context.Context, authToken string, id int) error {
	const op = "DeleteTodo"
	resp, err := c.do(ctx, http.MethodDelete, todoPath(id), authToken, nil)
	if err != nil {
		return wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError(op, resp)
	}
	return nil
}

func todoPath(id int) string {
	return "/todos/" + strconv.Itoa(id) + "/"
}

func decodeTodo(op string, body io.Reader) (state.Todo, error) {
	var dto TodoDTO
	if err := json.NewDecoder(body).Decode(&dto); err != nil {
		return state.Todo{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	todo, err := dto.Validate()
	if err != nil {
		return state.Todo{}, wrapError(op, state.ErrorKindUnknown, err)
	}
	return todo, nil
}

// statusError читает тело неуспешного ответа и строит типизированную ошибку.
// На 401 дополнительно срабатывает колбэк OnUnauthorized.
func (c *Client) statusError(op string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	body := parseErrorBody(raw)
	kind := state.ErrorKindServerFailed
	if resp.StatusCode == http.StatusUnauthorized {
		kind = state.ErrorKindUnauthorized
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	if c.logger != nil {
		c.logger.Debugf("%s: server returned %d", op, resp.StatusCode)
	}
	return &Error{
		Op:     op,
		Kind:   kind,
		Status: resp.StatusCode,
		Body:   body,
		Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

func (c *Client) do(ctx context.Context, method, path, authToken string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Token "+authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, authToken string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, err
		}
		body = buf
	}
	return c.do(ctx, method, path, authToken, body)
}

func wrapError(op string, kind state.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
