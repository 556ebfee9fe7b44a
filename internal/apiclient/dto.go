package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tododesk/client/internal/state"
)

// TodoDTO соответствует записи в ответах /todos/.
type TodoDTO struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueTime     *string `json:"due_time"`
	Completed   bool    `json:"completed"`
}

// UserDTO соответствует ответам /auth/users/ и /auth/users/me/.
type UserDTO struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupRequest описывает тело запроса POST /auth/users/.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest описывает тело запроса POST /auth/token/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse содержит auth_token.
type LoginResponse struct {
	AuthToken string `json:"auth_token"`
}

// TodoWriteRequest описывает тело POST /todos/ и PUT /todos/{id}/.
type TodoWriteRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueTime     *string `json:"due_time"`
}

// TogglePatch описывает тело PATCH /todos/{id}/ — только флаг completed.
type TogglePatch struct {
	Completed bool `json:"completed"`
}

func newTodoWriteRequest(fields state.TodoFields) TodoWriteRequest {
	return TodoWriteRequest{
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		DueTime:     formatDueTime(fields.DueTime),
	}
}

func formatDueTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.UTC().Format(time.RFC3339)
	return &value
}

// Validate преобразует DTO в бизнес-модель Todo, выполняя проверки.
func (dto TodoDTO) Validate() (state.Todo, error) {
	if dto.ID <= 0 {
		return state.Todo{}, fmt.Errorf("todo id %d is invalid", dto.ID)
	}
	if strings.TrimSpace(dto.Title) == "" {
		return state.Todo{}, fmt.Errorf("todo %d: title is empty", dto.ID)
	}
	due, err := parseDueTime(dto.DueTime)
	if err != nil {
		return state.Todo{}, fmt.Errorf("todo %d: %w", dto.ID, err)
	}
	return state.Todo{
		ID:          dto.ID,
		Title:       dto.Title,
		Description: dto.Description,
		DueTime:     due,
		Completed:   dto.Completed,
	}, nil
}

// Validate преобразует DTO в UserProfile.
func (dto UserDTO) Validate() (state.UserProfile, error) {
	if strings.TrimSpace(dto.Username) == "" {
		return state.UserProfile{}, fmt.Errorf("user %d: username is empty", dto.ID)
	}
	return state.UserProfile{
		ID:       dto.ID,
		Username: dto.Username,
		Email:    dto.Email,
	}, nil
}

// parseDueTime принимает ISO-8601 с зоной и без неё. Пустая строка и null
// равнозначны отсутствию срока.
func parseDueTime(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	text := strings.TrimSpace(*value)
	if text == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, text); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", text)
	if err != nil {
		return nil, fmt.Errorf("parse due_time %q: %w", text, err)
	}
	return &parsed, nil
}

// ErrorBody содержит известные поля тела ошибки сервера. Поля, которые
// сервер не прислал, остаются пустыми.
type ErrorBody struct {
	NonFieldErrors []string `json:"non_field_errors"`
	Detail         string   `json:"detail"`
	Username       []string `json:"username"`
	Password       []string `json:"password"`
}

// FirstNonField возвращает первую общую ошибку, если она есть.
func (b ErrorBody) FirstNonField() string {
	if len(b.NonFieldErrors) > 0 {
		return strings.TrimSpace(b.NonFieldErrors[0])
	}
	return ""
}

// FirstUsername возвращает первую ошибку поля username.
func (b ErrorBody) FirstUsername() string {
	if len(b.Username) > 0 {
		return strings.TrimSpace(b.Username[0])
	}
	return ""
}

// FirstPassword возвращает первую ошибку поля password.
func (b ErrorBody) FirstPassword() string {
	if len(b.Password) > 0 {
		return strings.TrimSpace(b.Password[0])
	}
	return ""
}

func parseErrorBody(raw []byte) ErrorBody {
	var body ErrorBody
	if len(raw) == 0 {
		return body
	}
	// тело ошибки не обязано быть JSON, мусор просто игнорируем
	_ = json.Unmarshal(raw, &body)
	return body
}
