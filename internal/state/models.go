package state

import (
	"strings"
	"sync"
	"time"

	"tododesk/client/internal/config"
)

// ErrorKind описывает тип ошибки, отображаемой пользователю и используемой для логики состояния.
type ErrorKind string

const (
	ErrorKindNetworkUnavailable ErrorKind = "NetworkUnavailable"
	ErrorKindAuthFailed         ErrorKind = "AuthFailed"
	ErrorKindUnauthorized       ErrorKind = "Unauthorized"
	ErrorKindValidationFailed   ErrorKind = "ValidationFailed"
	ErrorKindServerFailed       ErrorKind = "ServerFailed"
	ErrorKindConfigFailed       ErrorKind = "ConfigFailed"
	ErrorKindUnknown            ErrorKind = "Unknown"
)

// UserProfile описывает профиль пользователя, полученный от сервера.
// Если сервер не вернул профиль после успешного логина, остаётся заглушка
// с одним только именем пользователя.
type UserProfile struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// StubProfile создаёт профиль-заглушку по имени пользователя.
func StubProfile(username string) UserProfile {
	return UserProfile{Username: strings.TrimSpace(username)}
}

// Todo описывает одну запись списка дел. Идентификатор назначается сервером,
// локальная копия — только кеш и целиком заменяется свежей загрузкой.
type Todo struct {
	ID          int
	Title       string
	Description string
	DueTime     *time.Time
	Completed   bool
}

// TodoFields переносит редактируемые поля записи из UI в операции.
type TodoFields struct {
	Title       string
	Description string
	DueTime     *time.Time
}

// Session содержит текущие учётные данные и профиль.
// Токен и профиль очищаются при выходе и при любом ответе 401.
type Session struct {
	Token   string
	Profile *UserProfile
}

// Authenticated сообщает, есть ли у сессии действующий токен.
func (s *Session) Authenticated() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// Clear сбрасывает учётные данные и профиль в памяти.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.Token = ""
	s.Profile = nil
}

// TodoFilter задаёт фильтр списка в главном окне.
type TodoFilter string

const (
	FilterAll       TodoFilter = "all"
	FilterActive    TodoFilter = "active"
	FilterCompleted TodoFilter = "completed"
)

// PendingSet отмечает операции, выполняющиеся в данный момент.
// Это подсказка для UI против повторной отправки, а не взаимное исключение:
// две разные операции над одной записью по-прежнему могут гоняться.
type PendingSet struct {
	mu  sync.RWMutex
	ops map[string]struct{}
}

// NewPendingSet создаёт пустой набор операций.
func NewPendingSet() PendingSet {
	return PendingSet{ops: make(map[string]struct{})}
}

// Add отмечает операцию как выполняющуюся.
func (p *PendingSet) Add(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops[key] = struct{}{}
}

// Remove снимает отметку операции.
func (p *PendingSet) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ops, key)
}

// Has сообщает, выполняется ли операция с данным ключом.
func (p *PendingSet) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ops[key]
	return ok
}

// ErrorInfo описывает ошибку для UI и логов.
type ErrorInfo struct {
	Kind             ErrorKind
	UserMessage      string
	TechnicalMessage string
	OccurredAt       time.Time
}

// UIState хранит минимально необходимую информацию для управления UI.
type UIState struct {
	IsLoginVisible bool
	IsMainVisible  bool
	IsSignupMode   bool
	IsBusy         bool
	StatusText     string
	UsernameInput  string
	PasswordInput  string
	EmailInput     string
	CanSubmit      bool
	Filter         TodoFilter
}

// AppContext содержит всё состояние приложения.
type AppContext struct {
	Config    *config.Config
	Session   Session
	Todos     []Todo
	Pending   PendingSet
	LastError *ErrorInfo
	UI        UIState
	State     State
}

// NewAppContext создаёт AppContext в начальном состоянии.
func NewAppContext(cfg *config.Config) *AppContext {
	return &AppContext{
		Config:  cfg,
		Pending: NewPendingSet(),
		State:   StateAppStarting,
		UI:      UIState{Filter: FilterAll},
	}
}

// FindTodo возвращает запись по идентификатору, если она есть в кеше.
func (ctx *AppContext) FindTodo(id int) *Todo {
	for i := range ctx.Todos {
		if ctx.Todos[i].ID == id {
			return &ctx.Todos[i]
		}
	}
	return nil
}
