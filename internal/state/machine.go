package state

import (
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tododesk/client/internal/logging"
)

// State описывает состояние конечного автомата приложения.
type State string

const (
	StateAppStarting      State = "AppStarting"
	StateRestoringSession State = "RestoringSession"
	StateWaitingLogin     State = "WaitingLogin"
	StateSignupInProgress State = "SignupInProgress"
	StateAuthInProgress   State = "AuthInProgress"
	StateLoadingTodos     State = "LoadingTodos"
	StateReady            State = "Ready"
	StateError            State = "Error"
	StateExiting          State = "Exiting"
)

// EventType представляет собой тип события из очереди state machine.
type EventType string

const (
	EventUILaunch             EventType = "UI_LAUNCH"
	EventUICredentialsChanged EventType = "UI_CREDENTIALS_CHANGED"
	EventUIToggleSignupMode   EventType = "UI_TOGGLE_SIGNUP_MODE"
	EventUIClickLogin         EventType = "UI_CLICK_LOGIN"
	EventUIClickSignup        EventType = "UI_CLICK_SIGNUP"
	EventUIClickLogout        EventType = "UI_CLICK_LOGOUT"
	EventUIClickRefresh       EventType = "UI_CLICK_REFRESH"
	EventUISetFilter          EventType = "UI_SET_FILTER"
	EventUIClickAddTodo       EventType = "UI_CLICK_ADD_TODO"
	EventUISaveTodo           EventType = "UI_SAVE_TODO"
	EventUIToggleTodo         EventType = "UI_TOGGLE_TODO"
	EventUIDeleteTodo         EventType = "UI_DELETE_TODO"
	EventUIClearError         EventType = "UI_CLEAR_ERROR"
	EventUICloseWindow        EventType = "UI_CLOSE_WINDOW"
	EventUIShowWindow         EventType = "UI_SHOW_WINDOW"
	EventUIExit               EventType = "UI_EXIT"

	EventSysRestoreSuccess EventType = "SYS_RESTORE_SUCCESS"
	EventSysRestoreEmpty   EventType = "SYS_RESTORE_EMPTY"
	EventSysRestoreFailure EventType = "SYS_RESTORE_FAILURE"
	EventSysAuthSuccess    EventType = "SYS_AUTH_SUCCESS"
	EventSysAuthFailure    EventType = "SYS_AUTH_FAILURE"
	EventSysSignupSuccess  EventType = "SYS_SIGNUP_SUCCESS"
	EventSysSignupFailure  EventType = "SYS_SIGNUP_FAILURE"
	EventSysLogoutDone     EventType = "SYS_LOGOUT_DONE"
	EventSysTodosLoaded    EventType = "SYS_TODOS_LOADED"
	EventSysTodosFailure   EventType = "SYS_TODOS_FAILURE"
	EventSysTodoCreated    EventType = "SYS_TODO_CREATED"
	EventSysTodoUpdated    EventType = "SYS_TODO_UPDATED"
	EventSysTodoDeleted    EventType = "SYS_TODO_DELETED"
	EventSysTodoFailure    EventType = "SYS_TODO_FAILURE"
	EventSysUnauthorized   EventType = "SYS_UNAUTHORIZED"
)

// Event инкапсулирует событие очереди и произвольную полезную нагрузку.
type Event struct {
	Type    EventType
	Payload any
	TS      time.Time
}

// CredentialsPayload передаёт логин/пароль/почту из UI.
type CredentialsPayload struct {
	Username string
	Password string
	Email    string
}

// SessionPayload содержит токен и профиль после логина или восстановления.
type SessionPayload struct {
	Token   string
	Profile UserProfile
}

// TodosPayload содержит список записей, полученный от сервера.
type TodosPayload struct {
	Todos []Todo
}

// TodoPayload содержит одну подтверждённую сервером запись.
type TodoPayload struct {
	Todo Todo
}

// TodoIDPayload адресует запись по идентификатору.
type TodoIDPayload struct {
	ID int
}

// TodoFieldsPayload переносит поля новой записи из формы добавления.
type TodoFieldsPayload struct {
	Fields TodoFields
}

// TodoEditPayload переносит поля редактируемой записи.
type TodoEditPayload struct {
	ID     int
	Fields TodoFields
}

// FilterPayload переключает фильтр списка.
type FilterPayload struct {
	Filter TodoFilter
}

// ScenarioResultPayload описывает успех/ошибку длительных процедур.
type ScenarioResultPayload struct {
	Kind             ErrorKind
	Message          string
	TechnicalMessage string
}

// Callbacks содержит функции, вызываемые state machine для побочных эффектов.
type Callbacks struct {
	StartRestore    func(ctx *AppContext)
	StartLogin      func(ctx *AppContext, username, password string)
	StartSignup     func(ctx *AppContext, username, email, password string)
	StartLogout     func(ctx *AppContext)
	StartLoadTodos  func(ctx *AppContext)
	StartCreateTodo func(ctx *AppContext, fields TodoFields)
	StartUpdateTodo func(ctx *AppContext, id int, fields TodoFields)
	StartToggleTodo func(ctx *AppContext, id int, completed bool)
	StartDeleteTodo func(ctx *AppContext, id int)

	ClearSession func(ctx *AppContext)

	ShowLoginWindow     func(ctx *AppContext)
	ShowMainWindow      func(ctx *AppContext)
	HideMainWindow      func(ctx *AppContext)
	UpdateUI            func(ctx *AppContext)
	ShowModalError      func(info *ErrorInfo)
	ShowTransientNotice func(message string)
	CleanupAndExit      func(ctx *AppContext)
}

// Machine инкапсулирует event-loop и текущее состояние приложения.
type Machine struct {
	ctx       *AppContext
	callbacks Callbacks
	logger    *logging.Logger
	events    chan Event
	priority  chan Event
	done      chan struct{}
	stopped   atomic.Bool
	loopOnce  sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// ErrMachineStopped возвращается при попытке отправить событие после остановки петли.
var ErrMachineStopped = errors.New("state machine stopped")

// NewMachine создаёт новый state machine в состоянии AppStarting.
func NewMachine(ctx *AppContext, logger *logging.Logger, callbacks Callbacks) *Machine {
	return &Machine{
		ctx:       ctx,
		callbacks: callbacks,
		logger:    logger,
		events:    make(chan Event, 64),
		priority:  make(chan Event, 8),
		done:      make(chan struct{}),
	}
}

// Start запускает event-loop в отдельной горутине.
func (m *Machine) Start() {
	m.loopOnce.Do(func() {
		go m.loopSafely()
	})
}

// Stop завершает event-loop.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.done)
		close(m.priority)
		close(m.events)
	})
}

// WaitAsync ждёт завершения фоновых задач, запущенных state machine.
func (m *Machine) WaitAsync(timeout time.Duration) bool {
	if m == nil {
		return true
	}
	if timeout <= 0 {
		m.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Dispatch отправляет событие в очередь state machine.
func (m *Machine) Dispatch(evt Event) error {
	if m.stopped.Load() {
		return ErrMachineStopped
	}
	if m.logger != nil {
		m.logger.Debugf("event queued: %s", evt.Type)
	}
	ch := m.events
	if evt.Type == EventUIExit {
		ch = m.priority
	}
	select {
	case <-m.done:
		return ErrMachineStopped
	default:
	}
	if m.trySend(ch, evt) {
		return nil
	}
	// если канал заполнен, блокируемся, пока возможно отправить
	if m.stopped.Load() {
		return ErrMachineStopped
	}
	if m.safeSend(ch, evt) {
		return nil
	}
	return ErrMachineStopped
}

func (m *Machine) loop() {
	for {
		if m.stopped.Load() {
			return
		}

		select {
		case evt, ok := <-m.priority:
			if !ok {
				return
			}
			m.handleEvent(evt)
			continue
		default:
		}

		select {
		case evt, ok := <-m.priority:
			if !ok {
				return
			}
			m.handleEvent(evt)
		case evt, ok := <-m.events:
			if !ok {
				return
			}
			m.handleEvent(evt)
		}
	}
}

func (m *Machine) loopSafely() {
	defer m.logPanic("state loop")
	m.loop()
}

func (m *Machine) handleEvent(evt Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now()
	}
	if m.logger != nil {
		m.logger.Debugf("event handle: %s state=%s", evt.Type, m.ctx.State)
	}
	if evt.Type == EventUIExit {
		m.transition(StateExiting)
		m.invokeCleanup()
		return
	}
	if evt.Type == EventSysUnauthorized {
		m.handleUnauthorized()
		return
	}

	switch m.ctx.State {
	case StateAppStarting:
		m.handleAppStarting(evt)
	case StateRestoringSession:
		m.handleRestoring(evt)
	case StateWaitingLogin:
		m.handleWaitingLogin(evt)
	case StateSignupInProgress:
		m.handleSignupInProgress(evt)
	case StateAuthInProgress:
		m.handleAuthInProgress(evt)
	case StateLoadingTodos:
		m.handleLoadingTodos(evt)
	case StateReady:
		m.handleReady(evt)
	case StateError:
		m.handleErrorState(evt)
	case StateExiting:
		// игнор
	default:
		m.logger.Debugf("state machine: unknown state %s", m.ctx.State)
	}
}

func (m *Machine) handleAppStarting(evt Event) {
	switch evt.Type {
	case EventUILaunch:
		m.ctx.UI.StatusText = "Восстанавливаем сессию..."
		m.transition(StateRestoringSession)
		m.invokeRestore()
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	default:
		m.logger.Debugf("appStarting: ignored %s", evt.Type)
	}
}

func (m *Machine) handleRestoring(evt Event) {
	switch evt.Type {
	case EventSysRestoreSuccess:
		payload, _ := evt.Payload.(SessionPayload)
		m.ctx.Session.Token = payload.Token
		profile := payload.Profile
		m.ctx.Session.Profile = &profile
		m.ctx.LastError = nil
		m.ctx.UI.StatusText = "Загружаем список задач"
		m.transition(StateLoadingTodos)
		m.invokeLoadTodos()
	case EventSysRestoreEmpty:
		m.ctx.UI.StatusText = "Введите логин и пароль"
		m.transition(StateWaitingLogin)
		m.invokeShowLogin()
	case EventSysRestoreFailure:
		// токен из хранилища не принят сервером: данные уже стёрты операцией
		m.ctx.Session.Clear()
		m.ctx.UI.StatusText = "Сессия истекла, войдите заново"
		m.transition(StateWaitingLogin)
		m.invokeShowLogin()
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	default:
		m.logger.Debugf("restoring: ignored %s", evt.Type)
	}
}

func (m *Machine) handleWaitingLogin(evt Event) {
	switch evt.Type {
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	case EventUIToggleSignupMode:
		m.ctx.UI.IsSignupMode = !m.ctx.UI.IsSignupMode
		m.refreshUI()
	case EventUIClickLogin:
		m.applyCredentials(evt)
		if strings.TrimSpace(m.ctx.UI.UsernameInput) == "" || strings.TrimSpace(m.ctx.UI.PasswordInput) == "" {
			m.showTransient("Укажите логин и пароль")
			return
		}
		m.ctx.UI.StatusText = "Выполняется вход"
		m.transition(StateAuthInProgress)
		m.invokeLogin()
	case EventUIClickSignup:
		m.applyCredentials(evt)
		if strings.TrimSpace(m.ctx.UI.UsernameInput) == "" || strings.TrimSpace(m.ctx.UI.PasswordInput) == "" {
			m.showTransient("Укажите логин и пароль")
			return
		}
		m.ctx.UI.StatusText = "Выполняется регистрация"
		m.transition(StateSignupInProgress)
		m.invokeSignup()
	case EventUIClearError:
		m.ctx.LastError = nil
		m.refreshUI()
	case EventUICloseWindow:
		m.invokeHideMain()
	case EventUIShowWindow:
		m.invokeShowLogin()
	default:
		m.logger.Debugf("waitingLogin: ignored %s", evt.Type)
	}
}

func (m *Machine) handleSignupInProgress(evt Event) {
	switch evt.Type {
	case EventSysSignupSuccess:
		// регистрация не логинит автоматически и не трогает сессию
		m.ctx.LastError = nil
		m.ctx.UI.IsSignupMode = false
		m.ctx.UI.PasswordInput = ""
		m.ctx.UI.StatusText = "Регистрация выполнена. Войдите с новыми данными"
		m.transition(StateWaitingLogin)
		m.invokeShowLogin()
		m.showTransient("Регистрация выполнена")
	case EventSysSignupFailure:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		kind := payload.Kind
		if kind == "" {
			kind = ErrorKindServerFailed
		}
		message := payload.Message
		if message == "" {
			message = "Не удалось зарегистрироваться. Попробуйте ещё раз"
		}
		technical := payload.TechnicalMessage
		if technical == "" {
			technical = "signup failed"
		}
		m.enterError(kind, message, technical)
	default:
		m.logger.Debugf("signup: ignored %s", evt.Type)
	}
}

func (m *Machine) handleAuthInProgress(evt Event) {
	switch evt.Type {
	case EventSysAuthSuccess:
		payload, _ := evt.Payload.(SessionPayload)
		m.ctx.Session.Token = payload.Token
		profile := payload.Profile
		m.ctx.Session.Profile = &profile
		m.ctx.LastError = nil
		m.ctx.UI.PasswordInput = ""
		m.ctx.UI.StatusText = "Загружаем список задач"
		m.transition(StateLoadingTodos)
		m.invokeLoadTodos()
	case EventSysAuthFailure:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		kind := payload.Kind
		if kind == "" {
			kind = ErrorKindAuthFailed
		}
		message := payload.Message
		if message == "" {
			message = "Не удалось войти. Проверьте логин и пароль"
		}
		technical := payload.TechnicalMessage
		if technical == "" {
			technical = "auth failed"
		}
		m.enterError(kind, message, technical)
	default:
		m.logger.Debugf("auth: ignored %s", evt.Type)
	}
}

func (m *Machine) handleLoadingTodos(evt Event) {
	switch evt.Type {
	case EventSysTodosLoaded:
		payload, _ := evt.Payload.(TodosPayload)
		m.ctx.Todos = ReplaceAll(m.ctx.Todos, payload.Todos)
		m.ctx.UI.StatusText = ""
		m.transition(StateReady)
		m.invokeShowMain()
	case EventSysTodosFailure:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		kind := payload.Kind
		if kind == "" {
			kind = ErrorKindServerFailed
		}
		message := payload.Message
		if message == "" {
			message = "Не удалось загрузить список задач"
		}
		technical := payload.TechnicalMessage
		if technical == "" {
			technical = "todos load failed"
		}
		m.enterError(kind, message, technical)
	default:
		m.logger.Debugf("loadingTodos: ignored %s", evt.Type)
	}
}

func (m *Machine) handleReady(evt Event) {
	switch evt.Type {
	case EventUISetFilter:
		if payload, ok := evt.Payload.(FilterPayload); ok {
			m.ctx.UI.Filter = payload.Filter
			m.refreshUI()
		}
	case EventUIClickRefresh:
		if m.ctx.Pending.Has(opKeyList) {
			return
		}
		m.invokeLoadTodos()
	case EventSysTodosLoaded:
		payload, _ := evt.Payload.(TodosPayload)
		m.ctx.Todos = ReplaceAll(m.ctx.Todos, payload.Todos)
		m.refreshUI()
	case EventUIClickAddTodo:
		payload, ok := evt.Payload.(TodoFieldsPayload)
		if !ok {
			return
		}
		// пустое название отклоняется до какого-либо сетевого вызова
		if strings.TrimSpace(payload.Fields.Title) == "" {
			m.showTransient("Укажите название задачи")
			return
		}
		if m.ctx.Pending.Has(opKeyCreate) {
			return
		}
		m.invokeCreateTodo(payload.Fields)
	case EventUISaveTodo:
		payload, ok := evt.Payload.(TodoEditPayload)
		if !ok {
			return
		}
		if strings.TrimSpace(payload.Fields.Title) == "" {
			m.showTransient("Укажите название задачи")
			return
		}
		if m.ctx.Pending.Has(opKeyUpdate(payload.ID)) {
			return
		}
		m.invokeUpdateTodo(payload.ID, payload.Fields)
	case EventUIToggleTodo:
		payload, ok := evt.Payload.(TodoIDPayload)
		if !ok {
			return
		}
		todo := m.ctx.FindTodo(payload.ID)
		if todo == nil {
			m.logger.Debugf("toggle requested for unknown todo %d", payload.ID)
			return
		}
		if m.ctx.Pending.Has(opKeyToggle(todo.ID)) {
			return
		}
		m.invokeToggleTodo(todo.ID, !todo.Completed)
	case EventUIDeleteTodo:
		payload, ok := evt.Payload.(TodoIDPayload)
		if !ok {
			return
		}
		if m.ctx.Pending.Has(opKeyDelete(payload.ID)) {
			return
		}
		m.invokeDeleteTodo(payload.ID)
	case EventSysTodoCreated:
		payload, _ := evt.Payload.(TodoPayload)
		m.ctx.Todos = Prepend(m.ctx.Todos, payload.Todo)
		m.refreshUI()
	case EventSysTodoUpdated:
		payload, _ := evt.Payload.(TodoPayload)
		m.ctx.Todos = ReplaceByID(m.ctx.Todos, payload.Todo)
		m.refreshUI()
	case EventSysTodoDeleted:
		payload, _ := evt.Payload.(TodoIDPayload)
		m.ctx.Todos = RemoveByID(m.ctx.Todos, payload.ID)
		m.refreshUI()
	case EventSysTodoFailure, EventSysTodosFailure:
		// кеш не тронут, остаёмся в Ready и показываем сообщение
		payload, _ := evt.Payload.(ScenarioResultPayload)
		message := payload.Message
		if message == "" {
			message = "Операция не выполнена"
		}
		m.ctx.LastError = &ErrorInfo{
			Kind:             payload.Kind,
			UserMessage:      message,
			TechnicalMessage: payload.TechnicalMessage,
			OccurredAt:       time.Now(),
		}
		m.showTransient(message)
		m.refreshUI()
	case EventUIClickLogout:
		m.ctx.UI.StatusText = "Выходим..."
		m.refreshUI()
		m.invokeLogout()
	case EventSysLogoutDone:
		m.resetToLogin("Введите логин и пароль")
	case EventUIClearError:
		m.ctx.LastError = nil
		m.refreshUI()
	case EventUICloseWindow:
		m.invokeHideMain()
	case EventUIShowWindow:
		m.invokeShowMain()
	default:
		m.logger.Debugf("ready: ignored %s", evt.Type)
	}
}

func (m *Machine) handleErrorState(evt Event) {
	switch evt.Type {
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	case EventUIToggleSignupMode:
		m.ctx.UI.IsSignupMode = !m.ctx.UI.IsSignupMode
		m.refreshUI()
	case EventUIClickLogin:
		m.applyCredentials(evt)
		if strings.TrimSpace(m.ctx.UI.UsernameInput) == "" || strings.TrimSpace(m.ctx.UI.PasswordInput) == "" {
			m.showTransient("Укажите логин и пароль")
			return
		}
		m.ctx.UI.StatusText = "Выполняется вход"
		m.transition(StateAuthInProgress)
		m.invokeLogin()
	case EventUIClickSignup:
		m.applyCredentials(evt)
		if strings.TrimSpace(m.ctx.UI.UsernameInput) == "" || strings.TrimSpace(m.ctx.UI.PasswordInput) == "" {
			m.showTransient("Укажите логин и пароль")
			return
		}
		m.ctx.UI.StatusText = "Выполняется регистрация"
		m.transition(StateSignupInProgress)
		m.invokeSignup()
	case EventUIClearError:
		m.ctx.LastError = nil
		m.ctx.UI.StatusText = "Введите логин и пароль"
		m.transition(StateWaitingLogin)
		m.refreshUI()
	case EventUIShowWindow:
		m.invokeShowLogin()
	default:
		m.logger.Debugf("error: ignored %s", evt.Type)
	}
}

// handleUnauthorized выполняет разовый сброс сессии после ответа 401.
// На поверхности логина/регистрации сброс подавляется, чтобы не зациклить
// переход к окну входа.
func (m *Machine) handleUnauthorized() {
	switch m.ctx.State {
	case StateWaitingLogin, StateSignupInProgress, StateAuthInProgress, StateError, StateExiting:
		m.logger.Debugf("unauthorized ignored in state %s", m.ctx.State)
		return
	}
	if !m.ctx.Session.Authenticated() {
		// данные уже стёрты предыдущим 401
		return
	}
	m.invokeClearSession()
	m.resetToLogin("Сессия завершена. Войдите заново")
	m.showTransient("Сессия завершена. Войдите заново")
}

func (m *Machine) resetToLogin(status string) {
	m.ctx.Session.Clear()
	m.ctx.Todos = nil
	m.ctx.UI.PasswordInput = ""
	m.ctx.UI.StatusText = status
	m.transition(StateWaitingLogin)
	m.invokeShowLogin()
}

func (m *Machine) applyCredentials(evt Event) {
	if payload, ok := evt.Payload.(CredentialsPayload); ok {
		m.ctx.UI.UsernameInput = payload.Username
		m.ctx.UI.PasswordInput = payload.Password
		m.ctx.UI.EmailInput = payload.Email
	}
}

func (m *Machine) transition(next State) {
	if m.ctx.State == next {
		return
	}
	prev := m.ctx.State
	m.ctx.State = next
	m.logger.Debugf("state transition %s → %s", prev, next)
	m.updateUIForState(next)
}

func (m *Machine) updateUIForState(state State) {
	m.ctx.UI.CanSubmit = false
	m.ctx.UI.IsBusy = false
	switch state {
	case StateRestoringSession, StateLoadingTodos:
		m.ctx.UI.IsBusy = true
	case StateWaitingLogin:
		m.ctx.UI.IsLoginVisible = true
		m.ctx.UI.IsMainVisible = false
		m.ctx.UI.CanSubmit = true
	case StateAuthInProgress, StateSignupInProgress:
		m.ctx.UI.IsBusy = true
	case StateReady:
		m.ctx.UI.IsLoginVisible = false
		m.ctx.UI.IsMainVisible = true
	case StateError:
		if m.ctx.LastError != nil {
			m.ctx.UI.CanSubmit = true
		}
	}
	m.refreshUI()
}

func (m *Machine) enterError(kind ErrorKind, userMessage, technical string) {
	info := &ErrorInfo{
		Kind:             kind,
		UserMessage:      userMessage,
		TechnicalMessage: technical,
		OccurredAt:       time.Now(),
	}
	m.ctx.LastError = info
	m.ctx.UI.StatusText = userMessage
	m.transition(StateError)
	if m.callbacks.ShowModalError != nil {
		m.callbacks.ShowModalError(info)
	}
}

const (
	opKeyList   = "list"
	opKeyCreate = "create"
)

func opKeyUpdate(id int) string { return "update/" + strconv.Itoa(id) }
func opKeyToggle(id int) string { return "toggle/" + strconv.Itoa(id) }
func opKeyDelete(id int) string { return "delete/" + strconv.Itoa(id) }

func (m *Machine) invokeRestore() {
	if m.callbacks.StartRestore != nil {
		m.runAsync(func() { m.callbacks.StartRestore(m.ctx) })
	}
}

func (m *Machine) invokeLogin() {
	if m.callbacks.StartLogin != nil {
		username := m.ctx.UI.UsernameInput
		password := m.ctx.UI.PasswordInput
		m.runAsync(func() { m.callbacks.StartLogin(m.ctx, username, password) })
	}
}

func (m *Machine) invokeSignup() {
	if m.callbacks.StartSignup != nil {
		username := m.ctx.UI.UsernameInput
		email := m.ctx.UI.EmailInput
		password := m.ctx.UI.PasswordInput
		m.runAsync(func() { m.callbacks.StartSignup(m.ctx, username, email, password) })
	}
}

func (m *Machine) invokeLogout() {
	if m.callbacks.StartLogout != nil {
		m.runAsync(func() { m.callbacks.StartLogout(m.ctx) })
	}
}

func (m *Machine) invokeLoadTodos() {
	if m.callbacks.StartLoadTodos != nil {
		m.ctx.Pending.Add(opKeyList)
		m.runAsync(func() {
			defer m.ctx.Pending.Remove(opKeyList)
			m.callbacks.StartLoadTodos(m.ctx)
		})
	}
}

func (m *Machine) invokeCreateTodo(fields TodoFields) {
	if m.callbacks.StartCreateTodo != nil {
		m.ctx.Pending.Add(opKeyCreate)
		m.runAsync(func() {
			defer m.ctx.Pending.Remove(opKeyCreate)
			m.callbacks.StartCreateTodo(m.ctx, fields)
		})
	}
}

func (m *Machine) invokeUpdateTodo(id int, fields TodoFields) {
	if m.callbacks.StartUpdateTodo != nil {
		key := opKeyUpdate(id)
		m.ctx.Pending.Add(key)
		m.runAsync(func() {
			defer m.ctx.Pending.Remove(key)
			m.callbacks.StartUpdateTodo(m.ctx, id, fields)
		})
	}
}

func (m *Machine) invokeToggleTodo(id int, completed bool) {
	if m.callbacks.StartToggleTodo != nil {
		key := opKeyToggle(id)
		m.ctx.Pending.Add(key)
		m.runAsync(func() {
			defer m.ctx.Pending.Remove(key)
			m.callbacks.StartToggleTodo(m.ctx, id, completed)
		})
	}
}

func (m *Machine) invokeDeleteTodo(id int) {
	if m.callbacks.StartDeleteTodo != nil {
		key := opKeyDelete(id)
		m.ctx.Pending.Add(key)
		m.runAsync(func() {
			defer m.ctx.Pending.Remove(key)
			m.callbacks.StartDeleteTodo(m.ctx, id)
		})
	}
}

func (m *Machine) invokeClearSession() {
	if m.callbacks.ClearSession != nil {
		m.callbacks.ClearSession(m.ctx)
	}
}

func (m *Machine) runAsync(fn func()) {
	if fn == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.logPanic("async task")
		fn()
	}()
}

func (m *Machine) logPanic(scope string) {
	if r := recover(); r != nil {
		if m.logger != nil {
			m.logger.Errorf("panic in %s: %v\n%s", scope, r, debug.Stack())
		}
		panic(r)
	}
}

func (m *Machine) invokeCleanup() {
	if m.callbacks.CleanupAndExit != nil {
		m.callbacks.CleanupAndExit(m.ctx)
		return
	}
	if !m.stopped.Load() {
		m.Stop()
	}
}

func (m *Machine) invokeShowLogin() {
	if m.callbacks.ShowLoginWindow != nil {
		m.callbacks.ShowLoginWindow(m.ctx)
	}
}

func (m *Machine) invokeShowMain() {
	if m.callbacks.ShowMainWindow != nil {
		m.callbacks.ShowMainWindow(m.ctx)
	}
}

func (m *Machine) invokeHideMain() {
	if m.callbacks.HideMainWindow != nil {
		m.callbacks.HideMainWindow(m.ctx)
	}
}

func (m *Machine) showTransient(message string) {
	if m.callbacks.ShowTransientNotice != nil {
		m.callbacks.ShowTransientNotice(message)
	} else {
		m.logger.Infof("notice: %s", message)
	}
}

func (m *Machine) refreshUI() {
	if m.callbacks.UpdateUI != nil {
		m.callbacks.UpdateUI(m.ctx)
	}
}

func (m *Machine) safeSend(ch chan Event, evt Event) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ch <- evt
	return true
}

// trySend выполняет неблокирующую отправку; закрытый канал — это отказ,
// а не паника, поэтому конкурентный Stop не валит Dispatch.
func (m *Machine) trySend(ch chan Event, evt Event) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- evt:
		return true
	default:
		return false
	}
}
