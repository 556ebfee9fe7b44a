package ui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"tododesk/client/internal/logging"
	"tododesk/client/internal/state"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/text/encoding/charmap"
)

// Options описывает параметры инициализации UI Manager.
type Options struct {
	AppID    string
	AppName  string
	Logger   *logging.Logger
	Dispatch func(state.Event) error
}

// Manager управляет окнами Fyne и связывает их со state machine.
type Manager struct {
	app      fyne.App
	appName  string
	logger   *logging.Logger
	dispatch func(state.Event) error

	loginWin        fyne.Window
	mainWin         fyne.Window
	loginWinVisible bool
	mainWinVisible  bool

	usernameEntry *widget.Entry
	passwordEntry *widget.Entry
	emailEntry    *widget.Entry
	emailLabel    *widget.Label
	submitBtn     *widget.Button
	modeBtn       *widget.Button
	loginStatus   *widget.Label

	profileLabel *widget.Label
	mainStatus   *widget.Label
	spinner      *widget.ProgressBarInfinite
	filterSelect *widget.RadioGroup
	titleEntry   *widget.Entry
	descEntry    *widget.Entry
	dueEntry     *widget.Entry
	addBtn       *widget.Button
	todoList     *widget.List
	countsLabel  *widget.Label

	todos          []state.Todo
	visibleTodos   []state.Todo
	signupMode     bool
	suppressCred   bool
	suppressFilter bool
	suppressChecks bool

	updateCh     chan uiSnapshot
	stopCh       chan struct{}
	runOnce      sync.Once
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// uiSnapshot переносит срез состояния UI из state machine в goroutine UI.
type uiSnapshot struct {
	LoginVisible  bool
	MainVisible   bool
	SignupMode    bool
	IsBusy        bool
	CanSubmit     bool
	StatusText    string
	UsernameInput string
	PasswordInput string
	EmailInput    string
	Filter        state.TodoFilter
	Username      string
	Todos         []state.Todo
}

// NewManager создаёт новый UI Manager.
func NewManager(opts Options) *Manager {
	appID := strings.TrimSpace(opts.AppID)
	if appID == "" {
		appID = "tododesk.client"
	}
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = "TodoDesk"
	}
	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(newAppTheme())
	m := &Manager{
		app:      fyneApp,
		appName:  name,
		logger:   opts.Logger,
		dispatch: opts.Dispatch,
		updateCh: make(chan uiSnapshot, 16),
		stopCh:   make(chan struct{}),
	}
	m.buildLoginWindow()
	m.buildMainWindow()
	return m
}

// Start запускает фоновую goroutine обновлений UI.
func (m *Manager) Start() {
	m.runOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.processUpdates()
		}()
	})
}

// RunMainLoop блокирует текущую горутину до завершения цикла Fyne.
func (m *Manager) RunMainLoop() {
	if m.app == nil {
		return
	}
	m.app.Run()
}

// Quit завершает Fyne-приложение.
func (m *Manager) Quit() {
	if m.app == nil {
		return
	}
	m.callOnUI(func() { m.app.Quit() })
}

// Shutdown останавливает обновления и закрывает Fyne-приложение.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.callOnUI(func() {
			if m.mainWin != nil {
				m.mainWin.Close()
			}
			if m.loginWin != nil {
				m.loginWin.Close()
			}
			m.mainWinVisible = false
			m.loginWinVisible = false
			if m.app != nil {
				m.app.Quit()
			}
		})
	})
}

// WaitAsync ждёт завершения фоновых UI goroutine.
func (m *Manager) WaitAsync(timeout time.Duration) bool {
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

// ShowLoginWindow отображает окно входа.
func (m *Manager) ShowLoginWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.mainWin != nil {
			m.mainWin.Hide()
			m.mainWinVisible = false
		}
		if m.loginWin != nil {
			wasVisible := m.loginWinVisible
			if !wasVisible {
				m.loginWin.Show()
			}
			if !wasVisible && m.usernameEntry != nil {
				if canvas := m.loginWin.Canvas(); canvas != nil {
					canvas.Focus(m.usernameEntry)
				}
			}
			m.loginWinVisible = true
		}
	})
}

// ShowMainWindow отображает главное окно со списком задач.
func (m *Manager) ShowMainWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.loginWin != nil {
			m.loginWin.Hide()
			m.loginWinVisible = false
		}
		if m.mainWin != nil {
			m.mainWin.Show()
			m.mainWin.RequestFocus()
			m.mainWinVisible = true
		}
	})
}

// HideMainWindow скрывает главное окно.
func (m *Manager) HideMainWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.mainWin != nil {
			m.mainWin.Hide()
			m.mainWinVisible = false
		}
	})
}

// UpdateUI передаёт снимок состояния UI в безопасную для Fyne goroutine.
func (m *Manager) UpdateUI(ctx *state.AppContext) {
	if ctx == nil {
		return
	}
	snap := uiSnapshot{
		LoginVisible:  ctx.UI.IsLoginVisible,
		MainVisible:   ctx.UI.IsMainVisible,
		SignupMode:    ctx.UI.IsSignupMode,
		IsBusy:        ctx.UI.IsBusy,
		CanSubmit:     ctx.UI.CanSubmit,
		StatusText:    ctx.UI.StatusText,
		UsernameInput: ctx.UI.UsernameInput,
		PasswordInput: ctx.UI.PasswordInput,
		EmailInput:    ctx.UI.EmailInput,
		Filter:        ctx.UI.Filter,
		Todos:         append([]state.Todo(nil), ctx.Todos...),
	}
	if ctx.Session.Profile != nil {
		snap.Username = ctx.Session.Profile.Username
	}
	select {
	case <-m.stopCh:
		return
	case m.updateCh <- snap:
	default:
		select {
		case <-m.updateCh:
		default:
		}
		m.updateCh <- snap
	}
}

// ShowModalError отображает модальное окно ошибки.
func (m *Manager) ShowModalError(info *state.ErrorInfo) {
	if info == nil {
		return
	}
	m.callOnUI(func() {
		win := m.activeWindow()
		message := info.UserMessage
		if message == "" {
			message = "Произошла ошибка"
		}
		message = normalizeUserText(message)
		dialog.ShowError(errors.New(message), win)
		if (info.Kind == state.ErrorKindAuthFailed || info.Kind == state.ErrorKindNetworkUnavailable || info.Kind == state.ErrorKindServerFailed) && m.loginStatus != nil {
			m.loginStatus.SetText(message)
		}
	})
}

// ShowTransientNotice отображает краткое уведомление.
func (m *Manager) ShowTransientNotice(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	m.callOnUI(func() {
		dialog.ShowInformation(m.appName, normalizeUserText(message), m.activeWindow())
	})
}

func (m *Manager) processUpdates() {
	for {
		select {
		case <-m.stopCh:
			return
		case snap := <-m.updateCh:
			m.applySnapshot(snap)
		}
	}
}

func (m *Manager) applySnapshot(snap uiSnapshot) {
	m.callOnUI(func() {
		snap.StatusText = normalizeUserText(snap.StatusText)
		m.updateLoginControls(snap)
		m.updateCredentials(snap.UsernameInput, snap.PasswordInput, snap.EmailInput)
		m.updateMainControls(snap)
		m.updateTodos(snap)
	})
}

func (m *Manager) updateLoginControls(snap uiSnapshot) {
	if m.loginStatus != nil {
		m.loginStatus.SetText(snap.StatusText)
	}
	m.signupMode = snap.SignupMode
	if m.emailEntry != nil && m.emailLabel != nil {
		if snap.SignupMode {
			m.emailLabel.Show()
			m.emailEntry.Show()
		} else {
			m.emailLabel.Hide()
			m.emailEntry.Hide()
		}
	}
	if m.submitBtn != nil {
		if snap.SignupMode {
			m.submitBtn.SetText("Зарегистрироваться")
		} else {
			m.submitBtn.SetText("Войти")
		}
		if snap.CanSubmit && !snap.IsBusy {
			m.submitBtn.Enable()
		} else {
			m.submitBtn.Disable()
		}
	}
	if m.modeBtn != nil {
		if snap.SignupMode {
			m.modeBtn.SetText("У меня уже есть аккаунт")
		} else {
			m.modeBtn.SetText("Регистрация")
		}
	}
}

func (m *Manager) updateCredentials(username, password, email string) {
	if m.usernameEntry == nil || m.passwordEntry == nil {
		return
	}
	m.suppressCred = true
	if m.usernameEntry.Text != username {
		m.usernameEntry.SetText(username)
	}
	if m.passwordEntry.Text != password {
		m.passwordEntry.SetText(password)
	}
	if m.emailEntry != nil && m.emailEntry.Text != email {
		m.emailEntry.SetText(email)
	}
	m.suppressCred = false
}

func (m *Manager) updateMainControls(snap uiSnapshot) {
	if m.mainStatus != nil {
		text := snap.StatusText
		if text == "" {
			text = "Готово"
		}
		m.mainStatus.SetText(text)
	}
	if m.profileLabel != nil {
		if snap.Username != "" {
			m.profileLabel.SetText(snap.Username)
		} else {
			m.profileLabel.SetText("—")
		}
	}
	if m.spinner != nil {
		if snap.IsBusy {
			m.spinner.Show()
			m.spinner.Start()
		} else {
			m.spinner.Stop()
			m.spinner.Hide()
		}
	}
	if m.filterSelect != nil {
		m.suppressFilter = true
		m.filterSelect.SetSelected(filterLabel(snap.Filter))
		m.suppressFilter = false
	}
	if m.countsLabel != nil {
		completed := state.CountCompleted(snap.Todos)
		m.countsLabel.SetText(fmt.Sprintf("Всего: %d · Активных: %d · Завершено: %d",
			len(snap.Todos), len(snap.Todos)-completed, completed))
	}
}

func (m *Manager) updateTodos(snap uiSnapshot) {
	m.todos = snap.Todos
	m.visibleTodos = state.Filtered(snap.Todos, snap.Filter)
	if m.todoList == nil {
		return
	}
	m.suppressChecks = true
	m.todoList.Refresh()
	m.suppressChecks = false
}

func (m *Manager) buildLoginWindow() {
	if m.app == nil {
		return
	}
	win := m.app.NewWindow(fmt.Sprintf("%s — Вход", m.appName))
	win.Resize(fyne.NewSize(460, 560))
	win.CenterOnScreen()
	win.SetFixedSize(true)

	title := widget.NewLabelWithStyle(m.appName, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	subtitle := widget.NewLabelWithStyle("Авторизация", fyne.TextAlignLeading, fyne.TextStyle{Bold: false})

	m.usernameEntry = widget.NewEntry()
	m.usernameEntry.SetPlaceHolder("Логин")
	m.usernameEntry.OnChanged = func(string) { m.handleCredentialsEdited() }
	m.usernameEntry.OnSubmitted = func(string) { m.handleSubmitClicked() }

	m.passwordEntry = widget.NewPasswordEntry()
	m.passwordEntry.SetPlaceHolder("Пароль")
	m.passwordEntry.OnChanged = func(string) { m.handleCredentialsEdited() }
	m.passwordEntry.OnSubmitted = func(string) { m.handleSubmitClicked() }

	m.emailEntry = widget.NewEntry()
	m.emailEntry.SetPlaceHolder("user@example.com")
	m.emailEntry.OnChanged = func(string) { m.handleCredentialsEdited() }
	m.emailLabel = widget.NewLabelWithStyle("Почта", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	m.emailLabel.Hide()
	m.emailEntry.Hide()

	submitBtn := widget.NewButton("Войти", m.handleSubmitClicked)
	submitBtn.Importance = widget.HighImportance
	submitBtn.Disable()
	m.submitBtn = submitBtn

	m.modeBtn = widget.NewButton("Регистрация", m.handleModeToggle)
	m.modeBtn.Importance = widget.LowImportance

	m.loginStatus = widget.NewLabel("Восстанавливаем сессию...")
	m.loginStatus.Alignment = fyne.TextAlignLeading
	m.loginStatus.Wrapping = fyne.TextWrapWord

	fields := container.NewVBox(
		widget.NewLabelWithStyle("Логин", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		m.usernameEntry,
		widget.NewLabelWithStyle("Пароль", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		m.passwordEntry,
		m.emailLabel,
		m.emailEntry,
	)
	header := container.NewVBox(title, subtitle)
	form := container.NewVBox(fields, submitBtn, m.modeBtn, layout.NewSpacer())
	statusArea := container.NewVBox(widget.NewSeparator(), m.loginStatus)
	content := container.NewBorder(header, statusArea, nil, nil, form)
	win.SetContent(container.NewPadded(content))
	win.SetCloseIntercept(func() {
		m.handleExitRequested()
	})
	win.Show()
	m.loginWin = win
}

func (m *Manager) buildMainWindow() {
	if m.app == nil {
		return
	}
	win := m.app.NewWindow(m.appName)
	win.Resize(fyne.NewSize(920, 560))

	m.profileLabel = widget.NewLabelWithStyle("—", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	m.mainStatus = widget.NewLabel("Готово")
	m.spinner = widget.NewProgressBarInfinite()
	m.spinner.Hide()
	m.countsLabel = widget.NewLabel("")

	logoutBtn := widget.NewButton("Выйти", func() { m.sendSimpleEvent(state.EventUIClickLogout) })
	refreshBtn := widget.NewButton("Обновить", func() { m.sendSimpleEvent(state.EventUIClickRefresh) })
	exitBtn := widget.NewButton("Закрыть", m.handleExitRequested)

	m.filterSelect = widget.NewRadioGroup(
		[]string{filterLabel(state.FilterAll), filterLabel(state.FilterActive), filterLabel(state.FilterCompleted)},
		m.handleFilterChanged,
	)
	m.filterSelect.Horizontal = true
	m.filterSelect.SetSelected(filterLabel(state.FilterAll))

	m.titleEntry = widget.NewEntry()
	m.titleEntry.SetPlaceHolder("Название задачи")
	m.titleEntry.OnSubmitted = func(string) { m.handleAddClicked() }
	m.descEntry = widget.NewEntry()
	m.descEntry.SetPlaceHolder("Описание (необязательно)")
	m.dueEntry = widget.NewEntry()
	m.dueEntry.SetPlaceHolder("Срок: 2026-01-31 18:00 (необязательно)")
	m.addBtn = widget.NewButton("Добавить", m.handleAddClicked)
	m.addBtn.Importance = widget.HighImportance

	addForm := container.NewVBox(
		m.titleEntry,
		container.NewGridWithColumns(2, m.descEntry, m.dueEntry),
		m.addBtn,
	)
	addCard := widget.NewCard("Новая задача", "", addForm)

	m.todoList = widget.NewList(
		func() int { return len(m.visibleTodos) },
		func() fyne.CanvasObject {
			check := widget.NewCheck("", nil)
			label := widget.NewLabel("")
			label.Truncation = fyne.TextTruncateEllipsis
			editBtn := widget.NewButton("Изменить", nil)
			deleteBtn := widget.NewButton("Удалить", nil)
			return container.NewBorder(nil, nil, check, container.NewHBox(editBtn, deleteBtn), label)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < 0 || id >= len(m.visibleTodos) {
				return
			}
			todo := m.visibleTodos[id]
			row := obj.(*fyne.Container)
			check := row.Objects[1].(*widget.Check)
			buttons := row.Objects[2].(*fyne.Container)
			label := row.Objects[0].(*widget.Label)

			check.OnChanged = nil
			check.SetChecked(todo.Completed)
			todoID := todo.ID
			check.OnChanged = func(bool) { m.handleToggle(todoID) }

			label.SetText(todoRowText(todo))
			editBtn := buttons.Objects[0].(*widget.Button)
			editBtn.OnTapped = func() { m.showEditDialog(todoID) }
			deleteBtn := buttons.Objects[1].(*widget.Button)
			deleteBtn.OnTapped = func() { m.confirmDelete(todoID) }
		},
	)

	listCard := widget.NewCard("Задачи", "", container.NewStack(m.todoList))

	header := container.NewHBox(
		widget.NewLabel("Пользователь:"),
		m.profileLabel,
		layout.NewSpacer(),
		refreshBtn,
		logoutBtn,
		exitBtn,
	)
	statusBar := container.NewHBox(m.mainStatus, layout.NewSpacer(), m.countsLabel, m.spinner)
	top := container.NewVBox(header, m.filterSelect, addCard)
	mainContent := container.NewBorder(top, statusBar, nil, nil, listCard)
	win.SetContent(container.NewPadded(mainContent))
	win.SetCloseIntercept(func() {
		m.sendSimpleEvent(state.EventUICloseWindow)
		win.Hide()
	})
	win.Hide()
	m.mainWin = win
}

func (m *Manager) handleSubmitClicked() {
	if m.usernameEntry == nil || m.passwordEntry == nil {
		return
	}
	payload := state.CredentialsPayload{
		Username: m.usernameEntry.Text,
		Password: m.passwordEntry.Text,
	}
	if m.emailEntry != nil {
		payload.Email = m.emailEntry.Text
	}
	evtType := state.EventUIClickLogin
	if m.signupMode {
		evtType = state.EventUIClickSignup
	}
	m.dispatchEvent(state.Event{Type: evtType, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleModeToggle() {
	m.sendSimpleEvent(state.EventUIToggleSignupMode)
}

func (m *Manager) handleCredentialsEdited() {
	if m.suppressCred {
		return
	}
	payload := state.CredentialsPayload{
		Username: m.usernameEntry.Text,
		Password: m.passwordEntry.Text,
	}
	if m.emailEntry != nil {
		payload.Email = m.emailEntry.Text
	}
	m.dispatchEvent(state.Event{Type: state.EventUICredentialsChanged, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleFilterChanged(selected string) {
	if m.suppressFilter {
		return
	}
	payload := state.FilterPayload{Filter: filterFromLabel(selected)}
	m.dispatchEvent(state.Event{Type: state.EventUISetFilter, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleAddClicked() {
	if m.titleEntry == nil {
		return
	}
	due, err := parseDueInput(m.dueEntry.Text)
	if err != nil {
		dialog.ShowError(errors.New("срок задачи: ожидается формат 2026-01-31 18:00"), m.activeWindow())
		return
	}
	fields := state.TodoFields{
		Title:       m.titleEntry.Text,
		Description: m.descEntry.Text,
		DueTime:     due,
	}
	m.dispatchEvent(state.Event{
		Type:    state.EventUIClickAddTodo,
		Payload: state.TodoFieldsPayload{Fields: fields},
		TS:      time.Now(),
	})
	m.titleEntry.SetText("")
	m.descEntry.SetText("")
	m.dueEntry.SetText("")
}

func (m *Manager) handleToggle(id int) {
	if m.suppressChecks {
		return
	}
	m.dispatchEvent(state.Event{Type: state.EventUIToggleTodo, Payload: state.TodoIDPayload{ID: id}, TS: time.Now()})
}

func (m *Manager) showEditDialog(id int) {
	var todo *state.Todo
	for i := range m.todos {
		if m.todos[i].ID == id {
			todo = &m.todos[i]
			break
		}
	}
	if todo == nil {
		return
	}
	titleEntry := widget.NewEntry()
	titleEntry.SetText(todo.Title)
	descEntry := widget.NewEntry()
	descEntry.SetText(todo.Description)
	dueEntry := widget.NewEntry()
	if todo.DueTime != nil {
		dueEntry.SetText(todo.DueTime.Local().Format(dueInputLayout))
	}
	items := []*widget.FormItem{
		widget.NewFormItem("Название", titleEntry),
		widget.NewFormItem("Описание", descEntry),
		widget.NewFormItem("Срок", dueEntry),
	}
	dialog.ShowForm("Изменить задачу", "Сохранить", "Отмена", items, func(confirmed bool) {
		if !confirmed {
			return
		}
		due, err := parseDueInput(dueEntry.Text)
		if err != nil {
			dialog.ShowError(errors.New("срок задачи: ожидается формат 2026-01-31 18:00"), m.activeWindow())
			return
		}
		payload := state.TodoEditPayload{
			ID: id,
			Fields: state.TodoFields{
				Title:       titleEntry.Text,
				Description: descEntry.Text,
				DueTime:     due,
			},
		}
		m.dispatchEvent(state.Event{Type: state.EventUISaveTodo, Payload: payload, TS: time.Now()})
	}, m.activeWindow())
}

func (m *Manager) confirmDelete(id int) {
	dialog.ShowConfirm("Удалить задачу", "Задача будет удалена без возможности восстановления", func(confirmed bool) {
		if !confirmed {
			return
		}
		m.dispatchEvent(state.Event{Type: state.EventUIDeleteTodo, Payload: state.TodoIDPayload{ID: id}, TS: time.Now()})
	}, m.activeWindow())
}

func (m *Manager) handleExitRequested() {
	m.sendSimpleEvent(state.EventUIExit)
}

func (m *Manager) sendSimpleEvent(t state.EventType) {
	m.dispatchEvent(state.Event{Type: t, TS: time.Now()})
}

func (m *Manager) dispatchEvent(evt state.Event) {
	if m.dispatch == nil {
		return
	}
	if err := m.dispatch(evt); err != nil && m.logger != nil {
		m.logger.Errorf("ui dispatch %s failed: %v", evt.Type, err)
	}
}

func (m *Manager) activeWindow() fyne.Window {
	if m.loginWinVisible && m.loginWin != nil {
		return m.loginWin
	}
	if m.mainWinVisible && m.mainWin != nil {
		return m.mainWin
	}
	if m.loginWin != nil {
		return m.loginWin
	}
	return m.mainWin
}

func (m *Manager) callOnUI(fn func()) {
	if m.app == nil || fn == nil {
		return
	}
	if drv := m.app.Driver(); drv != nil {
		drv.DoFromGoroutine(fn, true)
		return
	}
	fn()
}

const dueInputLayout = "2006-01-02 15:04"

// parseDueInput принимает дату со временем и без него; пустой ввод — без срока.
func parseDueInput(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if parsed, err := time.ParseInLocation(dueInputLayout, text, time.Local); err == nil {
		return &parsed, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", text, time.Local)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func todoRowText(todo state.Todo) string {
	text := todo.Title
	if todo.DueTime != nil {
		text = fmt.Sprintf("%s · до %s", text, todo.DueTime.Local().Format(dueInputLayout))
	}
	if strings.TrimSpace(todo.Description) != "" {
		text = fmt.Sprintf("%s — %s", text, todo.Description)
	}
	return text
}

func filterLabel(filter state.TodoFilter) string {
	switch filter {
	case state.FilterActive:
		return "Активные"
	case state.FilterCompleted:
		return "Завершённые"
	default:
		return "Все"
	}
}

func filterFromLabel(label string) state.TodoFilter {
	switch label {
	case "Активные":
		return state.FilterActive
	case "Завершённые":
		return state.FilterCompleted
	default:
		return state.FilterAll
	}
}

func normalizeUserText(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return message
	}
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(message))
	if err != nil {
		return message
	}
	if utf8.Valid(encoded) {
		fixed := string(encoded)
		if fixed != "" {
			return fixed
		}
	}
	return message
}
