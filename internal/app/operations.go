package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tododesk/client/internal/apiclient"
	"tododesk/client/internal/state"
)

const requestTimeout = 15 * time.Second

// startRestore восстанавливает сессию из файла состояния. Токен без
// подтверждения сервером не принимается: профиль перезапрашивается, а при
// любом отказе долговременные данные стираются.
func (a *Application) startRestore(_ *state.AppContext) {
	if a.isStopping() {
		return
	}
	snap, err := a.store.Load()
	if err != nil {
		a.logger.Errorf("restore: read state failed: %v", err)
		a.clearDurableSession(nil)
		a.dispatch(state.Event{Type: state.EventSysRestoreFailure})
		return
	}
	if snap.Token == "" {
		a.logger.Debugf("restore: no stored credential")
		a.dispatch(state.Event{Type: state.EventSysRestoreEmpty})
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	profile, err := a.api.CurrentUser(ctx, snap.Token)
	cancel()
	if err != nil {
		a.logger.Errorf("restore: stored credential rejected: %v", err)
		a.clearDurableSession(nil)
		a.dispatch(state.Event{Type: state.EventSysRestoreFailure})
		return
	}
	if saveErr := a.store.SaveProfile(profile); saveErr != nil {
		a.logger.Errorf("restore: persist profile failed: %v", saveErr)
	}
	a.logger.Infof("session restored for %s", profile.Username)
	a.dispatch(state.Event{
		Type:    state.EventSysRestoreSuccess,
		Payload: state.SessionPayload{Token: snap.Token, Profile: profile},
	})
}

// startLogin выполняет вход. Если токен получен, но профиль запросить не
// удалось, вход всё равно считается успешным с профилем-заглушкой.
func (a *Application) startLogin(_ *state.AppContext, username, password string) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	token, err := a.api.Login(ctx, username, password)
	cancel()
	if err != nil {
		a.logger.Errorf("login request failed: %v", err)
		payload := buildLoginFailurePayload(err)
		a.dispatch(state.Event{Type: state.EventSysAuthFailure, Payload: payload})
		return
	}
	if saveErr := a.store.SaveToken(token); saveErr != nil {
		a.logger.Errorf("persist token failed: %v", saveErr)
	}
	profileCtx, cancelProfile := a.requestContext(requestTimeout)
	profile, profileErr := a.api.CurrentUser(profileCtx, token)
	cancelProfile()
	if profileErr != nil {
		// токен уже действителен, поэтому продолжаем с заглушкой
		a.logger.Errorf("profile fetch after login failed: %v", profileErr)
		profile = state.StubProfile(username)
	} else if saveErr := a.store.SaveProfile(profile); saveErr != nil {
		a.logger.Errorf("persist profile failed: %v", saveErr)
	}
	a.logger.Infof("login succeeded for %s, token length %d", profile.Username, len(token))
	a.dispatch(state.Event{
		Type:    state.EventSysAuthSuccess,
		Payload: state.SessionPayload{Token: token, Profile: profile},
	})
}

// startSignup регистрирует пользователя. Сессия при этом не меняется.
func (a *Application) startSignup(_ *state.AppContext, username, email, password string) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	profile, err := a.api.Signup(ctx, username, email, password)
	cancel()
	if err != nil {
		a.logger.Errorf("signup request failed: %v", err)
		payload := buildSignupFailurePayload(err)
		a.dispatch(state.Event{Type: state.EventSysSignupFailure, Payload: payload})
		return
	}
	a.logger.Infof("signup succeeded for %s", profile.Username)
	a.dispatch(state.Event{Type: state.EventSysSignupSuccess})
}

// startLogout лучшим образом уведомляет сервер и стирает локальную сессию.
// Сетевая ошибка здесь проглатывается: локальный выход состоится всегда.
func (a *Application) startLogout(appCtx *state.AppContext) {
	if a.isStopping() {
		return
	}
	token := strings.TrimSpace(appCtx.Session.Token)
	if token != "" {
		ctx, cancel := a.requestContext(requestTimeout)
		if err := a.api.Logout(ctx, token); err != nil {
			a.logger.Errorf("logout request failed (ignored): %v", err)
		}
		cancel()
	}
	a.clearDurableSession(appCtx)
	a.dispatch(state.Event{Type: state.EventSysLogoutDone})
}

func (a *Application) startLoadTodos(appCtx *state.AppContext) {
	if a.isStopping() {
		return
	}
	token := strings.TrimSpace(appCtx.Session.Token)
	if token == "" {
		a.logger.Errorf("todos load requested without credential")
		payload := state.ScenarioResultPayload{Kind: state.ErrorKindAuthFailed, Message: "Не удалось загрузить список задач", TechnicalMessage: "credential is empty"}
		a.dispatch(state.Event{Type: state.EventSysTodosFailure, Payload: payload})
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	todos, err := a.api.ListTodos(ctx, token)
	cancel()
	if err != nil {
		a.logger.Errorf("todos load failed: %v", err)
		if isUnauthorized(err) {
			// сброс сессии уже запланирован колбэком клиента
			return
		}
		payload := buildTodoFailurePayload(err, "Не удалось загрузить список задач")
		a.dispatch(state.Event{Type: state.EventSysTodosFailure, Payload: payload})
		return
	}
	a.logger.Infof("todos loaded: %d items", len(todos))
	a.dispatch(state.Event{Type: state.EventSysTodosLoaded, Payload: state.TodosPayload{Todos: todos}})
}

func (a *Application) startCreateTodo(appCtx *state.AppContext, fields state.TodoFields) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	todo, err := a.api.CreateTodo(ctx, appCtx.Session.Token, fields)
	cancel()
	if err != nil {
		a.logger.Errorf("create todo failed: %v", err)
		if isUnauthorized(err) {
			return
		}
		payload := buildTodoFailurePayload(err, "Не удалось создать задачу")
		a.dispatch(state.Event{Type: state.EventSysTodoFailure, Payload: payload})
		return
	}
	a.logger.Infof("todo %d created", todo.ID)
	a.dispatch(state.Event{Type: state.EventSysTodoCreated, Payload: state.TodoPayload{Todo: todo}})
}

func (a *Application) startUpdateTodo(appCtx *state.AppContext, id int, fields state.TodoFields) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	todo, err := a.api.UpdateTodo(ctx, appCtx.Session.Token, id, fields)
	cancel()
	if err != nil {
		a.logger.Errorf("update todo %d failed: %v", id, err)
		if isUnauthorized(err) {
			return
		}
		payload := buildTodoFailurePayload(err, "Не удалось сохранить задачу")
		a.dispatch(state.Event{Type: state.EventSysTodoFailure, Payload: payload})
		return
	}
	a.dispatch(state.Event{Type: state.EventSysTodoUpdated, Payload: state.TodoPayload{Todo: todo}})
}

func (a *Application) startToggleTodo(appCtx *state.AppContext, id int, completed bool) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	todo, err := a.api.ToggleTodo(ctx, appCtx.Session.Token, id, completed)
	cancel()
	if err != nil {
		a.logger.Errorf("toggle todo %d failed: %v", id, err)
		if isUnauthorized(err) {
			return
		}
		payload := buildTodoFailurePayload(err, "Не удалось изменить статус задачи")
		a.dispatch(state.Event{Type: state.EventSysTodoFailure, Payload: payload})
		return
	}
	a.dispatch(state.Event{Type: state.EventSysTodoUpdated, Payload: state.TodoPayload{Todo: todo}})
}

// startDeleteTodo удаляет запись. Локальный кеш меняется только после
// подтверждения сервера, никакого упреждающего удаления.
func (a *Application) startDeleteTodo(appCtx *state.AppContext, id int) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(requestTimeout)
	err := a.api.DeleteTodo(ctx, appCtx.Session.Token, id)
	cancel()
	if err != nil {
		a.logger.Errorf("delete todo %d failed: %v", id, err)
		if isUnauthorized(err) {
			return
		}
		payload := buildTodoFailurePayload(err, "Не удалось удалить задачу")
		a.dispatch(state.Event{Type: state.EventSysTodoFailure, Payload: payload})
		return
	}
	a.logger.Infof("todo %d deleted", id)
	a.dispatch(state.Event{Type: state.EventSysTodoDeleted, Payload: state.TodoIDPayload{ID: id}})
}

// clearDurableSession стирает токен и профиль из файла состояния.
func (a *Application) clearDurableSession(_ *state.AppContext) {
	if err := a.store.Clear(); err != nil {
		a.logger.Errorf("clear durable session failed: %v", err)
	}
}

// buildLoginFailurePayload выбирает сообщение об ошибке входа.
// Порядок детерминирован: non_field_errors[0], затем detail, затем
// фиксированный текст. Сообщения сервера показываются как есть.
func buildLoginFailurePayload(err error) state.ScenarioResultPayload {
	payload := state.ScenarioResultPayload{
		Kind:    state.ErrorKindAuthFailed,
		Message: "Не удалось войти. Проверьте логин и пароль",
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Истекло время ожидания ответа сервера"
		return payload
	}
	var cErr *apiclient.Error
	if !errors.As(err, &cErr) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Не удалось подключиться к серверу"
		return payload
	}
	if cErr.Kind != "" {
		payload.Kind = cErr.Kind
	}
	if message := cErr.Body.FirstNonField(); message != "" {
		payload.Message = message
		return payload
	}
	if message := strings.TrimSpace(cErr.Body.Detail); message != "" {
		payload.Message = message
		return payload
	}
	return payload
}

// buildSignupFailurePayload выбирает сообщение об ошибке регистрации:
// username[0], затем password[0], затем detail, затем фиксированный текст.
func buildSignupFailurePayload(err error) state.ScenarioResultPayload {
	payload := state.ScenarioResultPayload{
		Kind:    state.ErrorKindServerFailed,
		Message: "Не удалось зарегистрироваться. Попробуйте ещё раз",
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Истекло время ожидания ответа сервера"
		return payload
	}
	var cErr *apiclient.Error
	if !errors.As(err, &cErr) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Не удалось подключиться к серверу"
		return payload
	}
	if cErr.Kind != "" {
		payload.Kind = cErr.Kind
	}
	if message := cErr.Body.FirstUsername(); message != "" {
		payload.Message = message
		return payload
	}
	if message := cErr.Body.FirstPassword(); message != "" {
		payload.Message = message
		return payload
	}
	if message := strings.TrimSpace(cErr.Body.Detail); message != "" {
		payload.Message = message
		return payload
	}
	return payload
}

// buildTodoFailurePayload строит сообщение для неуспешной операции над
// записью: detail сервера, иначе запасной текст с кодом ответа.
func buildTodoFailurePayload(err error, fallback string) state.ScenarioResultPayload {
	payload := state.ScenarioResultPayload{
		Kind:    state.ErrorKindServerFailed,
		Message: fallback,
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Истекло время ожидания ответа сервера"
		return payload
	}
	var cErr *apiclient.Error
	if !errors.As(err, &cErr) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Не удалось подключиться к серверу"
		return payload
	}
	if cErr.Kind != "" {
		payload.Kind = cErr.Kind
	}
	if message := strings.TrimSpace(cErr.Body.Detail); message != "" {
		payload.Message = message
		return payload
	}
	if cErr.Status > 0 {
		payload.Message = fmt.Sprintf("%s (код %d)", fallback, cErr.Status)
	}
	return payload
}

func isUnauthorized(err error) bool {
	var cErr *apiclient.Error
	return errors.As(err, &cErr) && cErr.Kind == state.ErrorKindUnauthorized
}

func (a *Application) requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	parent := context.Background()
	if a != nil && a.runCtx != nil {
		parent = a.runCtx
	}
	return context.WithTimeout(parent, timeout)
}

func (a *Application) isStopping() bool {
	if a == nil || a.runCtx == nil {
		return false
	}
	select {
	case <-a.runCtx.Done():
		return true
	default:
		return false
	}
}
