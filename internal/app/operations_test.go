package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tododesk/client/internal/apiclient"
	"tododesk/client/internal/logging"
	"tododesk/client/internal/state"
	"tododesk/client/internal/storage"
)

func apiError(kind state.ErrorKind, status int, body apiclient.ErrorBody) error {
	return &apiclient.Error{
		Op:     "Test",
		Kind:   kind,
		Status: status,
		Body:   body,
		Err:    fmt.Errorf("unexpected status %d", status),
	}
}

func TestLoginFailureMessagePrecedence(t *testing.T) {
	// non_field_errors важнее detail
	payload := buildLoginFailurePayload(apiError(state.ErrorKindServerFailed, 400, apiclient.ErrorBody{
		NonFieldErrors: []string{"Unable to log in with provided credentials."},
		Detail:         "secondary",
	}))
	assert.Equal(t, "Unable to log in with provided credentials.", payload.Message)

	// без non_field_errors берётся detail
	payload = buildLoginFailurePayload(apiError(state.ErrorKindServerFailed, 400, apiclient.ErrorBody{
		Detail: "Account disabled.",
	}))
	assert.Equal(t, "Account disabled.", payload.Message)

	// пустое тело — фиксированный текст
	payload = buildLoginFailurePayload(apiError(state.ErrorKindServerFailed, 500, apiclient.ErrorBody{}))
	assert.Equal(t, "Не удалось войти. Проверьте логин и пароль", payload.Message)
}

func TestLoginFailureNetworkError(t *testing.T) {
	payload := buildLoginFailurePayload(errors.New("dial tcp: connection refused"))
	assert.Equal(t, state.ErrorKindNetworkUnavailable, payload.Kind)
	assert.Equal(t, "Не удалось подключиться к серверу", payload.Message)
	assert.Contains(t, payload.TechnicalMessage, "connection refused")
}

func TestLoginFailureTimeout(t *testing.T) {
	err := fmt.Errorf("login: %w", context.DeadlineExceeded)
	payload := buildLoginFailurePayload(err)
	assert.Equal(t, state.ErrorKindNetworkUnavailable, payload.Kind)
	assert.Equal(t, "Истекло время ожидания ответа сервера", payload.Message)
}

func TestSignupFailureMessagePrecedence(t *testing.T) {
	// username важнее password и detail
	payload := buildSignupFailurePayload(apiError(state.ErrorKindServerFailed, 400, apiclient.ErrorBody{
		Username: []string{"A user with that username already exists."},
		Password: []string{"This password is too short."},
		Detail:   "secondary",
	}))
	assert.Equal(t, "A user with that username already exists.", payload.Message)

	payload = buildSignupFailurePayload(apiError(state.ErrorKindServerFailed, 400, apiclient.ErrorBody{
		Password: []string{"This password is too short."},
	}))
	assert.Equal(t, "This password is too short.", payload.Message)

	payload = buildSignupFailurePayload(apiError(state.ErrorKindServerFailed, 400, apiclient.ErrorBody{
		Detail: "Registration closed.",
	}))
	assert.Equal(t, "Registration closed.", payload.Message)

	payload = buildSignupFailurePayload(apiError(state.ErrorKindServerFailed, 500, apiclient.ErrorBody{}))
	assert.Equal(t, "Не удалось зарегистрироваться. Попробуйте ещё раз", payload.Message)
}

func TestTodoFailureMessage(t *testing.T) {
	payload := buildTodoFailurePayload(apiError(state.ErrorKindServerFailed, 404, apiclient.ErrorBody{
		Detail: "Not found.",
	}), "Не удалось удалить задачу")
	assert.Equal(t, "Not found.", payload.Message)

	payload = buildTodoFailurePayload(apiError(state.ErrorKindServerFailed, 500, apiclient.ErrorBody{}), "Не удалось удалить задачу")
	assert.Equal(t, "Не удалось удалить задачу (код 500)", payload.Message)

	payload = buildTodoFailurePayload(errors.New("dial tcp: connection refused"), "Не удалось удалить задачу")
	assert.Equal(t, state.ErrorKindNetworkUnavailable, payload.Kind)
	assert.Equal(t, "Не удалось подключиться к серверу", payload.Message)
}

// restoreHarness собирает Application вокруг считающего запросы сервера
// и машины, которая сигналит о возврате к окну входа.
type restoreHarness struct {
	app      *Application
	store    *storage.Store
	ctx      *state.AppContext
	requests *atomic.Int32
	shown    chan struct{}
}

func newRestoreHarness(t *testing.T, status int, body string) *restoreHarness {
	t.Helper()
	requests := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	logger := logging.NewWithWriter(io.Discard, logging.LevelError)
	client, err := apiclient.New(server.URL, apiclient.Options{})
	require.NoError(t, err)
	store, err := storage.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	stateCtx := state.NewAppContext(nil)
	stateCtx.State = state.StateRestoringSession
	shown := make(chan struct{}, 1)
	runCtx, runCancel := context.WithCancel(context.Background())
	t.Cleanup(runCancel)
	app := &Application{
		logger:    logger,
		api:       client,
		store:     store,
		ctx:       stateCtx,
		shutdown:  make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	app.machine = state.NewMachine(stateCtx, logger, state.Callbacks{
		ShowLoginWindow: func(*state.AppContext) {
			select {
			case shown <- struct{}{}:
			default:
			}
		},
		UpdateUI: func(*state.AppContext) {},
	})
	app.machine.Start()
	t.Cleanup(app.machine.Stop)
	return &restoreHarness{app: app, store: store, ctx: stateCtx, requests: requests, shown: shown}
}

func (h *restoreHarness) waitLoginShown(t *testing.T) {
	t.Helper()
	select {
	case <-h.shown:
	case <-time.After(2 * time.Second):
		t.Fatal("login window was not requested")
	}
}

func TestRestoreWithoutStoredTokenMakesNoRequest(t *testing.T) {
	h := newRestoreHarness(t, http.StatusOK, `{"id":1,"username":"alice"}`)
	h.app.startRestore(h.ctx)
	h.waitLoginShown(t)
	assert.Equal(t, int32(0), h.requests.Load(), "restore without a token must not call the server")
	assert.Equal(t, state.StateWaitingLogin, h.ctx.State)
}

func TestRestoreRejectedTokenWipesDurableState(t *testing.T) {
	h := newRestoreHarness(t, http.StatusUnauthorized, `{"detail":"Invalid token."}`)
	require.NoError(t, h.store.SaveToken("stale-token"))
	h.app.startRestore(h.ctx)
	h.waitLoginShown(t)
	assert.Equal(t, int32(1), h.requests.Load(), "restore must validate the token exactly once")
	snap, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Token, "rejected token must be wiped from disk")
	assert.Nil(t, snap.Profile)
	assert.Equal(t, state.StateWaitingLogin, h.ctx.State)
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, isUnauthorized(apiError(state.ErrorKindUnauthorized, 401, apiclient.ErrorBody{})))
	assert.False(t, isUnauthorized(apiError(state.ErrorKindServerFailed, 500, apiclient.ErrorBody{})))
	assert.False(t, isUnauthorized(errors.New("plain error")))
	assert.False(t, isUnauthorized(nil))

	wrapped := fmt.Errorf("load todos: %w", apiError(state.ErrorKindUnauthorized, 401, apiclient.ErrorBody{}))
	assert.True(t, isUnauthorized(wrapped))
}
