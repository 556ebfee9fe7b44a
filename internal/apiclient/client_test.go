package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tododesk/client/internal/state"
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(server.URL+"/api", opts)
	require.NoError(t, err)
	return client, server
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("", Options{})
	assert.Error(t, err)
	_, err = New("not-a-url", Options{})
	assert.Error(t, err)
}

func TestLoginSendsCredentialsAndReturnsToken(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody LoginRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LoginResponse{AuthToken: "token-123"})
	}), Options{})

	token, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-123", token)
	assert.Equal(t, "/api/auth/token/login/", gotPath)
	assert.Empty(t, gotAuth, "login must not carry a credential")
	assert.Equal(t, LoginRequest{Username: "alice", Password: "secret"}, gotBody)
}

func TestLoginWithoutTokenIsAuthFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}), Options{})

	_, err := client.Login(context.Background(), "alice", "secret")
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, state.ErrorKindAuthFailed, cErr.Kind)
}

func TestLoginBadCredentialsExposesServerMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"non_field_errors":["Unable to log in with provided credentials."]}`))
	}), Options{})

	_, err := client.Login(context.Background(), "alice", "wrong")
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, http.StatusBadRequest, cErr.Status)
	assert.Equal(t, "Unable to log in with provided credentials.", cErr.Body.FirstNonField())
}

func TestListTodosSendsTokenHeader(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":2,"title":"second","description":"","due_time":null,"completed":false},
			{"id":1,"title":"first","description":"x","due_time":"2026-01-31T18:00:00Z","completed":true}]`))
	}), Options{})

	todos, err := client.ListTodos(context.Background(), "token-123")
	require.NoError(t, err)
	assert.Equal(t, "Token token-123", gotAuth)
	require.Len(t, todos, 2)
	assert.Equal(t, 2, todos[0].ID, "server order must be preserved")
	assert.True(t, todos[1].Completed)
	require.NotNil(t, todos[1].DueTime)
	assert.Equal(t, 2026, todos[1].DueTime.Year())
}

func TestUnauthorizedFiresCallback(t *testing.T) {
	fired := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	}), Options{OnUnauthorized: func() { fired++ }})

	_, err := client.ListTodos(context.Background(), "stale")
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, state.ErrorKindUnauthorized, cErr.Kind)
	assert.Equal(t, "Invalid token.", cErr.Body.Detail)
	assert.Equal(t, 1, fired)
}

func TestCreateTodoTrimsTitleAndFormatsDueTime(t *testing.T) {
	var gotMethod string
	var gotBody TodoWriteRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":5,"title":"task","description":"","due_time":null,"completed":false}`))
	}), Options{})

	due := time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC)
	todo, err := client.CreateTodo(context.Background(), "token-123", state.TodoFields{
		Title:   "  task  ",
		DueTime: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "task", gotBody.Title)
	require.NotNil(t, gotBody.DueTime)
	assert.Equal(t, "2026-02-01T12:30:00Z", *gotBody.DueTime)
	assert.Equal(t, 5, todo.ID)
}

func TestToggleTodoSendsOnlyCompleted(t *testing.T) {
	var raw map[string]any
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"title":"task","description":"","due_time":null,"completed":true}`))
	}), Options{})

	todo, err := client.ToggleTodo(context.Background(), "token-123", 7, true)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/todos/7/", gotPath)
	assert.Equal(t, map[string]any{"completed": true}, raw)
	assert.True(t, todo.Completed)
}

func TestDeleteTodoMissingIDIsError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	}), Options{})

	err := client.DeleteTodo(context.Background(), "token-123", 99)
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, http.StatusNotFound, cErr.Status)
	assert.Equal(t, "Not found.", cErr.Body.Detail)
}

func TestDeleteTodoNoContentSucceeds(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}), Options{})

	require.NoError(t, client.DeleteTodo(context.Background(), "token-123", 3))
}

func TestSignupReturnsProfileWithoutAuth(t *testing.T) {
	var gotBody SignupRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":12,"username":"bob","email":"bob@example.com"}`))
	}), Options{})

	profile, err := client.Signup(context.Background(), "bob", "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bob", gotBody.Username)
	assert.Equal(t, state.UserProfile{ID: 12, Username: "bob", Email: "bob@example.com"}, profile)
}

func TestSignupFieldErrorsParsed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"username":["A user with that username already exists."],"password":["This password is too short."]}`))
	}), Options{})

	_, err := client.Signup(context.Background(), "bob", "", "x")
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "A user with that username already exists.", cErr.Body.FirstUsername())
	assert.Equal(t, "This password is too short.", cErr.Body.FirstPassword())
}

func TestLogoutAcceptsNoContent(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}), Options{})

	require.NoError(t, client.Logout(context.Background(), "token-123"))
	assert.Equal(t, "Token token-123", gotAuth)
}

func TestNetworkErrorIsNetworkKind(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client, err := New(server.URL, Options{})
	require.NoError(t, err)

	_, err = client.ListTodos(context.Background(), "token")
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, state.ErrorKindNetworkUnavailable, cErr.Kind)
}

func TestContextCancellationPropagates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.ListTodos(ctx, "token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
