package apiclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tododesk/client/internal/state"
)

func strPtr(s string) *string { return &s }

func TestTodoDTOValidate(t *testing.T) {
	dto := TodoDTO{ID: 1, Title: "task", Description: "text", DueTime: strPtr("2026-01-31T18:00:00Z"), Completed: true}
	todo, err := dto.Validate()
	require.NoError(t, err)
	assert.Equal(t, 1, todo.ID)
	assert.True(t, todo.Completed)
	require.NotNil(t, todo.DueTime)
	assert.Equal(t, time.Date(2026, 1, 31, 18, 0, 0, 0, time.UTC), todo.DueTime.UTC())
}

func TestTodoDTOValidateRejectsBadData(t *testing.T) {
	_, err := TodoDTO{ID: 0, Title: "task"}.Validate()
	assert.Error(t, err, "non-positive id")

	_, err = TodoDTO{ID: 1, Title: "   "}.Validate()
	assert.Error(t, err, "blank title")

	_, err = TodoDTO{ID: 1, Title: "task", DueTime: strPtr("tomorrow")}.Validate()
	assert.Error(t, err, "unparseable due_time")
}

func TestParseDueTimeVariants(t *testing.T) {
	got, err := parseDueTime(nil)
	require.NoError(t, err)
	assert.Nil(t, got, "null means no deadline")

	got, err = parseDueTime(strPtr("  "))
	require.NoError(t, err)
	assert.Nil(t, got, "blank means no deadline")

	got, err = parseDueTime(strPtr("2026-01-31T18:00:00+03:00"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 15, got.UTC().Hour())

	// серверный формат без зоны тоже принимается
	got, err = parseDueTime(strPtr("2026-01-31T18:00:00"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 18, got.Hour())
}

func TestNewTodoWriteRequest(t *testing.T) {
	due := time.Date(2026, 3, 15, 9, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	req := newTodoWriteRequest(state.TodoFields{Title: "  task ", Description: "text", DueTime: &due})
	assert.Equal(t, "task", req.Title)
	require.NotNil(t, req.DueTime)
	assert.Equal(t, "2026-03-15T06:00:00Z", *req.DueTime, "due_time is sent in UTC")

	req = newTodoWriteRequest(state.TodoFields{Title: "task"})
	assert.Nil(t, req.DueTime)
}

func TestUserDTOValidate(t *testing.T) {
	profile, err := UserDTO{ID: 3, Username: "alice", Email: "a@b.c"}.Validate()
	require.NoError(t, err)
	assert.Equal(t, state.UserProfile{ID: 3, Username: "alice", Email: "a@b.c"}, profile)

	_, err = UserDTO{ID: 3, Username: " "}.Validate()
	assert.Error(t, err)
}

func TestParseErrorBody(t *testing.T) {
	body := parseErrorBody([]byte(`{"non_field_errors":["bad credentials"],"detail":"why","username":["taken"]}`))
	assert.Equal(t, "bad credentials", body.FirstNonField())
	assert.Equal(t, "why", body.Detail)
	assert.Equal(t, "taken", body.FirstUsername())
	assert.Empty(t, body.FirstPassword())

	body = parseErrorBody([]byte("<html>gateway error</html>"))
	assert.Empty(t, body.FirstNonField())
	assert.Empty(t, body.Detail)

	body = parseErrorBody(nil)
	assert.Empty(t, body.Detail)
}
