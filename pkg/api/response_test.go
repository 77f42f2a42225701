package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "savethespice-backend/internal/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"recipeId": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{
			name:   "validation",
			err:    appErrors.Validation(appErrors.CodeRecipeNameRequired, "recipe name is required").Build(),
			status: http.StatusBadRequest,
			code:   "RECIPE_NAME_REQUIRED",
			msg:    "recipe name is required",
		},
		{
			name:   "missing recipe",
			err:    appErrors.PreconditionFailed(appErrors.CodeRecipeNotFound, "no recipe 4").Build(),
			status: http.StatusNotFound,
			code:   "RECIPE_NOT_FOUND",
			msg:    "no recipe 4",
		},
		{
			name:   "unavailable",
			err:    appErrors.Unavailable(appErrors.CodeStoreUnavailable, "throttled").Build(),
			status: http.StatusServiceUnavailable,
			code:   "STORE_UNAVAILABLE",
			msg:    "throttled",
		},
		{
			name:   "internal detail hidden",
			err:    appErrors.Internal(appErrors.CodeMarshalFailed, "failed to decode item").Build(),
			status: http.StatusInternalServerError,
			code:   "MARSHAL_FAILED",
			msg:    "internal server error",
		},
		{
			name:   "foreign error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "INTERNAL_ERROR",
			msg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.msg, body.Error.Message)
		})
	}
}
