package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manabi-dev/manabi/internal/errors"
)

func TestWriteMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteMessage(rr, http.StatusCreated, "done")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message": "done"}`, rr.Body.String())
}

func TestWriteErrorAndStatusCode(t *testing.T) {
	t.Run("error with status code keeps its status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteErrorAndStatusCode(rr, errors.NewNotFound("User not found"))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error": "User not found"}`, rr.Body.String())
	})

	t.Run("plain error is an opaque 500", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteErrorAndStatusCode(rr, io.ErrUnexpectedEOF)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error": "Internal server error"}`, rr.Body.String())
	})

	t.Run("validator errors render a per-field list", func(t *testing.T) {
		var body struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=8"`
		}
		err := DecodeValidate(io.NopCloser(strings.NewReader(`{"email": "not-an-email", "password": "short"}`)), &body)
		require.Error(t, err)

		rr := httptest.NewRecorder()
		WriteErrorAndStatusCode(rr, err)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp map[string][]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp["errors"], 2)
	})
}

func TestDecodeValidate(t *testing.T) {
	type body struct {
		Email string `json:"email" validate:"required,email"`
	}

	t.Run("valid body", func(t *testing.T) {
		var b body
		err := DecodeValidate(io.NopCloser(strings.NewReader(`{"email": "a@b.com"}`)), &b)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", b.Email)
	})

	t.Run("invalid json is a 400", func(t *testing.T) {
		var b body
		err := DecodeValidate(io.NopCloser(strings.NewReader(`{not json`)), &b)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, errors.StatusCode(err))
	})

	t.Run("missing required field fails validation", func(t *testing.T) {
		var b body
		err := DecodeValidate(io.NopCloser(strings.NewReader(`{}`)), &b)
		assert.Error(t, err)
	})
}
