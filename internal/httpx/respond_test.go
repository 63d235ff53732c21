package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_DefaultMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrUnauthorized, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body.Error)
	assert.Equal(t, ErrUnauthorized.Message, body.Message)
}

func TestWriteError_CustomMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrValidation, "email is required")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email is required")
}

func TestWriteJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
	require.NoError(t, DecodeJSON(req, &dest))
	assert.Equal(t, "a@x.com", dest.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	assert.Error(t, DecodeJSON(req, &dest), "unknown fields are rejected")

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Error(t, DecodeJSON(req, &dest))
}
