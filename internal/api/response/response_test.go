package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/crm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[domain.ErrorKind]int{
		domain.KindUnauthorized:         http.StatusUnauthorized,
		domain.KindForbidden:            http.StatusForbidden,
		domain.KindValidation:           http.StatusBadRequest,
		domain.KindDuplicateEntity:      http.StatusConflict,
		domain.KindEntityNotFound:       http.StatusNotFound,
		domain.KindImmutableFieldUpdate: http.StatusUnprocessableEntity,
		domain.KindInternal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestFromError_Duplicate(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, domain.NewDuplicateEntity("client", "email", "a@b.ua"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "duplicate_entity", errBody["code"])
	assert.Equal(t, "email", errBody["field"])
	assert.Equal(t, "a@b.ua", errBody["value"])
}

func TestFromError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, errors.New("pq: connection refused to 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
