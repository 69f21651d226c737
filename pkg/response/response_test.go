package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"opmelink-api/pkg/apierror"

	"github.com/stretchr/testify/assert"
)

func TestList(t *testing.T) {
	rec := httptest.NewRecorder()
	List(rec, []string{"a", "b"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":["a","b"],"meta":{"count":2}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	List[int](rec, nil)
	assert.JSONEq(t, `{"success":true,"data":[],"meta":{"count":0}}`, rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("wrapped: %w", apierror.NotFound("case 7 not found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"case 7 not found"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Error(rec, errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db exploded")
}

func TestCreatedAndNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]int{"id": 1})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	NoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
