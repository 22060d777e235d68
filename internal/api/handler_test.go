package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbreno/mugiwaradb/internal/service"
	"github.com/dbreno/mugiwaradb/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"product not found", &store.ProductNotFoundError{ID: 7}, http.StatusNotFound},
		{"insufficient stock", &store.InsufficientStockError{ProductName: "Log Pose"}, http.StatusConflict},
		{"invalid cart", store.ErrInvalidCart, http.StatusBadRequest},
		{"invalid input", store.ErrInvalidInput, http.StatusBadRequest},
		{"busy", store.ErrBusy, http.StatusServiceUnavailable},
		{"email taken", store.ErrEmailTaken, http.StatusConflict},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("pq: relation does not exist"), http.StatusInternalServerError},
	}

	h := &Handler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			h.respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	(&Handler{}).respondError(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}
