package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"task-tracker/internal/models"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid updates", fmt.Errorf("%w (role)", models.ErrInvalidUpdates), http.StatusBadRequest, "Invalid updates!"},
		{"login failed", models.ErrLoginFailed, http.StatusBadRequest, "Unable to login"},
		{"validation detail", fmt.Errorf("%w: email is invalid", models.ErrValidation), http.StatusBadRequest, "email is invalid"},
		{"duplicate email", fmt.Errorf("%w: %w", models.ErrValidation, models.ErrDuplicateEmail), http.StatusBadRequest, models.ErrDuplicateEmail.Error()},
		{"upload detail", fmt.Errorf("%w: File too large", models.ErrInvalidUpload), http.StatusBadRequest, "File too large"},
		{"image processing", fmt.Errorf("%w: bad header", models.ErrImageProcessing), http.StatusBadRequest, "unable to process image"},
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized, "Please Authenticate."},
		{"invalid token", models.ErrInvalidToken, http.StatusUnauthorized, "Please Authenticate."},
		{"expired token", fmt.Errorf("%w: token is expired", models.ErrInvalidToken), http.StatusUnauthorized, "Please Authenticate."},
		{"not found", models.ErrNotFound, http.StatusNotFound, "not found"},
		{"store failure", fmt.Errorf("%w: disk I/O error", models.ErrStore), http.StatusInternalServerError, "internal server error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body["error"] != tt.message {
				t.Errorf("Expected error %q, got %q", tt.message, body["error"])
			}
		})
	}
}
