package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError is the one place error classes become HTTP statuses. Store
// failures and anything unclassified are logged and answered with a generic
// 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidUpdates):
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidUpdates.Error()})
	case errors.Is(err, models.ErrLoginFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrLoginFailed.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": detail(err, models.ErrValidation)})
	case errors.Is(err, models.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": detail(err, models.ErrInvalidUpload)})
	case errors.Is(err, models.ErrImageProcessing):
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrImageProcessing.Error()})
	case services.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrNotFound.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// detail strips the class prefix so "validation failed: email is invalid"
// reaches the client as "email is invalid".
func detail(err, class error) string {
	return strings.TrimPrefix(err.Error(), class.Error()+": ")
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
