package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"taxforms-api/middleware"
	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto an HTTP status and the usual
// {"success": false, "error": ...} body.
func respondError(c *gin.Context, err error) {
	var (
		conversion *services.ConversionFailedError
		upload     *services.UploadFailedError
		unresolved *services.FileNotResolvableError
		persist    *services.PersistenceFailedError
		missing    *services.RequiredFieldsMissingError
	)

	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error(), "missing_fields": missing.Fields})
		return
	case errors.As(err, &conversion):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &upload):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &unresolved):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &persist):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrSubmissionInFlight), errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

// currentAuth returns the caller's AuthState or writes a 401.
func currentAuth(c *gin.Context) (services.AuthState, bool) {
	state, ok := middleware.AuthState(c)
	if !ok || !state.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return services.AuthState{}, false
	}
	return state, true
}

// readUpload reads the multipart "file" part, refusing anything over maxBytes.
func readUpload(c *gin.Context, maxBytes int64) (services.FileInput, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return services.FileInput{}, fmt.Errorf("%w: file is required", services.ErrInvalidInput)
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return services.FileInput{}, fmt.Errorf("%w: file exceeds %d MB limit", services.ErrInvalidInput, maxBytes/(1024*1024))
	}

	f, err := header.Open()
	if err != nil {
		return services.FileInput{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	limit := maxBytes
	if limit <= 0 {
		limit = header.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return services.FileInput{}, fmt.Errorf("read upload: %w", err)
	}

	return services.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
