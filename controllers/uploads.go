package controllers

import (
	"net/http"
	"strings"

	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

type UploadController struct {
	intake   *services.FileIntakeService
	maxBytes int64
}

func NewUploadController(intake *services.FileIntakeService, maxBytes int64) *UploadController {
	return &UploadController{intake: intake, maxBytes: maxBytes}
}

// POST /api/v1/uploads
// multipart: file, field_name, field_label, accept
func (uc *UploadController) Upload(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	fieldName := strings.TrimSpace(c.PostForm("field_name"))
	if fieldName == "" {
		badRequest(c, "field_name is required")
		return
	}

	file, err := readUpload(c, uc.maxBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	ref, err := uc.intake.UploadFile(c.Request.Context(), file, services.UploadContext{
		UserID:     auth.UserID,
		FieldName:  fieldName,
		FieldLabel: strings.TrimSpace(c.PostForm("field_label")),
		Accept:     c.DefaultPostForm("accept", "*"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "file": ref})
}
