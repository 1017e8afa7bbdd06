package controllers

import (
	"net/http"

	"taxforms-api/models"
	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

type ApplicationController struct {
	submission *services.SubmissionService
	schema     *services.FormSchemaService
}

func NewApplicationController(submission *services.SubmissionService, schema *services.FormSchemaService) *ApplicationController {
	return &ApplicationController{submission: submission, schema: schema}
}

type CreateApplicationRequest struct {
	FormTypeID    string                   `json:"form_type_id" binding:"required"`
	FormData      map[string]any           `json:"form_data"`
	UploadedFiles []models.UploadedFileRef `json:"uploaded_files"`
}

// POST /api/v1/applications
// One-shot submission for clients that keep wizard state themselves.
func (ac *ApplicationController) Create(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	formType, err := ac.schema.GetFormType(c.Request.Context(), req.FormTypeID)
	if err != nil {
		respondError(c, err)
		return
	}

	app, err := ac.submission.Submit(c.Request.Context(), auth, services.SubmissionInput{
		FormTypeID: formType.ID,
		Data:       models.SplitFormData(formType.Kind(), req.FormData),
		Files:      req.UploadedFiles,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"application": app,
		"message":     "Application submitted",
	})
}

// GET /api/v1/applications
func (ac *ApplicationController) List(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	apps, err := ac.submission.ListForUser(c.Request.Context(), auth)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"applications": apps,
		"total":        len(apps),
	})
}

// GET /api/v1/applications/:id
func (ac *ApplicationController) Get(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	app, err := ac.submission.GetForUser(c.Request.Context(), auth, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "application": app})
}

// DELETE /api/v1/applications/:id
// Owners may only delete pending applications.
func (ac *ApplicationController) Delete(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	if err := ac.submission.DeleteOwn(c.Request.Context(), auth, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Application deleted"})
}

// GET /api/v1/dashboard
func (ac *ApplicationController) Dashboard(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	stats, err := ac.submission.UserDashboard(c.Request.Context(), auth)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
