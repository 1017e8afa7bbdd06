package controllers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"taxforms-api/models"
	"taxforms-api/services"
	"taxforms-api/utils"

	"github.com/gin-gonic/gin"
)

type AdminApplicationController struct {
	review *services.AdminReviewService
}

func NewAdminApplicationController(review *services.AdminReviewService) *AdminApplicationController {
	return &AdminApplicationController{review: review}
}

type updateStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// GET /api/v1/admin/applications?status=&q=&limit=
func (ac *AdminApplicationController) List(c *gin.Context) {
	filter := services.ApplicationFilter{Search: c.Query("q")}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" && raw != "all" {
		status, err := utils.ParseStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = status
	}
	if lim, err := strconv.Atoi(c.Query("limit")); err == nil && lim > 0 {
		filter.Limit = lim
	}

	apps, err := ac.review.List(c.Request.Context(), filter)
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

// GET /api/v1/admin/applications/:id
func (ac *AdminApplicationController) Get(c *gin.Context) {
	app, err := ac.review.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "application": app})
}

// PUT /api/v1/admin/applications/:id/status
func (ac *AdminApplicationController) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := utils.ParseStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	app, err := ac.review.UpdateStatus(c.Request.Context(), c.Param("id"), status, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"application": app,
		"message":     "Status updated to " + utils.StatusLabel(status),
	})
}

// DELETE /api/v1/admin/applications/:id
func (ac *AdminApplicationController) Delete(c *gin.Context) {
	if err := ac.review.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Application deleted"})
}

// POST /api/v1/admin/applications/bulk-delete
func (ac *AdminApplicationController) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	deleted, err := ac.review.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// POST /api/v1/admin/files/download
// body: an uploaded file reference, possibly without storagePath
func (ac *AdminApplicationController) DownloadFile(c *gin.Context) {
	var ref models.UploadedFileRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		badRequest(c, err.Error())
		return
	}

	file, err := ac.review.DownloadFile(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Header("X-File-Resolution", file.Strategy)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// GET /api/v1/admin/dashboard
func (ac *AdminApplicationController) Dashboard(c *gin.Context) {
	stats, err := ac.review.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
