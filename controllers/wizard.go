package controllers

import (
	"net/http"

	"taxforms-api/models"
	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

type WizardController struct {
	wizards  *services.WizardService
	maxBytes int64
}

func NewWizardController(wizards *services.WizardService, maxBytes int64) *WizardController {
	return &WizardController{wizards: wizards, maxBytes: maxBytes}
}

type selectFormTypeRequest struct {
	FormTypeID string `json:"form_type_id" binding:"required"`
}

type setFieldsRequest struct {
	Fields   map[string]any       `json:"fields"`
	W2       *models.W2Data       `json:"w2"`
	Form1099 *models.Form1099Data `json:"form_1099"`
}

func (wc *WizardController) respond(c *gin.Context, status int, w *services.Wizard, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, gin.H{"success": true, "wizard": w})
}

// POST /api/v1/wizard
func (wc *WizardController) Start(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, err := wc.wizards.Start(c.Request.Context(), auth)
	wc.respond(c, http.StatusCreated, w, err)
}

// GET /api/v1/wizard/:id
func (wc *WizardController) Get(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, err := wc.wizards.Get(c.Request.Context(), auth, c.Param("id"))
	wc.respond(c, http.StatusOK, w, err)
}

// PUT /api/v1/wizard/:id/form-type
func (wc *WizardController) SelectFormType(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req selectFormTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	w, err := wc.wizards.SelectFormType(c.Request.Context(), auth, c.Param("id"), req.FormTypeID)
	wc.respond(c, http.StatusOK, w, err)
}

// PUT /api/v1/wizard/:id/fields
func (wc *WizardController) SetFields(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req setFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.W2 == nil && req.Form1099 == nil && len(req.Fields) == 0 {
		badRequest(c, "nothing to update")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	var (
		w   *services.Wizard
		err error
	)
	if req.W2 != nil || req.Form1099 != nil {
		if w, err = wc.wizards.SetTypedData(ctx, auth, id, req.W2, req.Form1099); err != nil {
			respondError(c, err)
			return
		}
	}
	if len(req.Fields) > 0 {
		w, err = wc.wizards.SetFields(ctx, auth, id, req.Fields)
	}
	wc.respond(c, http.StatusOK, w, err)
}

// POST /api/v1/wizard/:id/files
// multipart: file, field_name
func (wc *WizardController) UploadFile(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	fieldName := c.PostForm("field_name")
	if fieldName == "" {
		badRequest(c, "field_name is required")
		return
	}
	file, err := readUpload(c, wc.maxBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	w, err := wc.wizards.UploadFile(c.Request.Context(), auth, c.Param("id"), fieldName, file)
	wc.respond(c, http.StatusOK, w, err)
}

// DELETE /api/v1/wizard/:id/files/:field
// Clears the slot only; the stored object stays.
func (wc *WizardController) ClearFile(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, err := wc.wizards.ClearFile(c.Request.Context(), auth, c.Param("id"), c.Param("field"))
	wc.respond(c, http.StatusOK, w, err)
}

// POST /api/v1/wizard/:id/next
func (wc *WizardController) Next(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, err := wc.wizards.Next(c.Request.Context(), auth, c.Param("id"))
	wc.respond(c, http.StatusOK, w, err)
}

// POST /api/v1/wizard/:id/back
func (wc *WizardController) Back(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, err := wc.wizards.Back(c.Request.Context(), auth, c.Param("id"))
	wc.respond(c, http.StatusOK, w, err)
}

// POST /api/v1/wizard/:id/submit
func (wc *WizardController) Submit(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	w, app, err := wc.wizards.Submit(c.Request.Context(), auth, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"wizard":      w,
		"application": app,
		"message":     "Application submitted",
	})
}
