package controllers

import (
	"net/http"

	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

type FormTypeController struct {
	schema *services.FormSchemaService
}

func NewFormTypeController(schema *services.FormSchemaService) *FormTypeController {
	return &FormTypeController{schema: schema}
}

// GET /api/v1/form-types
func (fc *FormTypeController) ListActive(c *gin.Context) {
	formTypes := fc.schema.GetActiveFormTypes(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"form_types": formTypes,
		"total":      len(formTypes),
	})
}

// GET /api/v1/form-types/:id/fields
func (fc *FormTypeController) Fields(c *gin.Context) {
	fields := fc.schema.GetFields(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"fields":  fields,
	})
}

// GET /api/v1/admin/form-types
func (fc *FormTypeController) ListAll(c *gin.Context) {
	formTypes, err := fc.schema.ListAllFormTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"form_types": formTypes,
		"total":      len(formTypes),
	})
}

// POST /api/v1/admin/form-types
func (fc *FormTypeController) Create(c *gin.Context) {
	var req services.FormTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	formType, err := fc.schema.CreateFormType(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "form_type": formType})
}

// PUT /api/v1/admin/form-types/:id
func (fc *FormTypeController) Update(c *gin.Context) {
	var req services.FormTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	formType, err := fc.schema.UpdateFormType(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "form_type": formType})
}

// POST /api/v1/admin/form-types/:id/fields
func (fc *FormTypeController) AddField(c *gin.Context) {
	var req services.CustomFieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	field, err := fc.schema.AddCustomField(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "field": field})
}

// DELETE /api/v1/admin/fields/:field_id
func (fc *FormTypeController) DeleteField(c *gin.Context) {
	if err := fc.schema.DeleteCustomField(c.Request.Context(), c.Param("field_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Field deleted"})
}
