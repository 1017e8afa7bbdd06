package controllers

import (
	"net/http"

	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	accounts *services.AccountService
	identity *services.IdentityService
}

func NewAuthController(accounts *services.AccountService, identity *services.IdentityService) *AuthController {
	return &AuthController{accounts: accounts, identity: identity}
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/v1/auth/signup
func (ac *AuthController) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := ac.accounts.SignUp(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   session.Token,
		"user":    session.Profile,
		"role":    session.Role,
		"message": "Account created",
	})
}

// POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := ac.accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   session.Token,
		"user":    session.Profile,
		"role":    session.Role,
		"message": "Login successful",
	})
}

// GET /api/v1/profile
func (ac *AuthController) Profile(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"user_id":   auth.UserID,
			"email":     auth.Email,
			"full_name": auth.FullName,
			"role":      auth.Role,
		},
		"profile": ac.identity.GetUserProfile(c.Request.Context(), auth.UserID),
	})
}
