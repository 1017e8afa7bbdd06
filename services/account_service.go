package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxforms-api/models"
	"taxforms-api/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountService handles local email/password accounts.
type AccountService struct {
	db       *gorm.DB
	identity *IdentityService
}

func NewAccountService(db *gorm.DB, identity *IdentityService) *AccountService {
	return &AccountService{db: db, identity: identity}
}

// SessionResult is returned by SignUp and SignIn.
type SessionResult struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
	Role    models.Role    `json:"role"`
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// SignUp creates a profile with the user role and returns a session.
func (s *AccountService) SignUp(ctx context.Context, email, password, fullName string) (*SessionResult, error) {
	email = strings.ToLower(utils.SanitizeInput(email))
	if !utils.ValidateEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if ok, msg := utils.ValidatePassword(password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, persistenceFailed("check existing account", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: email already registered", ErrInvalidInput)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := models.Profile{Email: email, PasswordHash: hash}
	if name := utils.SanitizeInput(fullName); name != "" {
		profile.FullName = &name
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserRole{UserID: profile.UserID, Role: models.RoleUser}).Error
	})
	if err != nil {
		return nil, persistenceFailed("create account", err)
	}

	token, err := s.identity.IssueToken(profile.UserID, profile.Email)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Token: token, Profile: profile, Role: models.RoleUser}, nil
}

// SignIn verifies the password and returns a session.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*SessionResult, error) {
	email = strings.ToLower(utils.SanitizeInput(email))

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if profile.PasswordHash == "" || !CheckPasswordHash(password, profile.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.identity.IssueToken(profile.UserID, profile.Email)
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		Token:   token,
		Profile: profile,
		Role:    s.identity.GetUserRole(ctx, profile.UserID),
	}, nil
}

// HashPassword hashes password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares password with hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
