package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxforms-api/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SessionClaims are the claims carried by session tokens. Supabase access
// tokens use the same layout (sub = user id), so tokens issued by either
// Supabase Auth or AccountService verify against the shared secret.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityService resolves session tokens into AuthState values and
// answers role and profile lookups.
type IdentityService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewIdentityService(db *gorm.DB, secret string, ttl time.Duration, log logrus.FieldLogger) *IdentityService {
	return &IdentityService{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// ResolveSession verifies token and loads the caller's role and profile.
func (s *IdentityService) ResolveSession(ctx context.Context, token string) (AuthState, error) {
	if len(s.secret) == 0 {
		return AuthState{}, fmt.Errorf("%w: JWT secret not configured", ErrUnauthenticated)
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return AuthState{}, fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" {
		return AuthState{}, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	state := AuthState{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   s.GetUserRole(ctx, claims.Subject),
	}
	if profile := s.GetUserProfile(ctx, claims.Subject); profile != nil {
		state.Email = profile.Email
		if profile.FullName != nil {
			state.FullName = *profile.FullName
		}
	}
	return state, nil
}

// IssueToken signs a session token for userID.
func (s *IdentityService) IssueToken(userID, email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserRole returns the user's role. Users without a role row, and
// lookup failures, resolve to RoleUser.
func (s *IdentityService) GetUserRole(ctx context.Context, userID string) models.Role {
	var roles []models.UserRole
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&roles).Error; err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("role lookup failed")
		return models.RoleUser
	}
	for _, r := range roles {
		if r.Role == models.RoleAdmin {
			return models.RoleAdmin
		}
	}
	return models.RoleUser
}

// GetUserProfile returns the user's profile, or nil when there is none.
// A miss is not an error: callers treat it as an unknown user.
func (s *IdentityService) GetUserProfile(ctx context.Context, userID string) *models.Profile {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("profile lookup failed")
		}
		return nil
	}
	return &profile
}
