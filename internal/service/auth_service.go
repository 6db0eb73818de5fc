package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo           repository.UserRepository
	jwtSecret          string
	jwtExpirationHours time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpHours time.Duration) *AuthService {
	return &AuthService{
		userRepo:           userRepo,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpHours,
	}
}

// EnsureUser creates the user if the username is free. An existing user is
// left untouched, so it is safe to call on every start.
func (s *AuthService) EnsureUser(ctx context.Context, username, password, role string) (*domain.User, error) {
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user, err := s.userRepo.Create(ctx, &domain.User{
		Username: username,
		Password: string(hashedPassword),
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}
	log.WithFields(log.Fields{"user_id": user.ID, "username": username, "role": role}).Info("user provisioned")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error) {
	user, err := s.userRepo.FindByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenString, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponseDTO{
		Token:    tokenString,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// Profile returns the caller's own account.
func (s *AuthService) Profile(ctx context.Context, userID int) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}

// UpdateUsername renames the caller. Keeping the current name is a no-op.
// Tokens already issued stay valid; they identify the user by id.
func (s *AuthService) UpdateUsername(ctx context.Context, userID int, newUsername string) (*domain.User, error) {
	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" {
		return nil, fmt.Errorf("%w: username must not be empty", ErrInvalidInput)
	}
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Username == newUsername {
		return user, nil
	}
	updated, err := s.userRepo.UpdateUsername(ctx, userID, newUsername)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEntry):
			return nil, fmt.Errorf("%w: username %q already exists", ErrConflict, newUsername)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("updating username: %w", err)
	}
	log.WithFields(log.Fields{"user_id": userID, "username": newUsername}).Info("username updated")
	return updated, nil
}

func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(user.ID),
		"exp":      now.Add(s.jwtExpirationHours).Unix(),
		"iat":      now.Unix(),
		"role":     user.Role,
		"username": user.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry and returns the caller's identity.
func (s *AuthService) ValidateToken(tokenString string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Identity{}, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Identity{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return domain.Identity{}, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return domain.Identity{}, ErrTokenInvalid
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	userID, err := strconv.Atoi(sub)
	if err != nil || userID <= 0 {
		return domain.Identity{}, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, sub)
	}
	role, _ := claims["role"].(string)
	return domain.Identity{UserID: userID, IsAdmin: role == domain.RoleAdmin}, nil
}
