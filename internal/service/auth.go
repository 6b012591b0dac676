package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// AuthService issues and verifies the bearer tokens that identify actors. Tokens are not
// tenant-bound: membership is checked per tenant on every operation.
type AuthService struct {
	userRepository repository.UserRepository
	jwtSecret      string
	jwtExpiry      time.Duration
}

func NewAuthService(userRepository repository.UserRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		jwtSecret:      jwtSecret,
		jwtExpiry:      jwtExpiry,
	}
}

// IssueToken signs a token for the existing user with email.
func (s *AuthService) IssueToken(ctx context.Context, email string) (string, *model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, fmt.Errorf("%s: %w", email, ErrUnknownUser)
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	token, err := s.GenerateJWT(user)
	if err != nil {
		return "", nil, err
	}
	slog.Info("token issued", "user_id", user.ID)
	return token, user, nil
}

func (s *AuthService) GenerateJWT(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Authenticate verifies tokenString and loads the user it names.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return nil, err
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
