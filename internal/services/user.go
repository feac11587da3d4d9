package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const (
	idChars        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultJWTTTL  = 365 * 24 * time.Hour
	maxIDAttempts  = 10
	defaultName    = "User"
	unknownPartner = "Unknown user"
)

// UserService issues identities and session tokens
type UserService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserRepository, jwtSecret string, jwtTTL time.Duration) *UserService {
	if jwtTTL <= 0 {
		jwtTTL = defaultJWTTTL
	}
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// Session is a freshly created user and its bearer token
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// GenerateUniqueID generates an unused user id. The id doubles as the
// pairing code a user shares with their partner.
func (s *UserService) GenerateUniqueID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := generateID()
		if err != nil {
			return "", err
		}
		exists, err := s.userRepo.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check id existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique id after %d attempts", maxIDAttempts)
}

// generateID generates a random id in the identity provider's format
func generateID() (string, error) {
	id := make([]byte, models.UserIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		id[i] = idChars[n.Int64()]
	}
	return string(id), nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID, name string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    name,
		"exp":     now.Add(s.jwtTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// CreateUser registers a new user and signs a session token for it
func (s *UserService) CreateUser(ctx context.Context, name, email string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName
	}

	userID, err := s.GenerateUniqueID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	token, err := s.GenerateJWT(userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		ID:        userID,
		Name:      name,
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &Session{User: user, Token: token}, nil
}

// GetUser retrieves a user's profile
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// DisplayName returns the name a user's messages are signed with
func (s *UserService) DisplayName(ctx context.Context, userID string) string {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return defaultName
	}
	return user.DisplayName(defaultName)
}

// UpdatePushToken stores the device token push notifications are sent to.
// An empty token removes it.
func (s *UserService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	var token *string
	if t := strings.TrimSpace(pushToken); t != "" {
		token = &t
	}
	if err := s.userRepo.UpdatePushToken(ctx, userID, token); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUserNotFound
		}
		return err
	}
	return nil
}
