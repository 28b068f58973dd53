// File: internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iyunix/go-chat/internal/auth"
	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/repository/user"
)

// UserService caches identity-provider profiles and issues session tokens.
type UserService struct {
	userRepo  user.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewUserService(repo user.UserRepository, secretKey string, tokenTTL time.Duration) *UserService {
	return &UserService{
		userRepo:  repo,
		jwtSecret: []byte(secretKey),
		tokenTTL:  tokenTTL,
	}
}

// UpsertProfile records the latest profile of an authenticated principal.
func (s *UserService) UpsertProfile(ctx context.Context, p auth.Principal) (*domain.User, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, errors.New("user ID is required")
	}
	u := &domain.User{
		ID:        p.UserID,
		Email:     p.Email,
		Name:      p.Name,
		AvatarURL: p.Picture,
	}
	if err := s.userRepo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// IssueToken signs a session token for the principal and caches its profile.
func (s *UserService) IssueToken(ctx context.Context, p auth.Principal) (string, error) {
	if _, err := s.UpsertProfile(ctx, p); err != nil {
		return "", err
	}
	token, err := auth.GenerateJWT(p, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", errors.New("could not generate token")
	}
	return token, nil
}
