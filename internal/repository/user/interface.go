package user

import (
	"context"

	"github.com/iyunix/go-chat/internal/domain"
)

// UserRepository caches identity-provider profiles.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
