package services

import (
	"context"
	"testing"
	"time"

	"github.com/iyunix/go-chat/internal/auth"
	"github.com/iyunix/go-chat/internal/database"
	"github.com/iyunix/go-chat/internal/repository/user"
)

func TestUserServiceProfileAndToken(t *testing.T) {
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	svc := NewUserService(user.NewGormUserRepository(db), "secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.UpsertProfile(ctx, auth.Principal{UserID: "  "}); err == nil {
		t.Fatal("expected error for empty user id")
	}

	p := auth.Principal{UserID: "u1", Email: "a@example.com", Name: "Ann"}
	if _, err := svc.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p.Name = "Ann B."
	token, err := svc.IssueToken(ctx, p)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	got, err := svc.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != "Ann B." || got.Email != "a@example.com" {
		t.Fatalf("profile = %+v", got)
	}

	claims, err := auth.ValidateToken(token, []byte("secret"))
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u1" || claims.Name != "Ann B." {
		t.Fatalf("principal = %+v", claims)
	}
}
