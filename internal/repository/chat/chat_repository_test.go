package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-chat/internal/database"
	"github.com/iyunix/go-chat/internal/domain"
)

func newRepo(t *testing.T) (ChatRepository, func(chatID string) []domain.Message) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	messages := func(chatID string) []domain.Message {
		var out []domain.Message
		if err := db.Where("chat_id = ?", chatID).Find(&out).Error; err != nil {
			t.Fatalf("list messages: %v", err)
		}
		return out
	}
	return NewChatRepository(db), messages
}

func newChat(owner string, at time.Time) *domain.Chat {
	return &domain.Chat{ID: uuid.NewString(), Title: "Hello", OwnerID: owner, CreatedAt: at}
}

func TestCreateDefaults(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	c := newChat("alice", at)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.FindByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Visibility != domain.VisibilityPrivate {
		t.Fatalf("visibility = %q", got.Visibility)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Fatalf("updatedAt = %v, want %v", got.UpdatedAt, at)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	repo, _ := newRepo(t)
	c := newChat("", time.Now().UTC())
	if err := repo.Create(context.Background(), c); err == nil {
		t.Fatal("expected validation error without owner")
	}
}

func TestFindOwnedHidesForeignChats(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	c := newChat("alice", time.Now().UTC())
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.FindOwned(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if _, err := repo.FindOwned(ctx, c.ID, "mallory"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign lookup: want ErrChatNotFound, got %v", err)
	}
	if _, err := repo.FindOwned(ctx, uuid.NewString(), "alice"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing lookup: want ErrChatNotFound, got %v", err)
	}
}

func TestFindByOwnerIDOrdering(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	older := newChat("alice", base)
	newer := newChat("alice", base.Add(time.Minute))
	other := newChat("bob", base.Add(2*time.Minute))
	for _, c := range []*domain.Chat{older, newer, other} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.TouchUpdatedAt(ctx, older.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("TouchUpdatedAt: %v", err)
	}

	chats, err := repo.FindByOwnerID(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByOwnerID: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("len = %d, want 2", len(chats))
	}
	if chats[0].ID != older.ID || chats[1].ID != newer.ID {
		t.Fatalf("unexpected order: %s, %s", chats[0].ID, chats[1].ID)
	}
}

func TestTouchUpdatedAtIsMonotonic(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := newChat("alice", base)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	later := base.Add(10 * time.Second)
	if err := repo.TouchUpdatedAt(ctx, c.ID, later); err != nil {
		t.Fatalf("touch later: %v", err)
	}
	if err := repo.TouchUpdatedAt(ctx, c.ID, base.Add(time.Second)); err != nil {
		t.Fatalf("touch earlier: %v", err)
	}
	got, _ := repo.FindByID(ctx, c.ID)
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("updatedAt moved backwards: %v", got.UpdatedAt)
	}

	if err := repo.TouchUpdatedAt(ctx, uuid.NewString(), later); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing chat: want ErrChatNotFound, got %v", err)
	}
}

func TestDeleteCascadesMessages(t *testing.T) {
	repo, messages := newRepo(t)
	ctx := context.Background()
	c := newChat("alice", time.Now().UTC())
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	db, _ := repo.(*gormChatRepository)
	msg := &domain.Message{ID: uuid.NewString(), ChatID: c.ID, Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()}
	if err := db.db.Create(msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := repo.Delete(ctx, c.ID, "mallory"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign delete: want ErrChatNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(messages(c.ID)); n != 0 {
		t.Fatalf("%d messages survived chat deletion", n)
	}
	if _, err := repo.FindByID(ctx, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("want ErrChatNotFound after delete, got %v", err)
	}
}
