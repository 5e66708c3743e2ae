package services

import (
	"context"
	"errors"
	"fmt"

	"chatwire/internal/database"
	"chatwire/internal/models"
)

var (
	// ErrForbidden means the caller is not allowed to touch the record.
	ErrForbidden = errors.New("forbidden")
	// ErrMessageDeleted means the target message was soft-deleted; deleted
	// messages cannot be edited again.
	ErrMessageDeleted = errors.New("message is deleted")
)

type ChatService struct {
	db database.Database
}

func NewChatService(db database.Database) *ChatService {
	return &ChatService{db: db}
}

// AccessChat finds or creates the direct chat between the caller and the
// other user. This is where chat membership, and with it room access, is
// established; the transport layer never re-checks it.
func (s *ChatService) AccessChat(ctx context.Context, userID, otherUserID string) (*models.Chat, error) {
	if otherUserID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	if _, err := s.db.GetUserByID(ctx, otherUserID); err != nil {
		return nil, err
	}
	return s.db.AccessChat(ctx, userID, otherUserID)
}

func (s *ChatService) FetchChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.db.FetchChats(ctx, userID)
}

func (s *ChatService) CreateGroupChat(ctx context.Context, name string, userIDs []string, adminID string) (*models.Chat, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	// The admin joins implicitly, so two more users make the minimum of
	// three for a group chat.
	if len(userIDs) < 2 {
		return nil, fmt.Errorf("more than 2 users are required to form a group chat")
	}
	return s.db.CreateGroupChat(ctx, name, userIDs, adminID)
}

func (s *ChatService) RenameGroup(ctx context.Context, chatID, name, userID string) (*models.Chat, error) {
	if name == "" {
		return nil, fmt.Errorf("chat name is required")
	}
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.db.RenameGroup(ctx, chatID, name)
}

func (s *ChatService) AddToGroup(ctx context.Context, chatID, userID, callerID string) (*models.Chat, error) {
	if err := s.requireGroupAdmin(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	return s.db.AddToGroup(ctx, chatID, userID)
}

func (s *ChatService) RemoveFromGroup(ctx context.Context, chatID, userID, callerID string) (*models.Chat, error) {
	// Members may remove themselves; only the admin removes others.
	if userID != callerID {
		if err := s.requireGroupAdmin(ctx, chatID, callerID); err != nil {
			return nil, err
		}
	}
	return s.db.RemoveFromGroup(ctx, chatID, userID)
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	isMember, err := s.db.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrForbidden
	}
	return nil
}

func (s *ChatService) requireGroupAdmin(ctx context.Context, chatID, userID string) error {
	chat, err := s.db.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.GroupAdmin == nil || chat.GroupAdmin.ID != userID {
		return ErrForbidden
	}
	return nil
}
