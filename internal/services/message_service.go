package services

import (
	"context"
	"fmt"

	"chatwire/internal/database"
	"chatwire/internal/models"
)

type MessageService struct {
	db database.Database
}

func NewMessageService(db database.Database) *MessageService {
	return &MessageService{db: db}
}

// SendMessage stores a message for the chat and returns the populated
// record. The caller must be a chat member; this check is the authorization
// boundary for everything the fan-out engine later delivers.
func (s *MessageService) SendMessage(ctx context.Context, senderID, chatID, content string) (*models.Message, error) {
	if content == "" || chatID == "" {
		return nil, fmt.Errorf("content and chatId are required")
	}
	isMember, err := s.db.IsChatMember(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}
	return s.db.CreateMessage(ctx, senderID, chatID, content)
}

func (s *MessageService) FetchMessages(ctx context.Context, chatID, userID string) ([]models.Message, error) {
	isMember, err := s.db.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}
	return s.db.FetchMessages(ctx, chatID)
}

// EditMessage overwrites the message content. Only the sender may edit, and
// a deleted message is terminal: it cannot be edited again.
func (s *MessageService) EditMessage(ctx context.Context, messageID, content, userID string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.ID != userID {
		return nil, ErrForbidden
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}
	return s.db.UpdateMessage(ctx, messageID, content)
}

// DeleteMessage soft-deletes: the record keeps its id and timestamps, the
// content becomes the placeholder and the deleted flag is set.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.ID != userID {
		return nil, ErrForbidden
	}
	return s.db.SoftDeleteMessage(ctx, messageID)
}
