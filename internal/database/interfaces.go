package database

import (
	"context"
	"errors"

	"chatwire/internal/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

type UserRepository interface {
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SearchUsers(ctx context.Context, query, excludeUserID string) ([]models.User, error)
}

type ChatRepository interface {
	// AccessChat returns the direct chat between the two users, creating it
	// if it does not exist yet. Users are populated.
	AccessChat(ctx context.Context, userID, otherUserID string) (*models.Chat, error)
	// FetchChats returns every chat the user participates in, populated and
	// sorted descending by updated_at.
	FetchChats(ctx context.Context, userID string) ([]models.Chat, error)
	GetChatByID(ctx context.Context, chatID string) (*models.Chat, error)
	IsChatMember(ctx context.Context, chatID, userID string) (bool, error)
	CreateGroupChat(ctx context.Context, name string, userIDs []string, adminID string) (*models.Chat, error)
	RenameGroup(ctx context.Context, chatID, name string) (*models.Chat, error)
	AddToGroup(ctx context.Context, chatID, userID string) (*models.Chat, error)
	RemoveFromGroup(ctx context.Context, chatID, userID string) (*models.Chat, error)
}

type MessageRepository interface {
	// CreateMessage stores a message and bumps the chat's latest-message
	// pointer and updated_at in the same transaction. The returned message
	// is populated with sender and chat (including chat users).
	CreateMessage(ctx context.Context, senderID, chatID, content string) (*models.Message, error)
	// FetchMessages returns a chat's messages ascending by created_at.
	FetchMessages(ctx context.Context, chatID string) ([]models.Message, error)
	GetMessageByID(ctx context.Context, messageID string) (*models.Message, error)
	UpdateMessage(ctx context.Context, messageID, content string) (*models.Message, error)
	// SoftDeleteMessage marks the message deleted and replaces its content
	// with the placeholder. The record is never removed.
	SoftDeleteMessage(ctx context.Context, messageID string) (*models.Message, error)
}

type Database interface {
	UserRepository
	ChatRepository
	MessageRepository
	Close() error
}
