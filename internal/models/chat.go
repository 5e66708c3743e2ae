package models

import "time"

// Chat is a conversation between two or more users. LatestMessage is a
// denormalized pointer kept in sync on every send, edit and delete so chat
// lists can be sorted and previewed without loading messages.
type Chat struct {
	ID            string    `json:"_id"`
	ChatName      string    `json:"chatName,omitempty"`
	IsGroupChat   bool      `json:"isGroupChat"`
	Users         []User    `json:"users"`
	GroupAdmin    *User     `json:"groupAdmin,omitempty"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

// Message belongs to exactly one chat. Deletion is soft: the record stays,
// content becomes DeletedPlaceholder and IsDeleted is set. A deleted message
// cannot be edited again.
type Message struct {
	ID        string    `json:"_id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Chat      *Chat     `json:"chat,omitempty"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type AccessChatRequest struct {
	UserID string `json:"userId"`
}

type GroupChatRequest struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

type GroupUpdateRequest struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName,omitempty"`
	UserID   string `json:"userId,omitempty"`
}
