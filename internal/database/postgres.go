package database

import (
	"context"
	"errors"
	"fmt"

	"chatwire/internal/models"
	"chatwire/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// User Repository Implementation

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, name, email, pic, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, name, email, pic, created_at, updated_at`

	user := &models.User{PasswordHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, uuid.NewString(), req.Name, req.Email, req.Pic, string(hash)).Scan(
		&user.ID, &user.Name, &user.Email, &user.Pic, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, pic, password_hash, created_at, updated_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Pic, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, email, pic, created_at, updated_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Pic, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	return user, nil
}

func (db *PostgresDB) SearchUsers(ctx context.Context, query, excludeUserID string) ([]models.User, error) {
	sql := `
		SELECT id, name, email, pic, created_at, updated_at FROM users
		WHERE (name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%') AND id <> $2
		ORDER BY name
		LIMIT 20`

	rows, err := db.pool.Query(ctx, sql, query, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Pic, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Chat Repository Implementation

func (db *PostgresDB) AccessChat(ctx context.Context, userID, otherUserID string) (*models.Chat, error) {
	query := `
		SELECT c.id FROM chats c
		WHERE c.is_group_chat = false
		  AND EXISTS (SELECT 1 FROM chat_users WHERE chat_id = c.id AND user_id = $1)
		  AND EXISTS (SELECT 1 FROM chat_users WHERE chat_id = c.id AND user_id = $2)
		LIMIT 1`

	var chatID string
	err := db.pool.QueryRow(ctx, query, userID, otherUserID).Scan(&chatID)
	if err == nil {
		return db.GetChatByID(ctx, chatID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	chatID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO chats (id, chat_name, is_group_chat, created_at, updated_at)
		VALUES ($1, 'sender', false, NOW(), NOW())`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	for _, uid := range []string{userID, otherUserID} {
		if _, err := tx.Exec(ctx, `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2)`, chatID, uid); err != nil {
			return nil, fmt.Errorf("failed to add chat member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.GetChatByID(ctx, chatID)
}

func (db *PostgresDB) FetchChats(ctx context.Context, userID string) ([]models.Chat, error) {
	query := `
		SELECT c.id FROM chats c
		JOIN chat_users cu ON cu.chat_id = c.id
		WHERE cu.user_id = $1
		ORDER BY c.updated_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(chatIDs))
	for _, id := range chatIDs {
		chat, err := db.GetChatByID(ctx, id)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

func (db *PostgresDB) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	query := `
		SELECT id, chat_name, is_group_chat, group_admin_id, latest_message_id, created_at, updated_at
		FROM chats WHERE id = $1`

	chat := &models.Chat{}
	var adminID, latestID *string
	err := db.pool.QueryRow(ctx, query, chatID).Scan(
		&chat.ID, &chat.ChatName, &chat.IsGroupChat, &adminID, &latestID, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	chat.Users, err = db.chatUsers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if adminID != nil {
		admin, err := db.GetUserByID(ctx, *adminID)
		if err != nil {
			return nil, err
		}
		chat.GroupAdmin = admin
	}

	if latestID != nil {
		latest, err := db.messageRow(ctx, *latestID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil {
			chat.LatestMessage = latest
		}
	}

	return chat, nil
}

func (db *PostgresDB) chatUsers(ctx context.Context, chatID string) ([]models.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.pic, u.created_at, u.updated_at
		FROM users u
		JOIN chat_users cu ON cu.user_id = u.id
		WHERE cu.chat_id = $1
		ORDER BY u.name`

	rows, err := db.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Pic, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *PostgresDB) IsChatMember(ctx context.Context, chatID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM chat_users WHERE chat_id = $1 AND user_id = $2)`

	var isMember bool
	err := db.pool.QueryRow(ctx, query, chatID, userID).Scan(&isMember)
	return isMember, err
}

func (db *PostgresDB) CreateGroupChat(ctx context.Context, name string, userIDs []string, adminID string) (*models.Chat, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	chatID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO chats (id, chat_name, is_group_chat, group_admin_id, created_at, updated_at)
		VALUES ($1, $2, true, $3, NOW(), NOW())`, chatID, name, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to create group chat: %w", err)
	}

	members := append([]string{}, userIDs...)
	members = append(members, adminID)
	seen := make(map[string]bool, len(members))
	for _, uid := range members {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		if _, err := tx.Exec(ctx, `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2)`, chatID, uid); err != nil {
			return nil, fmt.Errorf("failed to add group member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.GetChatByID(ctx, chatID)
}

func (db *PostgresDB) RenameGroup(ctx context.Context, chatID, name string) (*models.Chat, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE chats SET chat_name = $2, updated_at = NOW() WHERE id = $1`, chatID, name)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return db.GetChatByID(ctx, chatID)
}

func (db *PostgresDB) AddToGroup(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	query := `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	if _, err := db.pool.Exec(ctx, query, chatID, userID); err != nil {
		return nil, err
	}
	return db.GetChatByID(ctx, chatID)
}

func (db *PostgresDB) RemoveFromGroup(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	query := `DELETE FROM chat_users WHERE chat_id = $1 AND user_id = $2`

	if _, err := db.pool.Exec(ctx, query, chatID, userID); err != nil {
		return nil, err
	}
	return db.GetChatByID(ctx, chatID)
}

// Message Repository Implementation

func (db *PostgresDB) CreateMessage(ctx context.Context, senderID, chatID, content string) (*models.Message, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	messageID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, sender_id, chat_id, content, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, NOW(), NOW())`, messageID, senderID, chatID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if err := bumpChat(ctx, tx, chatID, messageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.GetMessageByID(ctx, messageID)
}

func (db *PostgresDB) FetchMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	chat, err := db.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.id, m.content, m.is_deleted, m.created_at, m.updated_at,
		       u.id, u.name, u.email, u.pic
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC`

	rows, err := db.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		err := rows.Scan(
			&m.ID, &m.Content, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
			&m.Sender.ID, &m.Sender.Name, &m.Sender.Email, &m.Sender.Pic,
		)
		if err != nil {
			return nil, err
		}
		m.Chat = chat
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (db *PostgresDB) GetMessageByID(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := db.messageRow(ctx, messageID)
	if err != nil {
		return nil, err
	}

	var chatID string
	if err := db.pool.QueryRow(ctx, `SELECT chat_id FROM messages WHERE id = $1`, messageID).Scan(&chatID); err != nil {
		return nil, mapNotFound(err)
	}
	chat, err := db.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msg.Chat = chat
	return msg, nil
}

// messageRow loads a message with its sender but without the populated chat,
// which is how latest-message previews are embedded in chat summaries.
func (db *PostgresDB) messageRow(ctx context.Context, messageID string) (*models.Message, error) {
	query := `
		SELECT m.id, m.content, m.is_deleted, m.created_at, m.updated_at,
		       u.id, u.name, u.email, u.pic
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, messageID).Scan(
		&msg.ID, &msg.Content, &msg.IsDeleted, &msg.CreatedAt, &msg.UpdatedAt,
		&msg.Sender.ID, &msg.Sender.Name, &msg.Sender.Email, &msg.Sender.Pic,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return msg, nil
}

func (db *PostgresDB) UpdateMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var chatID string
	err = tx.QueryRow(ctx, `
		UPDATE messages SET content = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING chat_id`, messageID, content).Scan(&chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if err := bumpChat(ctx, tx, chatID, messageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.GetMessageByID(ctx, messageID)
}

func (db *PostgresDB) SoftDeleteMessage(ctx context.Context, messageID string) (*models.Message, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var chatID string
	err = tx.QueryRow(ctx, `
		UPDATE messages SET content = $2, is_deleted = true, updated_at = NOW()
		WHERE id = $1
		RETURNING chat_id`, messageID, models.DeletedPlaceholder).Scan(&chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if err := bumpChat(ctx, tx, chatID, messageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.GetMessageByID(ctx, messageID)
}

// bumpChat points the chat's latest-message at messageID and refreshes its
// updated_at, keeping the chat-summary sort order in sync with activity.
func bumpChat(ctx context.Context, tx pgx.Tx, chatID, messageID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE chats SET latest_message_id = $2, updated_at = NOW()
		WHERE id = $1`, chatID, messageID)
	if err != nil {
		return fmt.Errorf("failed to update chat activity: %w", err)
	}
	return err
}
