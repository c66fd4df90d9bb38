package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/chat"
	"github.com/jinford/docvault/internal/core/llm"
)

// ChatRepository は chat.Repository を実装する PostgreSQL リポジトリ。
type ChatRepository struct {
	db DBTX
}

// NewChatRepository は新しい ChatRepository を返す。
func NewChatRepository(db DBTX) *ChatRepository {
	return &ChatRepository{db: db}
}

var _ chat.Repository = (*ChatRepository)(nil)

func (r *ChatRepository) CreateChat(ctx context.Context, documentIDs []uuid.UUID, title mo.Option[string]) (*chat.Chat, error) {
	chatID := uuid.New()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO chats (id, title)
		VALUES ($1, $2)`,
		UUIDToPgtype(chatID), StringOptionToPgtext(title),
	)
	for i, docID := range documentIDs {
		batch.Queue(`
			INSERT INTO chat_documents (chat_id, document_id, position)
			VALUES ($1, $2, $3)`,
			UUIDToPgtype(chatID), UUIDToPgtype(docID), int32(i),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	for i := 0; i < len(documentIDs)+1; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to create chat: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return r.GetChat(ctx, chatID)
}

func (r *ChatRepository) GetChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM chats
		WHERE id = $1`,
		UUIDToPgtype(id),
	)

	var (
		chatID               pgtype.UUID
		title                pgtype.Text
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&chatID, &title, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	c := &chat.Chat{
		ID:        PgtypeToUUID(chatID),
		Title:     PgtextToStringOption(title),
		CreatedAt: PgtypeToTime(createdAt),
		UpdatedAt: PgtypeToTime(updatedAt),
	}

	if err := r.loadDocuments(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadMessages(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *ChatRepository) ListChats(ctx context.Context) ([]*chat.Chat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM chats
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []*chat.Chat
	for rows.Next() {
		var (
			chatID               pgtype.UUID
			title                pgtype.Text
			createdAt, updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&chatID, &title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, &chat.Chat{
			ID:        PgtypeToUUID(chatID),
			Title:     PgtextToStringOption(title),
			CreatedAt: PgtypeToTime(createdAt),
			UpdatedAt: PgtypeToTime(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range chats {
		if err := r.loadDocumentIDs(ctx, c); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func (r *ChatRepository) DeleteChat(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrChatNotFound
	}
	return nil
}

// loadDocumentIDs は紐付くドキュメントIDを登録順に読み込む。
func (r *ChatRepository) loadDocumentIDs(ctx context.Context, c *chat.Chat) error {
	rows, err := r.db.Query(ctx, `
		SELECT document_id
		FROM chat_documents
		WHERE chat_id = $1
		ORDER BY position`,
		UUIDToPgtype(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to load chat documents: %w", err)
	}
	defer rows.Close()

	c.DocumentIDs = nil
	for rows.Next() {
		var docID pgtype.UUID
		if err := rows.Scan(&docID); err != nil {
			return fmt.Errorf("failed to scan chat document: %w", err)
		}
		c.DocumentIDs = append(c.DocumentIDs, PgtypeToUUID(docID))
	}
	return rows.Err()
}

// loadDocuments はドキュメントIDとドキュメント実体の両方を読み込む。
func (r *ChatRepository) loadDocuments(ctx context.Context, c *chat.Chat) error {
	if err := r.loadDocumentIDs(ctx, c); err != nil {
		return err
	}

	if len(c.DocumentIDs) == 0 {
		return nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = ANY($1)`,
		UUIDsToPgtype(c.DocumentIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		c.Documents = append(c.Documents, doc)
	}
	return rows.Err()
}

// loadMessages はメッセージと各メッセージの取得チャンクIDを作成時刻順に読み込む。
func (r *ChatRepository) loadMessages(ctx context.Context, c *chat.Chat) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, role, content, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at, id`,
		UUIDToPgtype(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*chat.Message)
	for rows.Next() {
		var (
			msgID, chatID pgtype.UUID
			role, content string
			createdAt     pgtype.Timestamptz
		)
		if err := rows.Scan(&msgID, &chatID, &role, &content, &createdAt); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}

		msg := &chat.Message{
			ID:        PgtypeToUUID(msgID),
			ChatID:    PgtypeToUUID(chatID),
			Role:      llm.Role(role),
			Content:   content,
			CreatedAt: PgtypeToTime(createdAt),
		}
		c.Messages = append(c.Messages, msg)
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(c.Messages) == 0 {
		return nil
	}

	chunkRows, err := r.db.Query(ctx, `
		SELECT mc.message_id, mc.chunk_id
		FROM message_chunks mc
		JOIN chat_messages m ON m.id = mc.message_id
		WHERE m.chat_id = $1`,
		UUIDToPgtype(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to load message chunks: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var msgID, chunkID pgtype.UUID
		if err := chunkRows.Scan(&msgID, &chunkID); err != nil {
			return fmt.Errorf("failed to scan message chunk: %w", err)
		}
		if msg, ok := byID[PgtypeToUUID(msgID)]; ok {
			msg.RetrievedChunkIDs = append(msg.RetrievedChunkIDs, PgtypeToUUID(chunkID))
		}
	}
	return chunkRows.Err()
}
