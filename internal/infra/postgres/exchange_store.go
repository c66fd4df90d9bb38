package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/docvault/internal/core/chat"
)

// ExchangeStore は chat.ExchangeStore を実装する書き込みアダプタ。
// 単一トランザクション（pgx.Tx）の上でのみ使用する。
type ExchangeStore struct {
	db DBTX
}

// NewExchangeStore は新しい ExchangeStore を返す。
func NewExchangeStore(db DBTX) *ExchangeStore {
	return &ExchangeStore{db: db}
}

var _ chat.ExchangeStore = (*ExchangeStore)(nil)

func (s *ExchangeStore) InsertMessage(ctx context.Context, msg *chat.Message) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (id, chat_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		UUIDToPgtype(msg.ID),
		UUIDToPgtype(msg.ChatID),
		string(msg.Role),
		msg.Content,
		TimeToPgtype(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	for _, chunkID := range msg.RetrievedChunkIDs {
		_, err := s.db.Exec(ctx, `
			INSERT INTO message_chunks (message_id, chunk_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			UUIDToPgtype(msg.ID), UUIDToPgtype(chunkID),
		)
		if err != nil {
			return fmt.Errorf("failed to link message chunk: %w", err)
		}
	}

	// メッセージ追加でチャットの更新時刻を進める
	_, err = s.db.Exec(ctx, `
		UPDATE chats SET updated_at = $2 WHERE id = $1`,
		UUIDToPgtype(msg.ChatID), TimeToPgtype(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

func (s *ExchangeStore) InsertUsageLog(ctx context.Context, usage *chat.UsageLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO llm_usage_logs
			(id, chat_id, message_id, api_type, model, input_content, output_content, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		UUIDToPgtype(usage.ID),
		UUIDOptionToPgtype(usage.ChatID),
		UUIDOptionToPgtype(usage.MessageID),
		string(usage.APIType),
		usage.Model,
		usage.InputContent,
		usage.OutputContent,
		int32(usage.InputTokens),
		int32(usage.OutputTokens),
		TimeToPgtype(usage.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

func (s *ExchangeStore) SetChatTitle(ctx context.Context, chatID uuid.UUID, title string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE chats SET title = $2, updated_at = now() WHERE id = $1`,
		UUIDToPgtype(chatID), title,
	)
	if err != nil {
		return fmt.Errorf("failed to set chat title: %w", err)
	}
	return nil
}
