package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はチャットのデータアクセスインターフェース
type Repository interface {
	// CreateChat は新しいチャットを作成する
	CreateChat(ctx context.Context, documentIDs []uuid.UUID, title mo.Option[string]) (*Chat, error)

	// GetChat はチャットをメッセージ・ドキュメントごと取得する。
	// 存在しない場合は ErrChatNotFound を返す。
	GetChat(ctx context.Context, id uuid.UUID) (*Chat, error)

	// ListChats は全チャットを更新時刻の降順で返す
	ListChats(ctx context.Context) ([]*Chat, error)

	// DeleteChat はチャットと配下のメッセージを削除する
	DeleteChat(ctx context.Context, id uuid.UUID) error
}

// ExchangeStore は1往復分の書き込み操作。単一トランザクション内でのみ使用する。
type ExchangeStore interface {
	InsertMessage(ctx context.Context, msg *Message) error
	InsertUsageLog(ctx context.Context, usage *UsageLog) error
	SetChatTitle(ctx context.Context, chatID uuid.UUID, title string) error
}

// Transactor は質問応答の最終永続化を単一の原子的な書き込みとして実行する。
// fn がエラーを返した場合は全書き込みがロールバックされる。
type Transactor interface {
	ExchangeWrite(ctx context.Context, fn func(ExchangeStore) error) error
}
