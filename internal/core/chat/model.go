package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/llm"
)

const (
	// DefaultTopK はチャンク検索件数の既定値
	DefaultTopK = 5

	// titleLimit はチャットタイトルの文字数上限
	titleLimit = 100

	// sourceContentLimit はレスポンスに含める出典チャンク本文の文字数上限
	sourceContentLimit = 500

	// usageContentLimit は使用量ログに記録する入出力テキストの文字数上限
	usageContentLimit = 2000
)

// Chat はドキュメント群と会話を束ねるチャットセッション。
// ドキュメントの紐付けは作成時に固定され、以降追加・削除されない。
type Chat struct {
	ID          uuid.UUID
	Title       mo.Option[string] // 未設定なら最初の質問から自動生成
	DocumentIDs []uuid.UUID
	Documents   []*document.Document
	Messages    []*Message // 作成時刻順
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message はチャット内の1メッセージ
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	Role      llm.Role
	Content   string
	CreatedAt time.Time

	// RetrievedChunkIDs はこのメッセージのために取得されたチャンク。
	// チャンク検索を伴うユーザーメッセージにのみ設定される（出典記録用）。
	RetrievedChunkIDs []uuid.UUID
}

// APIType はLLM API呼び出しの種別
type APIType string

const (
	APITypeChatCompletion APIType = "chat_completion"
	APITypeEmbedding      APIType = "embedding"
)

// UsageLog はLLM呼び出し1回分の使用量記録。追記専用で変更・削除されない。
type UsageLog struct {
	ID            uuid.UUID
	ChatID        mo.Option[uuid.UUID]
	MessageID     mo.Option[uuid.UUID]
	APIType       APIType
	Model         string
	InputContent  string // 上限 usageContentLimit で切り詰め
	OutputContent string
	InputTokens   int
	OutputTokens  int
	CreatedAt     time.Time
}

// AskParams は質問応答のパラメータ
type AskParams struct {
	ChatID   uuid.UUID
	Question string
	TopK     int // チャンク検索件数（0以下なら DefaultTopK）

	// UseSmartRouting が真ならLLMベースの分類、偽ならルールベースの分類を使う
	UseSmartRouting bool
}

// Source は回答の出典情報
type Source struct {
	DocumentID   uuid.UUID
	DocumentName string
	ChunkContent string // 上限 sourceContentLimit で切り詰め
	PageNumber   mo.Option[int]
	Similarity   float64 // 小数点以下4桁に丸め
}

// AskResult は質問応答の結果
type AskResult struct {
	Answer            string
	Sources           []Source
	MessageID         uuid.UUID
	QueryType         classify.QueryType
	RetrievalStrategy string
}
