package retrieval

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/llm"
)

// 取得戦略のラベル
const (
	StrategyDocumentSummaries   = "document_summaries"
	StrategyConversationHistory = "conversation_history"
	StrategyVectorSearch        = "vector_search"
	StrategyMixed               = "mixed"
)

// summaryPlaceholder は要約未生成のドキュメントに使うプレースホルダ
const summaryPlaceholder = "Summary not available for this document."

// DocumentSummary は document_level 取得で返す要約レコード
type DocumentSummary struct {
	DocumentID   uuid.UUID
	DocumentName string
	PageCount    mo.Option[int]
	WordCount    int
	ChunkCount   int
	Summary      string
}

// RetrievedChunk は類似度スコア付きで取得されたチャンク
type RetrievedChunk struct {
	Chunk        *document.Chunk
	Similarity   float64 // 1 - コサイン距離。高いほど類似
	DocumentName string
}

// ConversationMessage は会話履歴の1エントリ
type ConversationMessage struct {
	Role      llm.Role
	Content   string
	CreatedAt time.Time
}

// Result は取得ルーティング（Stage 2）の結果。質問ごとに生成され永続化されない。
type Result struct {
	DocumentSummaries   []DocumentSummary
	RetrievedChunks     []*RetrievedChunk
	ConversationContext []ConversationMessage

	Strategy        string
	SearchQueryUsed mo.Option[string]
}

// HasContent はいずれかのコンテンツが取得できたかを返す
func (r *Result) HasContent() bool {
	return len(r.DocumentSummaries) > 0 ||
		len(r.RetrievedChunks) > 0 ||
		len(r.ConversationContext) > 0
}
