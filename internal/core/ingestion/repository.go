package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/docvault/internal/core/document"
)

// Repository はドキュメント取り込みのデータアクセスインターフェース
type Repository interface {
	// CreateDocument はステータス pending の新しいドキュメントを作成する
	CreateDocument(ctx context.Context, name string) (*document.Document, error)

	// GetDocument はドキュメントを取得する。
	// 存在しない場合は document.ErrNotFound を返す。
	GetDocument(ctx context.Context, id uuid.UUID) (*document.Document, error)

	// MarkProcessing はステータスを processing に遷移させ進捗メッセージを記録する
	MarkProcessing(ctx context.Context, id uuid.UUID, statusMessage string) error

	// SetExtractionStats は抽出後のページ数・語数を記録する
	SetExtractionStats(ctx context.Context, id uuid.UUID, stats ExtractionStats) error

	// StoreChunks はEmbedding付きのチャンク列を一括保存する
	StoreChunks(ctx context.Context, chunks []*document.Chunk) error

	// MarkCompleted はステータスを completed に遷移させチャンク数と処理時刻を記録する
	MarkCompleted(ctx context.Context, id uuid.UUID, chunkCount int) error

	// MarkFailed はステータスを failed に遷移させ失敗理由を記録する
	MarkFailed(ctx context.Context, id uuid.UUID, statusMessage string) error

	// SetSummary はドキュメント要約を保存する
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error

	// ListLeadingChunks はチャンクを先頭から chunk_index 順に limit 件返す
	ListLeadingChunks(ctx context.Context, documentID uuid.UUID, limit int) ([]*document.Chunk, error)
}

// Embedder はチャンク本文のEmbedding生成インターフェース
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}
