package retrieval

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/docvault/internal/core/document"
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher はチャンクの類似検索インターフェース。
// 許可されたドキュメントに属し、Embeddingを持つチャンクのみを対象に、
// コサイン距離の昇順（類似度の降順）で返す。
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVector []float32, documentIDs []uuid.UUID, limit int) ([]*RetrievedChunk, error)
}

// DocumentReader はドキュメントメタデータの読み取りインターフェース。
// 存在しない場合は document.ErrNotFound を返す。
type DocumentReader interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*document.Document, error)
}
