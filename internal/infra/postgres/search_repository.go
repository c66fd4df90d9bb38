package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/retrieval"
)

// SearchRepository は retrieval.ChunkSearcher を実装する PostgreSQL リポジトリ。
// pgvector のコサイン距離演算子（<=>）で類似チャンクを検索する。
type SearchRepository struct {
	db DBTX
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(db DBTX) *SearchRepository {
	return &SearchRepository{db: db}
}

var _ retrieval.ChunkSearcher = (*SearchRepository)(nil)

func (r *SearchRepository) SearchChunks(ctx context.Context, queryVector []float32, documentIDs []uuid.UUID, limit int) ([]*retrieval.RetrievedChunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.document_id, c.content, c.chunk_index, c.page_number,
		       c.start_char, c.end_char, c.created_at,
		       d.name AS document_name,
		       1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = ANY($2)
		  AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(queryVector),
		UUIDsToPgtype(documentIDs),
		int32(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []*retrieval.RetrievedChunk
	for rows.Next() {
		var (
			id, docID          pgtype.UUID
			content            string
			chunkIndex         int32
			pageNumber         pgtype.Int4
			startChar, endChar int32
			createdAt          pgtype.Timestamptz
			documentName       string
			similarity         float64
		)
		if err := rows.Scan(&id, &docID, &content, &chunkIndex, &pageNumber, &startChar, &endChar, &createdAt, &documentName, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		results = append(results, &retrieval.RetrievedChunk{
			Chunk: &document.Chunk{
				ID:         PgtypeToUUID(id),
				DocumentID: PgtypeToUUID(docID),
				Content:    content,
				ChunkIndex: int(chunkIndex),
				PageNumber: PgInt4ToIntOption(pageNumber),
				StartChar:  int(startChar),
				EndChar:    int(endChar),
				CreatedAt:  PgtypeToTime(createdAt),
			},
			Similarity:   similarity,
			DocumentName: documentName,
		})
	}
	return results, rows.Err()
}
