package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/ingestion"
	"github.com/jinford/docvault/internal/core/retrieval"
)

const documentColumns = `id, name, status, status_message, page_count, word_count, chunk_count, summary, created_at, updated_at, processed_at`

// DocumentRepository はドキュメントとチャンクの PostgreSQL リポジトリ。
// ingestion.Repository と retrieval.DocumentReader を実装する。
type DocumentRepository struct {
	db DBTX
}

// NewDocumentRepository は新しい DocumentRepository を返す。
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var (
	_ ingestion.Repository     = (*DocumentRepository)(nil)
	_ retrieval.DocumentReader = (*DocumentRepository)(nil)
)

func (r *DocumentRepository) CreateDocument(ctx context.Context, name string) (*document.Document, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO documents (id, name, status)
		VALUES ($1, $2, $3)
		RETURNING `+documentColumns,
		UUIDToPgtype(uuid.New()), name, string(document.StatusPending),
	)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1`,
		UUIDToPgtype(id),
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments は全ドキュメントを作成時刻の降順で返す。
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument はドキュメントと配下のチャンクを削除する。
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, id uuid.UUID, statusMessage string) error {
	return r.updateStatus(ctx, id, document.StatusProcessing, pgtype.Text{String: statusMessage, Valid: true})
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, statusMessage string) error {
	return r.updateStatus(ctx, id, document.StatusFailed, pgtype.Text{String: statusMessage, Valid: true})
}

func (r *DocumentRepository) updateStatus(ctx context.Context, id uuid.UUID, status document.ProcessingStatus, message pgtype.Text) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET status = $2, status_message = $3, updated_at = now()
		WHERE id = $1`,
		UUIDToPgtype(id), string(status), message,
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, chunkCount int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET status = $2, status_message = NULL, chunk_count = $3,
		    processed_at = now(), updated_at = now()
		WHERE id = $1`,
		UUIDToPgtype(id), string(document.StatusCompleted), int32(chunkCount),
	)
	if err != nil {
		return fmt.Errorf("failed to mark document as completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) SetExtractionStats(ctx context.Context, id uuid.UUID, stats ingestion.ExtractionStats) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET page_count = $2, word_count = $3, updated_at = now()
		WHERE id = $1`,
		UUIDToPgtype(id), IntOptionToPgInt4(stats.PageCount), int32(stats.WordCount),
	)
	if err != nil {
		return fmt.Errorf("failed to record extraction stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET summary = $2, updated_at = now()
		WHERE id = $1`,
		UUIDToPgtype(id), summary,
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) StoreChunks(ctx context.Context, chunks []*document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(`
			INSERT INTO document_chunks
				(id, document_id, content, chunk_index, page_number, start_char, end_char, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			UUIDToPgtype(chunk.ID),
			UUIDToPgtype(chunk.DocumentID),
			chunk.Content,
			int32(chunk.ChunkIndex),
			IntOptionToPgInt4(chunk.PageNumber),
			int32(chunk.StartChar),
			int32(chunk.EndChar),
			pgvector.NewVector(chunk.Embedding),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return results.Close()
}

func (r *DocumentRepository) ListLeadingChunks(ctx context.Context, documentID uuid.UUID, limit int) ([]*document.Chunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, content, chunk_index, page_number, start_char, end_char, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
		LIMIT $2`,
		UUIDToPgtype(documentID), int32(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*document.Chunk
	for rows.Next() {
		var (
			id, docID              pgtype.UUID
			content                string
			chunkIndex             int32
			pageNumber             pgtype.Int4
			startChar, endChar     int32
			createdAt              pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &docID, &content, &chunkIndex, &pageNumber, &startChar, &endChar, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		chunks = append(chunks, &document.Chunk{
			ID:         PgtypeToUUID(id),
			DocumentID: PgtypeToUUID(docID),
			Content:    content,
			ChunkIndex: int(chunkIndex),
			PageNumber: PgInt4ToIntOption(pageNumber),
			StartChar:  int(startChar),
			EndChar:    int(endChar),
			CreatedAt:  PgtypeToTime(createdAt),
		})
	}
	return chunks, rows.Err()
}

// scanDocument は documentColumns の順で1行をスキャンする。
func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		id                    pgtype.UUID
		name, status          string
		statusMessage         pgtype.Text
		pageCount             pgtype.Int4
		wordCount, chunkCount int32
		summary               pgtype.Text
		createdAt, updatedAt  pgtype.Timestamptz
		processedAt           pgtype.Timestamptz
	)

	err := row.Scan(&id, &name, &status, &statusMessage, &pageCount, &wordCount, &chunkCount, &summary, &createdAt, &updatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	return &document.Document{
		ID:            PgtypeToUUID(id),
		Name:          name,
		Status:        document.ProcessingStatus(status),
		StatusMessage: PgtextToStringOption(statusMessage),
		PageCount:     PgInt4ToIntOption(pageCount),
		WordCount:     int(wordCount),
		ChunkCount:    int(chunkCount),
		Summary:       PgtextToStringOption(summary),
		CreatedAt:     PgtypeToTime(createdAt),
		UpdatedAt:     PgtypeToTime(updatedAt),
		ProcessedAt:   PgtypeToTimeOption(processedAt),
	}, nil
}
