package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/llm"
)

const (
	// embedBatchSize は1回のEmbedding API呼び出しに含めるチャンク数
	embedBatchSize = 32

	// summaryChunkLimit は要約生成の入力に使う先頭チャンク数
	summaryChunkLimit = 8

	// summaryInputLimit は要約生成の入力文字数上限
	summaryInputLimit = 8000

	// statusMessageLimit は status_message に記録する文字数上限
	statusMessageLimit = 500
)

// ErrNoContent は取り込み対象の本文が空の場合のエラー
var ErrNoContent = errors.New("document has no extractable content")

// summaryPrompt は要約生成のシステムプロンプト
const summaryPrompt = `You are a helpful assistant that writes concise document summaries.
Summarize the document excerpt below in 3-5 sentences. Focus on the main topics and key facts. Do not add information that is not in the excerpt.`

// Service はドキュメント取り込みパイプラインを実行する。
// pending → processing → completed / failed のステータス遷移を管理し、
// チャンク分割・Embedding生成・要約生成を行う。
type Service struct {
	repo     Repository
	embedder Embedder
	llm      llm.Client
	chunker  *Chunker
	logger   *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(repo Repository, embedder Embedder, llmClient llm.Client, chunker *Chunker, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		embedder: embedder,
		llm:      llmClient,
		chunker:  chunker,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Ingest はドキュメントを登録し、チャンク分割からEmbedding保存、要約生成までを実行する。
// 処理途中で失敗した場合はステータスを failed にして理由を記録する。
func (s *Service) Ingest(ctx context.Context, params IngestParams) (*document.Document, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errors.New("document name is required")
	}

	doc, err := s.repo.CreateDocument(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.process(ctx, doc.ID, params.Pages); err != nil {
		if markErr := s.repo.MarkFailed(ctx, doc.ID, truncate(err.Error(), statusMessageLimit)); markErr != nil {
			s.logger.Error("failed to mark document as failed", "documentID", doc.ID, "error", markErr)
		}
		return nil, fmt.Errorf("ingestion failed for document %s: %w", doc.ID, err)
	}

	// 要約生成の失敗は取り込み全体を失敗させない
	if err := s.generateSummary(ctx, doc.ID); err != nil {
		s.logger.Warn("summary generation failed", "documentID", doc.ID, "error", err)
	}

	return s.repo.GetDocument(ctx, doc.ID)
}

// RegenerateSummary は completed なドキュメントの要約を再生成する
func (s *Service) RegenerateSummary(ctx context.Context, documentID uuid.UUID) (*document.Document, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.Status != document.StatusCompleted {
		return nil, fmt.Errorf("document %q is not ready for summarization. Status: %s", doc.Name, doc.Status)
	}

	if err := s.generateSummary(ctx, documentID); err != nil {
		return nil, err
	}

	return s.repo.GetDocument(ctx, documentID)
}

func (s *Service) process(ctx context.Context, documentID uuid.UUID, pages []string) error {
	if err := s.repo.MarkProcessing(ctx, documentID, "Creating chunks..."); err != nil {
		return fmt.Errorf("failed to mark document as processing: %w", err)
	}

	joined := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if joined == "" {
		return ErrNoContent
	}

	pageCount := mo.None[int]()
	if len(pages) > 1 {
		pageCount = mo.Some(len(pages))
	}

	stats := ExtractionStats{
		PageCount: pageCount,
		WordCount: len(strings.Fields(joined)),
	}
	if err := s.repo.SetExtractionStats(ctx, documentID, stats); err != nil {
		return fmt.Errorf("failed to record extraction stats: %w", err)
	}

	chunks := s.chunker.ChunkPages(documentID, pages)
	if len(chunks) == 0 {
		return ErrNoContent
	}

	s.logger.Info("chunked document",
		"documentID", documentID,
		"chunks", len(chunks),
		"words", stats.WordCount,
		"tokens", s.chunker.CountTokens(joined),
	)

	if err := s.repo.MarkProcessing(ctx, documentID, "Generating embeddings..."); err != nil {
		return fmt.Errorf("failed to update processing status: %w", err)
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return err
	}

	if err := s.repo.StoreChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	if err := s.repo.MarkCompleted(ctx, documentID, len(chunks)); err != nil {
		return fmt.Errorf("failed to mark document as completed: %w", err)
	}

	s.logger.Info("ingested document", "documentID", documentID, "chunks", len(chunks))
	return nil
}

// embedChunks はチャンク本文をバッチでEmbeddingに変換して書き込む
func (s *Service) embedChunks(ctx context.Context, chunks []*document.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
		}

		for i, vector := range vectors {
			batch[i].Embedding = vector
		}
	}

	return nil
}

// generateSummary は先頭チャンクを入力にLLMで要約を生成して保存する
func (s *Service) generateSummary(ctx context.Context, documentID uuid.UUID) error {
	chunks, err := s.repo.ListLeadingChunks(ctx, documentID, summaryChunkLimit)
	if err != nil {
		return fmt.Errorf("failed to load chunks for summary: %w", err)
	}
	if len(chunks) == 0 {
		return ErrNoContent
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunk.Content)
		if sb.Len() >= summaryInputLimit {
			break
		}
	}
	excerpt := truncate(sb.String(), summaryInputLimit)

	completion, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summaryPrompt},
		{Role: llm.RoleUser, Content: excerpt},
	})
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	summary := strings.TrimSpace(completion.Content)
	if summary == "" {
		return errors.New("summary generation returned empty content")
	}

	if err := s.repo.SetSummary(ctx, documentID, summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	s.logger.Info("generated document summary", "documentID", documentID)
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
