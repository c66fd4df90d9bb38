package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/document"
)

// DefaultConversationWindow は follow_up/mixed で取得する履歴件数の既定値
// （6メッセージ = ユーザー/アシスタント3往復）
const DefaultConversationWindow = 6

// Router は分類結果に応じて適切な取得元からコンテンツを集める（Stage 2）。
// ルーティングは永続状態に対して読み取り専用であり、同一入力での再実行は安全。
type Router struct {
	searcher           ChunkSearcher
	docs               DocumentReader
	embedder           Embedder
	conversationWindow int
	logger             *slog.Logger
}

// Option は Router のオプション設定
type Option func(*Router)

// WithConversationWindow は会話コンテキストの取得件数を上書きする
func WithConversationWindow(n int) Option {
	return func(r *Router) {
		r.conversationWindow = n
	}
}

// WithLogger は Router にロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter は新しい Router を作成する
func NewRouter(searcher ChunkSearcher, docs DocumentReader, embedder Embedder, opts ...Option) *Router {
	r := &Router{
		searcher:           searcher,
		docs:               docs,
		embedder:           embedder,
		conversationWindow: DefaultConversationWindow,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Route は分類結果に基づいて取得を実行する
func (r *Router) Route(
	ctx context.Context,
	classification classify.Result,
	query string,
	documentIDs []uuid.UUID,
	history []ConversationMessage,
	topK int,
) (*Result, error) {
	r.logger.Info("routing query", "queryType", string(classification.QueryType))

	switch classification.QueryType {
	case classify.QueryTypeDocumentLevel:
		return r.retrieveDocumentLevel(ctx, documentIDs)

	case classify.QueryTypeFollowUp:
		return r.retrieveFollowUp(history, classification.ReferencedTopic), nil

	case classify.QueryTypeChunkRetrieval:
		return r.retrieveChunks(ctx, classification.SearchQueryOr(query), documentIDs, topK)

	case classify.QueryTypeMixed:
		return r.retrieveMixed(ctx, classification, query, documentIDs, history, topK)
	}

	// 閉じた列挙なので到達しないはずだが、未知のタイプはチャンク検索に倒す
	return r.retrieveChunks(ctx, query, documentIDs, topK)
}

// retrieveDocumentLevel はチャット内の各ドキュメントの要約レコードを集める。
// completed 以外のドキュメントはエラーにせず黙って除外する。
func (r *Router) retrieveDocumentLevel(ctx context.Context, documentIDs []uuid.UUID) (*Result, error) {
	summaries := make([]DocumentSummary, 0, len(documentIDs))

	for _, id := range documentIDs {
		doc, err := r.docs.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, document.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get document %s: %w", id, err)
		}

		if doc.Status != document.StatusCompleted {
			continue
		}

		summaries = append(summaries, DocumentSummary{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			PageCount:    doc.PageCount,
			WordCount:    doc.WordCount,
			ChunkCount:   doc.ChunkCount,
			Summary:      doc.Summary.OrElse(summaryPlaceholder),
		})
	}

	r.logger.Info("retrieved document summaries", "count", len(summaries))

	return &Result{
		DocumentSummaries: summaries,
		Strategy:          StrategyDocumentSummaries,
	}, nil
}

// retrieveFollowUp は直近の会話履歴をそのままの順序・ロールで返す
func (r *Router) retrieveFollowUp(history []ConversationMessage, referencedTopic mo.Option[string]) *Result {
	recent := lastN(history, r.conversationWindow)

	context := make([]ConversationMessage, len(recent))
	copy(context, recent)

	r.logger.Info("retrieved conversation context", "messages", len(context))

	return &Result{
		ConversationContext: context,
		Strategy:            StrategyConversationHistory,
		SearchQueryUsed:     referencedTopic,
	}
}

// retrieveChunks は検索クエリをEmbeddingに変換し、チャットのドキュメント群に
// 限定してコサイン類似度の上位チャンクを取得する
func (r *Router) retrieveChunks(ctx context.Context, searchQuery string, documentIDs []uuid.UUID, topK int) (*Result, error) {
	queryVector, err := r.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	chunks, err := r.searcher.SearchChunks(ctx, queryVector, documentIDs, topK)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	r.logger.Info("retrieved chunks", "count", len(chunks), "query", searchQuery)

	return &Result{
		RetrievedChunks: chunks,
		Strategy:        StrategyVectorSearch,
		SearchQueryUsed: mo.Some(searchQuery),
	}, nil
}

// retrieveMixed は会話コンテキストとチャンク検索の両方を実行して統合する
func (r *Router) retrieveMixed(
	ctx context.Context,
	classification classify.Result,
	query string,
	documentIDs []uuid.UUID,
	history []ConversationMessage,
	topK int,
) (*Result, error) {
	recent := lastN(history, r.conversationWindow)
	conversationContext := make([]ConversationMessage, len(recent))
	copy(conversationContext, recent)

	searchQuery := classification.SearchQueryOr(query)
	chunkResult, err := r.retrieveChunks(ctx, searchQuery, documentIDs, topK)
	if err != nil {
		return nil, err
	}

	r.logger.Info("mixed retrieval",
		"messages", len(conversationContext),
		"chunks", len(chunkResult.RetrievedChunks),
	)

	return &Result{
		RetrievedChunks:     chunkResult.RetrievedChunks,
		ConversationContext: conversationContext,
		Strategy:            StrategyMixed,
		SearchQueryUsed:     mo.Some(searchQuery),
	}, nil
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
