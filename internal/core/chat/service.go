package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/llm"
	"github.com/jinford/docvault/internal/core/prompt"
	"github.com/jinford/docvault/internal/core/retrieval"
)

// Service はチャットの質問応答を統括するオーケストレータ。
// 1質問は classify → route → (空なら再ルーティング) → build-context →
// generate → persist の順で処理される。各段は前段の結果を必須入力とする。
type Service struct {
	repo       Repository
	docs       retrieval.DocumentReader
	classifier *classify.Classifier
	router     *retrieval.Router
	builder    *prompt.Builder
	llm        llm.Client
	tx         Transactor
	logger     *slog.Logger
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
func NewService(
	repo Repository,
	docs retrieval.DocumentReader,
	classifier *classify.Classifier,
	router *retrieval.Router,
	builder *prompt.Builder,
	llmClient llm.Client,
	tx Transactor,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:       repo,
		docs:       docs,
		classifier: classifier,
		router:     router,
		builder:    builder,
		llm:        llmClient,
		tx:         tx,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// CreateChat は指定ドキュメントでチャットを作成する。
// 全ドキュメントが存在し completed であることを検証する。
func (s *Service) CreateChat(ctx context.Context, documentIDs []uuid.UUID, title mo.Option[string]) (*Chat, error) {
	if len(documentIDs) == 0 {
		return nil, &InvalidStateError{Reason: "at least one document is required"}
	}

	for _, id := range documentIDs {
		doc, err := s.docs.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		if doc.Status != document.StatusCompleted {
			return nil, &InvalidStateError{
				Reason: fmt.Sprintf("document %q is not ready. Status: %s", doc.Name, doc.Status),
			}
		}
	}

	chat, err := s.repo.CreateChat(ctx, documentIDs, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.logger.Info("created chat", "chatID", chat.ID, "documents", len(documentIDs))
	return chat, nil
}

// GetChat はチャットを取得する
func (s *Service) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	return s.repo.GetChat(ctx, id)
}

// ListChats は全チャットを返す
func (s *Service) ListChats(ctx context.Context) ([]*Chat, error) {
	return s.repo.ListChats(ctx)
}

// DeleteChat はチャットを削除する
func (s *Service) DeleteChat(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteChat(ctx, id)
}

// Ask はチャットセッション内で1つの質問に回答する
func (s *Service) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	if strings.TrimSpace(params.Question) == "" {
		return nil, &InvalidStateError{Reason: "question is required"}
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	// 1-2. チャットをロードし、紐付くドキュメントが全て利用可能か再検証する
	chat, err := s.repo.GetChat(ctx, params.ChatID)
	if err != nil {
		return nil, err
	}

	if len(chat.DocumentIDs) == 0 {
		return nil, &InvalidStateError{Reason: "chat has no documents attached"}
	}

	if err := verifyDocuments(chat); err != nil {
		return nil, err
	}

	llmHistory := historyAsMessages(chat.Messages)
	convHistory := historyAsConversation(chat.Messages)

	// 3. 分類
	var classification classify.Result
	if params.UseSmartRouting {
		classification = s.classifier.Classify(ctx, params.Question, llmHistory)
	} else {
		classification = classify.ClassifySimple(params.Question, len(chat.Messages) > 0)
	}

	// 4. ルーティング
	ret, err := s.router.Route(ctx, classification, params.Question, chat.DocumentIDs, convHistory, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	// 5. 取得結果が空なら chunk_retrieval を強制して一度だけ再試行する。
	// 元の分類が空履歴チャットの follow_up でも同じく検索に倒す（既知の挙動）。
	if !ret.HasContent() {
		s.logger.Warn("retrieval returned no content, retrying as chunk retrieval",
			"chatID", chat.ID,
			"originalType", string(classification.QueryType),
		)

		classification = classify.Result{
			QueryType:   classify.QueryTypeChunkRetrieval,
			Confidence:  1.0,
			Reasoning:   "Fallback due to empty retrieval",
			SearchQuery: mo.Some(params.Question),
		}

		ret, err = s.router.Route(ctx, classification, params.Question, chat.DocumentIDs, convHistory, topK)
		if err != nil {
			return nil, fmt.Errorf("fallback retrieval failed: %w", err)
		}

		if !ret.HasContent() {
			return nil, ErrEmptyRetrieval
		}
	}

	// 6-7. コンテキスト構築と回答生成
	includeHistory := classification.QueryType == classify.QueryTypeFollowUp ||
		classification.QueryType == classify.QueryTypeMixed ||
		len(chat.Messages) > 0

	built := s.builder.Build(params.Question, classification, ret, llmHistory, includeHistory)

	s.logger.Info("generating answer",
		"chatID", chat.ID,
		"strategy", built.StrategyDescription,
	)

	completion, err := s.llm.Generate(ctx, built.Messages)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	// 8. 永続化（2メッセージ + 使用量ログ + 必要ならタイトル）を単一の原子的書き込みで行う。
	// メッセージの読み出し順は created_at で決まるため、
	// アシスタント側をずらして質問→回答の順序を保証する。
	now := time.Now().UTC()

	userMessage := &Message{
		ID:                uuid.New(),
		ChatID:            chat.ID,
		Role:              llm.RoleUser,
		Content:           params.Question,
		CreatedAt:         now,
		RetrievedChunkIDs: built.ChunkIDsUsed,
	}

	assistantMessage := &Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		Role:      llm.RoleAssistant,
		Content:   completion.Content,
		CreatedAt: now.Add(time.Millisecond),
	}

	usage := &UsageLog{
		ID:            uuid.New(),
		ChatID:        mo.Some(chat.ID),
		MessageID:     mo.Some(assistantMessage.ID),
		APIType:       APITypeChatCompletion,
		Model:         completion.Model,
		InputContent:  truncate(renderMessagesForLog(built.Messages), usageContentLimit),
		OutputContent: truncate(completion.Content, usageContentLimit),
		InputTokens:   completion.Usage.InputTokens,
		OutputTokens:  completion.Usage.OutputTokens,
		CreatedAt:     now,
	}

	err = s.tx.ExchangeWrite(ctx, func(store ExchangeStore) error {
		if err := store.InsertMessage(ctx, userMessage); err != nil {
			return fmt.Errorf("failed to insert user message: %w", err)
		}
		if err := store.InsertMessage(ctx, assistantMessage); err != nil {
			return fmt.Errorf("failed to insert assistant message: %w", err)
		}
		if err := store.InsertUsageLog(ctx, usage); err != nil {
			return fmt.Errorf("failed to insert usage log: %w", err)
		}

		// 最初の往復でタイトル未設定なら質問から自動生成する
		if chat.Title.IsAbsent() && len(chat.Messages) == 0 {
			if err := store.SetChatTitle(ctx, chat.ID, truncate(params.Question, titleLimit)); err != nil {
				return fmt.Errorf("failed to set chat title: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ask completed",
		"chatID", chat.ID,
		"queryType", string(classification.QueryType),
		"strategy", ret.Strategy,
		"sources", len(ret.RetrievedChunks),
		"inputTokens", completion.Usage.InputTokens,
		"outputTokens", completion.Usage.OutputTokens,
	)

	// 9. レスポンスペイロードの構築
	return &AskResult{
		Answer:            completion.Content,
		Sources:           buildSources(ret),
		MessageID:         assistantMessage.ID,
		QueryType:         classification.QueryType,
		RetrievalStrategy: ret.Strategy,
	}, nil
}

// verifyDocuments はチャットの全ドキュメントが依然として completed であることを確認する。
// チャット作成後に削除・無効化されたドキュメントは質問を失敗させる（黙って無視しない）。
func verifyDocuments(chat *Chat) error {
	byID := make(map[uuid.UUID]*document.Document, len(chat.Documents))
	for _, doc := range chat.Documents {
		byID[doc.ID] = doc
	}

	for _, id := range chat.DocumentIDs {
		doc, ok := byID[id]
		if !ok {
			return fmt.Errorf("document %s: %w", id, document.ErrNotFound)
		}
		if doc.Status != document.StatusCompleted {
			return &InvalidStateError{
				Reason: fmt.Sprintf("document %q is no longer available. Status: %s", doc.Name, doc.Status),
			}
		}
	}

	return nil
}

// buildSources は取得チャンクと要約から出典エントリを組み立てる
func buildSources(ret *retrieval.Result) []Source {
	sources := make([]Source, 0, len(ret.RetrievedChunks)+len(ret.DocumentSummaries))

	for _, rc := range ret.RetrievedChunks {
		sources = append(sources, Source{
			DocumentID:   rc.Chunk.DocumentID,
			DocumentName: rc.DocumentName,
			ChunkContent: truncate(rc.Chunk.Content, sourceContentLimit),
			PageNumber:   rc.Chunk.PageNumber,
			Similarity:   roundSimilarity(rc.Similarity),
		})
	}

	// document_level/mixed 取得で使った要約は固定類似度 1.0 の出典として追加する
	for _, summary := range ret.DocumentSummaries {
		sources = append(sources, Source{
			DocumentID:   summary.DocumentID,
			DocumentName: summary.DocumentName,
			ChunkContent: "[Document Summary] " + truncate(summary.Summary, sourceContentLimit),
			Similarity:   1.0,
		})
	}

	return sources
}

func historyAsMessages(messages []*Message) []llm.Message {
	result := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		result = append(result, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return result
}

func historyAsConversation(messages []*Message) []retrieval.ConversationMessage {
	result := make([]retrieval.ConversationMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, retrieval.ConversationMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return result
}

func renderMessagesForLog(messages []llm.Message) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func roundSimilarity(v float64) float64 {
	return math.Round(v*10000) / 10000
}
