package prompt

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/llm"
	"github.com/jinford/docvault/internal/core/retrieval"
)

// Windows はクエリタイプごとにメッセージ列へ含める履歴件数
type Windows struct {
	FollowUp       int
	ChunkRetrieval int
	Mixed          int
}

// DefaultWindows は元実装の固定値を既定値として返す
func DefaultWindows() Windows {
	return Windows{
		FollowUp:       10,
		ChunkRetrieval: 4,
		Mixed:          6,
	}
}

// BuiltContext はコンテキスト構築（Stage 3）の結果。
// Messages はそのままLLMに渡せる順序付きメッセージ列。
type BuiltContext struct {
	Messages     []llm.Message
	SystemPrompt string

	// ChunkIDsUsed はプロンプトに実際に埋め込んだチャンクID（出典記録用）
	ChunkIDsUsed []uuid.UUID

	// StrategyDescription は何を含めたかの可観測性用の説明文
	StrategyDescription string
}

// Builder は分類結果と取得結果からLLMプロンプトを組み立てる
type Builder struct {
	windows Windows
	logger  *slog.Logger
}

// Option は Builder のオプション設定
type Option func(*Builder)

// WithWindows は履歴ウィンドウを上書きする
func WithWindows(w Windows) Option {
	return func(b *Builder) {
		b.windows = w
	}
}

// WithLogger は Builder にロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder は新しい Builder を作成する
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		windows: DefaultWindows(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// Build はクエリタイプに応じたメッセージ列とシステムプロンプトを構築する
func (b *Builder) Build(
	query string,
	classification classify.Result,
	ret *retrieval.Result,
	history []llm.Message,
	includeHistory bool,
) *BuiltContext {
	b.logger.Info("building context", "queryType", string(classification.QueryType))

	switch classification.QueryType {
	case classify.QueryTypeDocumentLevel:
		return b.buildDocumentLevel(query, ret)

	case classify.QueryTypeFollowUp:
		return b.buildFollowUp(query, ret, history)

	case classify.QueryTypeChunkRetrieval:
		return b.buildChunkRetrieval(query, ret, history, includeHistory)

	case classify.QueryTypeMixed:
		return b.buildMixed(query, ret, history)
	}

	// 未知のタイプはチャンク検索用のビルダーに倒す
	return b.buildChunkRetrieval(query, ret, history, includeHistory)
}

// buildDocumentLevel はドキュメント全体への質問用のコンテキストを構築する。
// 質問の対象はドキュメントそのものなので会話履歴は含めない。
func (b *Builder) buildDocumentLevel(query string, ret *retrieval.Result) *BuiltContext {
	systemPrompt := fmt.Sprintf(documentLevelTemplate, formatDocumentSummaries(ret.DocumentSummaries))

	return &BuiltContext{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		SystemPrompt:        systemPrompt,
		ChunkIDsUsed:        []uuid.UUID{},
		StrategyDescription: "Document summaries only, no conversation history",
	}
}

// buildFollowUp はフォローアップ質問用のコンテキストを構築する
func (b *Builder) buildFollowUp(query string, ret *retrieval.Result, history []llm.Message) *BuiltContext {
	systemPrompt := fmt.Sprintf(followUpTemplate, formatConversation(ret.ConversationContext))

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	messages = appendHistory(messages, history, b.windows.FollowUp)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	return &BuiltContext{
		Messages:            messages,
		SystemPrompt:        systemPrompt,
		ChunkIDsUsed:        []uuid.UUID{},
		StrategyDescription: "Conversation history only, answering follow-up",
	}
}

// buildChunkRetrieval はチャンク検索質問用のコンテキストを構築する
func (b *Builder) buildChunkRetrieval(query string, ret *retrieval.Result, history []llm.Message, includeHistory bool) *BuiltContext {
	systemPrompt := fmt.Sprintf(chunkRetrievalTemplate, formatChunks(ret.RetrievedChunks))

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	strategy := "Vector search results"
	if includeHistory && len(history) > 0 {
		// 新しいコンテキストの余地を残すため直近のみ
		messages = appendHistory(messages, history, b.windows.ChunkRetrieval)
		strategy += fmt.Sprintf(" + %d messages of history", min(len(history), b.windows.ChunkRetrieval))
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	return &BuiltContext{
		Messages:            messages,
		SystemPrompt:        systemPrompt,
		ChunkIDsUsed:        chunkIDs(ret.RetrievedChunks),
		StrategyDescription: strategy,
	}
}

// buildMixed は会話文脈と新規検索の両方を要する質問用のコンテキストを構築する
func (b *Builder) buildMixed(query string, ret *retrieval.Result, history []llm.Message) *BuiltContext {
	systemPrompt := fmt.Sprintf(mixedTemplate,
		formatConversation(ret.ConversationContext),
		formatChunks(ret.RetrievedChunks),
	)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	messages = appendHistory(messages, history, b.windows.Mixed)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	return &BuiltContext{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		ChunkIDsUsed: chunkIDs(ret.RetrievedChunks),
		StrategyDescription: fmt.Sprintf("Mixed: %d messages + %d chunks",
			len(ret.ConversationContext), len(ret.RetrievedChunks)),
	}
}

// appendHistory は直近 n 件の履歴を system ロールを除いて追加する
func appendHistory(messages []llm.Message, history []llm.Message, n int) []llm.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}

	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, msg)
	}

	return messages
}

func chunkIDs(chunks []*retrieval.RetrievedChunk) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(chunks))
	for _, rc := range chunks {
		ids = append(ids, rc.Chunk.ID)
	}
	return ids
}
